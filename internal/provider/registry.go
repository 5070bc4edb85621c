package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
)

var (
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("provider credentials not configured")
)

// TokenSecretStore stashes short-lived OAuth1 request-token secrets between
// the authorization redirect and the callback.
type TokenSecretStore interface {
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Pull(ctx context.Context, key string, dest any) (bool, error)
}

// Registry builds configured provider adapters by name. Construction fails
// fast when the named provider has no credentials, so misconfiguration
// surfaces before any redirect is issued.
type Registry struct {
	cfg     *config.Config
	http    *resty.Client
	secrets TokenSecretStore
}

func NewRegistry(cfg *config.Config, secrets TokenSecretStore) *Registry {
	client := resty.New().SetTimeout(120 * time.Second)
	return &Registry{cfg: cfg, http: client, secrets: secrets}
}

// Connect returns an adapter for name, bound to the request-scoped values
// (oauth_state, server, provider_id). The adapter carries no token until
// SetAccessToken is called.
func (r *Registry) Connect(name string, values map[string]string) (Provider, error) {
	switch name {
	case "twitter":
		return r.build(name, r.cfg.Twitter, values, func(creds config.ProviderCredentials) Provider {
			return newTwitterProvider(creds, r.cfg.CallbackURL(name), values, r.http, r.secrets)
		})
	case "facebook":
		return r.build(name, r.cfg.Facebook, values, func(creds config.ProviderCredentials) Provider {
			return newFacebookProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "facebook_page":
		return r.build(name, r.cfg.Facebook, values, func(creds config.ProviderCredentials) Provider {
			return newFacebookPageProvider(creds, r.cfg.CallbackURL("facebook"), values, r.http)
		})
	case "instagram":
		return r.build(name, r.cfg.Instagram, values, func(creds config.ProviderCredentials) Provider {
			return newInstagramProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "threads":
		return r.build(name, r.cfg.Threads, values, func(creds config.ProviderCredentials) Provider {
			return newThreadsProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "linkedin":
		return r.build(name, r.cfg.LinkedIn, values, func(creds config.ProviderCredentials) Provider {
			return newLinkedInProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "tiktok":
		return r.build(name, r.cfg.TikTok, values, func(creds config.ProviderCredentials) Provider {
			return newTikTokProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "youtube":
		return r.build(name, r.cfg.Google, values, func(creds config.ProviderCredentials) Provider {
			return newYouTubeProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "pinterest":
		return r.build(name, r.cfg.Pinterest, values, func(creds config.ProviderCredentials) Provider {
			return newPinterestProvider(creds, r.cfg.CallbackURL(name), values, r.http)
		})
	case "mastodon":
		server := values["server"]
		if server == "" {
			return nil, fmt.Errorf("mastodon: %w: server not set", ErrMissingCredentials)
		}
		return r.build(name, r.cfg.MastodonCredentials(server), values, func(creds config.ProviderCredentials) Provider {
			return newMastodonProvider(creds, r.cfg.CallbackURL(name), server, values, r.http)
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

func (r *Registry) build(name string, creds config.ProviderCredentials, values map[string]string, construct func(config.ProviderCredentials) Provider) (Provider, error) {
	if creds.Empty() {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingCredentials)
	}
	return construct(creds), nil
}
