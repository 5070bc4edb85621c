package provider

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/maheshrc27/postbridge/internal/models"
)

// Entity is one postable identity controlled by an authorized user, e.g. a
// Facebook Page. An entity may carry its own access token that replaces or
// augments the user token when the entity is selected.
type Entity struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Username    string             `json:"username"`
	Image       string             `json:"image"`
	Data        map[string]any     `json:"data,omitempty"`
	AccessToken models.AccessToken `json:"access_token,omitempty"`
	Connected   bool               `json:"connected"`
}

// Provider is the contract every platform adapter implements. Adapters are
// free to run multi-step upload/poll/publish machines internally as long as
// every operation terminates in one Response.
type Provider interface {
	Name() string

	// AuthURL builds the provider's authorization redirect. OAuth1 providers
	// perform a request-token round trip here.
	AuthURL(ctx context.Context) (string, error)

	// CallbackKeys names the query parameters the provider's redirect carries
	// back (code, or oauth_token + oauth_verifier).
	CallbackKeys() []string

	// IsOnlyUserAccount reports whether the authorized user is the only
	// postable identity. When false, the OAuth flow must go through entity
	// selection before an account is persisted.
	IsOnlyUserAccount() bool

	RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error)
	RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error)

	// RefreshKey extracts the value RefreshAccessToken needs from a stored
	// token bag. Adapters own their refresh quirks: Instagram and Threads
	// refresh with the access token itself, OAuth1 tokens never refresh.
	RefreshKey(token models.AccessToken) (string, bool)

	SetAccessToken(token models.AccessToken)

	GetAccount(ctx context.Context) Response
	GetEntities(ctx context.Context, withAccessToken bool) Response
	PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response
	DeletePost(ctx context.Context, id string) Response

	PostConfigs() PostConfigs
}

// Connector abstracts the registry for components that obtain configured
// providers by name.
type Connector interface {
	Connect(name string, values map[string]string) (Provider, error)
}

// connection holds the state shared by every adapter: app credentials, the
// computed redirect target, per-call context values and the bound token.
type connection struct {
	clientID     string
	clientSecret string
	redirectURL  string
	values       map[string]string
	token        models.AccessToken
	http         *resty.Client
}

func newConnection(clientID, clientSecret, redirectURL string, values map[string]string, http *resty.Client) connection {
	if values == nil {
		values = map[string]string{}
	}
	return connection{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		values:       values,
		http:         http,
	}
}

// SetAccessToken binds a token bag to this adapter instance. The binding is
// instance-local; no session store is involved, so the same code path works
// in pure API contexts.
func (c *connection) SetAccessToken(token models.AccessToken) {
	c.token = token
}

func (c *connection) accessToken() string {
	return c.token.Token()
}

// state returns the opaque state for the authorization redirect: a
// caller-supplied cross-domain state when present, otherwise the local
// anti-forgery token the caller minted.
func (c *connection) state() string {
	return c.values["oauth_state"]
}

// defaultRetryAfter is used when a throttling response carries no
// provider-supplied value.
const defaultRetryAfter = 3600 * time.Second
