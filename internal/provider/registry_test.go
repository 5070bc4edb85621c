package provider

import (
	"testing"

	config "github.com/maheshrc27/postbridge/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryConfig() *config.Config {
	creds := config.ProviderCredentials{ClientID: "id", ClientSecret: "secret"}
	return &config.Config{
		BaseURL:   "http://localhost:3000",
		AdminURL:  "http://localhost:5173/accounts",
		Twitter:   creds,
		Facebook:  creds,
		Instagram: creds,
		Threads:   creds,
		LinkedIn:  creds,
		TikTok:    creds,
		Google:    creds,
		Pinterest: creds,
		SecretKey: "test-secret",
	}
}

func TestConnectKnownProviders(t *testing.T) {
	registry := NewRegistry(registryConfig(), nil)

	for _, name := range []string{
		"twitter", "facebook", "facebook_page", "instagram", "threads",
		"linkedin", "tiktok", "youtube", "pinterest",
	} {
		p, err := registry.Connect(name, map[string]string{"oauth_state": "abc"})
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name(), name)
	}
}

func TestConnectUnknownProvider(t *testing.T) {
	registry := NewRegistry(registryConfig(), nil)

	_, err := registry.Connect("myspace", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestConnectMissingCredentials(t *testing.T) {
	cfg := registryConfig()
	cfg.Threads = config.ProviderCredentials{}
	registry := NewRegistry(cfg, nil)

	_, err := registry.Connect("threads", nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestConnectMastodonRequiresServer(t *testing.T) {
	registry := NewRegistry(registryConfig(), nil)

	_, err := registry.Connect("mastodon", map[string]string{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestConnectMastodonWithServerCredentials(t *testing.T) {
	t.Setenv("MASTODON_MASTODON_SOCIAL_CLIENT_ID", "id")
	t.Setenv("MASTODON_MASTODON_SOCIAL_CLIENT_SECRET", "secret")

	registry := NewRegistry(registryConfig(), nil)

	p, err := registry.Connect("mastodon", map[string]string{"server": "mastodon.social"})
	require.NoError(t, err)
	assert.Equal(t, "mastodon", p.Name())
}

func TestFacebookPageSharesFacebookApp(t *testing.T) {
	cfg := registryConfig()
	registry := NewRegistry(cfg, nil)

	p, err := registry.Connect("facebook_page", nil)
	require.NoError(t, err)
	assert.False(t, p.IsOnlyUserAccount())
}
