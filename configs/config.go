package config

import (
	"fmt"
	"os"
	"strings"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ProviderCredentials) Empty() bool {
	return c.ClientID == "" || c.ClientSecret == ""
}

type Config struct {
	BaseURL     string
	FrontendURL string
	AdminURL    string

	Twitter   ProviderCredentials
	Facebook  ProviderCredentials
	Instagram ProviderCredentials
	Threads   ProviderCredentials
	LinkedIn  ProviderCredentials
	TikTok    ProviderCredentials
	Google    ProviderCredentials
	Pinterest ProviderCredentials

	PostgresURI string
	RedisURI    string

	R2 R2

	SecretKey string
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:     getEnv("BASE_URL", "http://localhost:3000"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		AdminURL:    getEnv("ADMIN_URL", "http://localhost:5173/accounts"),
		Twitter: ProviderCredentials{
			ClientID:     getEnv("TWITTER_CONSUMER_KEY", ""),
			ClientSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		},
		Facebook: ProviderCredentials{
			ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
		},
		Instagram: ProviderCredentials{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		},
		Threads: ProviderCredentials{
			ClientID:     getEnv("THREADS_CLIENT_ID", ""),
			ClientSecret: getEnv("THREADS_CLIENT_SECRET", ""),
		},
		LinkedIn: ProviderCredentials{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		},
		TikTok: ProviderCredentials{
			ClientID:     getEnv("TIKTOK_CLIENT_KEY", ""),
			ClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
		},
		Google: ProviderCredentials{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Pinterest: ProviderCredentials{
			ClientID:     getEnv("PINTEREST_CLIENT_ID", ""),
			ClientSecret: getEnv("PINTEREST_CLIENT_SECRET", ""),
		},
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "127.0.0.1:6379"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey: getEnv("SECRET_KEY", ""),
	}
}

// CallbackURL builds the OAuth redirect target for a provider. Facebook pages
// share the facebook app, so their callback lands on the same path.
func (c *Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/auth/%s/callback", c.BaseURL, provider)
}

// MastodonCredentials looks up per-server app credentials. Each Mastodon
// instance needs its own registered app, configured as
// MASTODON_<SERVER>_CLIENT_ID / MASTODON_<SERVER>_CLIENT_SECRET where <SERVER>
// is the server host with dots and dashes replaced by underscores.
func (c *Config) MastodonCredentials(server string) ProviderCredentials {
	key := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(server))
	return ProviderCredentials{
		ClientID:     getEnv("MASTODON_"+key+"_CLIENT_ID", ""),
		ClientSecret: getEnv("MASTODON_"+key+"_CLIENT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
