package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every request to the test server regardless of the
// host the adapter targets.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testInstagramProvider(t *testing.T, handler http.Handler) *instagramProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	client := resty.NewWithClient(&http.Client{Transport: rewriteTransport{target: target}})

	p := newInstagramProvider(
		config.ProviderCredentials{ClientID: "id", ClientSecret: "secret"},
		"http://localhost:3000/auth/instagram/callback",
		map[string]string{"provider_id": "1789"},
		client,
	)
	p.SetAccessToken(models.AccessToken{"access_token": "token-123"})
	return p
}

func carouselMedia() []models.MediaItem {
	return []models.MediaItem{
		{URL: "https://cdn.example.com/1.jpg", Mime: "image/jpeg"},
		{URL: "https://cdn.example.com/2.jpg", Mime: "image/jpeg"},
		{URL: "https://cdn.example.com/3.jpg", Mime: "image/jpeg"},
	}
}

func TestInstagramAuthURL(t *testing.T) {
	p := newInstagramProvider(
		config.ProviderCredentials{ClientID: "id", ClientSecret: "secret"},
		"http://localhost:3000/auth/instagram/callback",
		map[string]string{"oauth_state": "state-abc"},
		resty.New(),
	)

	raw, err := p.AuthURL(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "id", parsed.Query().Get("client_id"))
	assert.Equal(t, "state-abc", parsed.Query().Get("state"))
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
	assert.Contains(t, parsed.Query().Get("scope"), "instagram_business_content_publish")
}

func TestInstagramCarouselSkipsFailedChildren(t *testing.T) {
	var containers atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/1789/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		if r.FormValue("image_url") == "https://cdn.example.com/2.jpg" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"invalid media"}}`))
			return
		}

		if children := r.FormValue("children"); children != "" {
			assert.Len(t, strings.Split(children, ","), 2)
			w.Write([]byte(`{"id":"carousel-1"}`))
			return
		}

		id := containers.Add(1)
		w.Write([]byte(`{"id":"child-` + string(rune('0'+id)) + `"}`))
	})
	mux.HandleFunc("/1789/media_publish", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"published-1"}`))
	})

	p := testInstagramProvider(t, mux)

	resp := p.PublishPost(context.Background(), "three photos", carouselMedia(), nil)
	require.False(t, resp.HasError())
	assert.Equal(t, "published-1", resp.ID())
}

func TestInstagramCarouselAllChildrenFail(t *testing.T) {
	publishCalled := false

	mux := http.NewServeMux()
	mux.HandleFunc("/1789/media", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid media"}}`))
	})
	mux.HandleFunc("/1789/media_publish", func(w http.ResponseWriter, r *http.Request) {
		publishCalled = true
	})

	p := testInstagramProvider(t, mux)

	resp := p.PublishPost(context.Background(), "three photos", carouselMedia(), nil)
	require.True(t, resp.HasError())
	assert.Equal(t, "failed to create carousel containers", resp.ErrorMessage())
	assert.False(t, publishCalled)
}

func TestInstagramPublishRequiresMedia(t *testing.T) {
	p := testInstagramProvider(t, http.NewServeMux())

	resp := p.PublishPost(context.Background(), "text only", nil, nil)
	require.True(t, resp.HasError())
	assert.Equal(t, "instagram requires at least one media item", resp.ErrorMessage())
}

func TestInstagramPublishImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/1789/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "token-123", r.FormValue("access_token"))
		assert.Equal(t, "https://cdn.example.com/1.jpg", r.FormValue("image_url"))
		w.Write([]byte(`{"id":"container-1"}`))
	})
	mux.HandleFunc("/1789/media_publish", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "container-1", r.FormValue("creation_id"))
		w.Write([]byte(`{"id":"published-9"}`))
	})

	p := testInstagramProvider(t, mux)

	resp := p.PublishPost(context.Background(), "one photo", carouselMedia()[:1], nil)
	require.False(t, resp.HasError())
	assert.Equal(t, "published-9", resp.ID())
}

func TestInstagramPublishUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/1789/media", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	p := testInstagramProvider(t, mux)

	resp := p.PublishPost(context.Background(), "one photo", carouselMedia()[:1], nil)
	assert.True(t, resp.IsUnauthorized())
}

func TestInstagramRefreshKeyIsAccessToken(t *testing.T) {
	p := testInstagramProvider(t, http.NewServeMux())

	key, ok := p.RefreshKey(models.AccessToken{"access_token": "long-lived"})
	require.True(t, ok)
	assert.Equal(t, "long-lived", key)

	_, ok = p.RefreshKey(models.AccessToken{})
	assert.False(t, ok)
}
