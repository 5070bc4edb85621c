package provider

import (
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	photo = models.MediaItem{URL: "https://cdn.example.com/a.jpg", Mime: "image/jpeg"}
	video = models.MediaItem{URL: "https://cdn.example.com/a.mp4", Mime: "video/mp4"}
)

func TestValidateTextBounds(t *testing.T) {
	pc := PostConfigs{MinTextChar: 1, MaxTextChar: 10}

	assert.Error(t, pc.Validate("", nil))
	assert.NoError(t, pc.Validate("hello", nil))
	assert.Error(t, pc.Validate(strings.Repeat("x", 11), nil))
}

func TestValidateCountsRunes(t *testing.T) {
	pc := PostConfigs{MaxTextChar: 5}

	assert.NoError(t, pc.Validate("héllo", nil))
	assert.NoError(t, pc.Validate("日本語です!", nil))
}

func TestValidateMediaMixing(t *testing.T) {
	mixed := []models.MediaItem{photo, video}

	strict := PostConfigs{MaxPhotos: 10, MaxVideos: 1}
	assert.Error(t, strict.Validate("ok", mixed))

	relaxed := PostConfigs{MaxPhotos: 10, MaxVideos: 1, AllowMixingMediaType: true}
	assert.NoError(t, relaxed.Validate("ok", mixed))
}

func TestValidateMediaCounts(t *testing.T) {
	pc := PostConfigs{MaxPhotos: 2, MaxVideos: 1}

	assert.NoError(t, pc.Validate("ok", []models.MediaItem{photo, photo}))
	assert.Error(t, pc.Validate("ok", []models.MediaItem{photo, photo, photo}))
	assert.Error(t, pc.Validate("ok", []models.MediaItem{video, video}))
}

func TestAdapterConfigsAreConsistent(t *testing.T) {
	creds := config.ProviderCredentials{ClientID: "id", ClientSecret: "secret"}
	callback := "http://localhost:3000/auth/test/callback"
	http := resty.New()

	for name, p := range map[string]Provider{
		"twitter":       newTwitterProvider(creds, callback, nil, http, nil),
		"facebook_page": newFacebookPageProvider(creds, callback, nil, http),
		"instagram":     newInstagramProvider(creds, callback, nil, http),
		"threads":       newThreadsProvider(creds, callback, nil, http),
		"linkedin":      newLinkedInProvider(creds, callback, nil, http),
		"tiktok":        newTikTokProvider(creds, callback, nil, http),
		"youtube":       newYouTubeProvider(creds, callback, nil, http),
		"pinterest":     newPinterestProvider(creds, callback, nil, http),
		"mastodon":      newMastodonProvider(creds, callback, "mastodon.social", nil, http),
	} {
		pc := p.PostConfigs()
		require.LessOrEqual(t, pc.MinTextChar, pc.MaxTextChar, name)
		require.LessOrEqual(t, pc.MinPhotos, pc.MaxPhotos, name)
		require.LessOrEqual(t, pc.MinVideos, pc.MaxVideos, name)
		require.Positive(t, pc.MaxTextChar, name)
	}
}
