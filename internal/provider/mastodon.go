package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

// mastodonProvider talks to one federated server. Every endpoint is rooted
// at the server passed through the connection values; app credentials are
// registered per server.
type mastodonProvider struct {
	connection
	serverURL string
}

func newMastodonProvider(creds config.ProviderCredentials, redirectURL, server string, values map[string]string, http *resty.Client) *mastodonProvider {
	return &mastodonProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
		serverURL:  "https://" + server,
	}
}

func (p *mastodonProvider) Name() string { return "mastodon" }

func (p *mastodonProvider) CallbackKeys() []string { return []string{"code"} }

func (p *mastodonProvider) IsOnlyUserAccount() bool { return true }

func (p *mastodonProvider) AuthURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", "read write")
	q.Set("response_type", "code")
	q.Set("state", p.state())

	return p.serverURL + "/oauth/authorize?" + q.Encode(), nil
}

func (p *mastodonProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"redirect_uri":  p.redirectURL,
			"grant_type":    "authorization_code",
			"code":          params["code"],
			"scope":         "read write",
		}).
		Post(p.serverURL + "/oauth/token")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, tokenExchangeError(p.Name(), resp)
	}

	token, err := models.DecodeAccessToken(resp.Body())
	if err != nil {
		return nil, err
	}

	return models.AccessToken{"access_token": token.Token()}, nil
}

// RefreshAccessToken is unsupported: tokens do not expire.
func (p *mastodonProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	return nil, errRefreshUnsupported(p.Name())
}

func (p *mastodonProvider) RefreshKey(token models.AccessToken) (string, bool) {
	return "", false
}

func (p *mastodonProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Get(p.serverURL + "/api/v1/accounts/verify_credentials")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			Username    string `json:"username"`
			Avatar      string `json:"avatar"`
		}
		decodeInto(resp.Body(), &data)

		name := data.DisplayName
		if name == "" {
			name = data.Username
		}

		return map[string]any{
			"id":       data.ID,
			"name":     name,
			"username": data.Username,
			"image":    data.Avatar,
		}
	})
}

func (p *mastodonProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
	account := p.GetAccount(ctx)
	if account.HasError() {
		return account
	}

	data, _ := account.Context().(map[string]any)
	entity := Entity{
		ID:       str(data["id"]),
		Name:     str(data["name"]),
		Username: str(data["username"]),
		Image:    str(data["image"]),
	}
	if withAccessToken {
		entity.AccessToken = p.token
	}

	return OKResponse([]Entity{entity})
}

// PublishPost uploads each media item, skipping failed uploads, and posts
// one status referencing the uploaded set.
func (p *mastodonProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	var mediaIDs []string
	for _, item := range media {
		id, err := p.uploadMedia(ctx, item)
		if err != nil {
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}

	if len(media) > 0 && len(mediaIDs) == 0 {
		return ErrorResponse(nil, "failed to upload media")
	}

	form := url.Values{}
	form.Set("status", text)
	for _, id := range mediaIDs {
		form.Add("media_ids[]", id)
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetFormDataFromValues(form).
		Post(p.serverURL + "/api/v1/statuses")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			ID string `json:"id"`
		}
		decodeInto(resp.Body(), &data)
		return map[string]any{"id": data.ID}
	})
}

func (p *mastodonProvider) uploadMedia(ctx context.Context, item models.MediaItem) (string, error) {
	raw, err := p.http.R().SetContext(ctx).Get(item.URL)
	if err != nil {
		return "", err
	}
	if raw.IsError() {
		return "", fmt.Errorf("fetch media: %s", raw.Status())
	}

	fileName := path.Base(item.URL)
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetFileReader("file", fileName, bytes.NewReader(raw.Body())).
		Post(p.serverURL + "/api/v2/media")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload media: %s", resp.Status())
	}

	var data struct {
		ID string `json:"id"`
	}
	decodeInto(resp.Body(), &data)
	if data.ID == "" {
		return "", fmt.Errorf("upload media: no id in response")
	}

	return data.ID, nil
}

func (p *mastodonProvider) DeletePost(ctx context.Context, id string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Delete(p.serverURL + "/api/v1/statuses/" + id)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, nil)
}

func (p *mastodonProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          1,
		MaxTextChar:          500,
		MinPhotos:            0,
		MaxPhotos:            4,
		MinVideos:            0,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}
