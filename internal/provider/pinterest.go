package provider

import (
	"context"
	"net/url"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	pinterestAPIURL  = "https://api.pinterest.com/v5"
	pinterestAuthURL = "https://www.pinterest.com/oauth/"

	pinterestTitleLimit = 100

	pinterestDefaultExpiresIn = 31536000
)

type pinterestProvider struct {
	connection
}

func newPinterestProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *pinterestProvider {
	return &pinterestProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *pinterestProvider) Name() string { return "pinterest" }

func (p *pinterestProvider) CallbackKeys() []string { return []string{"code"} }

func (p *pinterestProvider) IsOnlyUserAccount() bool { return true }

func (p *pinterestProvider) AuthURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", "boards:read,pins:read,pins:write")
	q.Set("state", p.state())

	return pinterestAuthURL + "?" + q.Encode(), nil
}

func (p *pinterestProvider) exchangeToken(ctx context.Context, form map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetBasicAuth(p.clientID, p.clientSecret).
		SetFormData(form).
		Post(pinterestAPIURL + "/oauth/token")
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

	result := models.AccessToken{
		"access_token": token.Token(),
		"expires_in":   expiresInValue(token, pinterestDefaultExpiresIn),
	}
	if rt := token.RefreshToken(); rt != "" {
		result["refresh_token"] = rt
	}
	if v, ok := token["refresh_token_expires_in"]; ok {
		result["refresh_token_expires_in"] = v
	}

	return result, nil
}

func (p *pinterestProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	return p.exchangeToken(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         params["code"],
		"redirect_uri": p.redirectURL,
	})
}

func (p *pinterestProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	token, err := p.exchangeToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshKey,
	})
	if err != nil {
		return nil, err
	}
	if token.RefreshToken() == "" {
		token["refresh_token"] = refreshKey
	}
	return token, nil
}

func (p *pinterestProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if rt := token.RefreshToken(); rt != "" {
		return rt, true
	}
	return "", false
}

func (p *pinterestProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Get(pinterestAPIURL + "/user_account")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			Username     string `json:"username"`
			BusinessName string `json:"business_name"`
			ProfileImage string `json:"profile_image"`
		}
		decodeInto(resp.Body(), &data)

		name := data.BusinessName
		if name == "" {
			name = data.Username
		}

		return map[string]any{
			"id":       data.Username,
			"name":     name,
			"username": data.Username,
			"image":    data.ProfileImage,
		}
	})
}

func (p *pinterestProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

// PublishPost creates one pin on the target board. The board comes from
// params or falls back to the user's first board.
func (p *pinterestProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	if len(media) == 0 || !media[0].IsImage() {
		return ErrorResponse(nil, "pinterest requires at least one image")
	}

	boardID, _ := params["board_id"].(string)
	if boardID == "" {
		boardID = p.defaultBoard(ctx)
	}
	if boardID == "" {
		return ErrorResponse(nil, "no board available for pinning")
	}

	title, _ := params["title"].(string)
	if title == "" {
		title = truncate(text, pinterestTitleLimit)
	}

	pin := map[string]any{
		"board_id":    boardID,
		"title":       title,
		"description": text,
		"media_source": map[string]string{
			"source_type": "image_url",
			"url":         media[0].URL,
		},
	}
	if link, ok := params["link"].(string); ok && link != "" {
		pin["link"] = link
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetBody(pin).
		Post(pinterestAPIURL + "/pins")
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

func (p *pinterestProvider) defaultBoard(ctx context.Context) string {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Get(pinterestAPIURL + "/boards")
	if err != nil || resp.IsError() {
		return ""
	}

	var payload struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	decodeInto(resp.Body(), &payload)

	if len(payload.Items) == 0 {
		return ""
	}
	return payload.Items[0].ID
}

func (p *pinterestProvider) DeletePost(ctx context.Context, id string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Delete(pinterestAPIURL + "/pins/" + id)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, nil)
}

func (p *pinterestProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          500,
		MinPhotos:            1,
		MaxPhotos:            1,
		MinVideos:            0,
		MaxVideos:            0,
		AllowMixingMediaType: false,
	}
}
