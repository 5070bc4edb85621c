package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	linkedInAPIURL   = "https://api.linkedin.com/v2"
	linkedInAuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	linkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

	linkedInRestliHeader = "X-Restli-Protocol-Version"
	linkedInRestliValue  = "2.0.0"

	linkedInDefaultExpiresIn = 5184000
)

type linkedInProvider struct {
	connection
}

func newLinkedInProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *linkedInProvider {
	return &linkedInProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *linkedInProvider) Name() string { return "linkedin" }

func (p *linkedInProvider) CallbackKeys() []string { return []string{"code"} }

func (p *linkedInProvider) IsOnlyUserAccount() bool { return true }

func (p *linkedInProvider) AuthURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", "openid profile email w_member_social")
	q.Set("state", p.state())

	return linkedInAuthURL + "?" + q.Encode(), nil
}

func (p *linkedInProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "authorization_code",
			"code":          params["code"],
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"redirect_uri":  p.redirectURL,
		}).
		Post(linkedInTokenURL)
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
		"expires_in":   expiresInValue(token, linkedInDefaultExpiresIn),
	}
	if rt := token.RefreshToken(); rt != "" {
		result["refresh_token"] = rt
	}
	if v, ok := token["refresh_token_expires_in"]; ok {
		result["refresh_token_expires_in"] = v
	}

	return result, nil
}

func (p *linkedInProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshKey,
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
		}).
		Post(linkedInTokenURL)
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
		"expires_in":   expiresInValue(token, linkedInDefaultExpiresIn),
	}
	if rt := token.RefreshToken(); rt != "" {
		result["refresh_token"] = rt
	} else {
		result["refresh_token"] = refreshKey
	}

	return result, nil
}

func (p *linkedInProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if rt := token.RefreshToken(); rt != "" {
		return rt, true
	}
	return "", false
}

func (p *linkedInProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		Get(linkedInAPIURL + "/userinfo")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			Sub     string `json:"sub"`
			Name    string `json:"name"`
			Email   string `json:"email"`
			Picture string `json:"picture"`
		}
		decodeInto(resp.Body(), &data)

		return map[string]any{
			"id":       data.Sub,
			"name":     data.Name,
			"username": data.Email,
			"image":    data.Picture,
		}
	})
}

func (p *linkedInProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

func (p *linkedInProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	personURN := p.values["provider_id"]
	if personURN == "" {
		return ErrorResponse(nil, "missing person identifier")
	}

	if len(media) == 0 {
		return p.createShare(ctx, personURN, text, "NONE", nil)
	}

	if media[0].IsVideo() {
		return p.publishVideo(ctx, personURN, text, media[0])
	}

	return p.publishImages(ctx, personURN, text, media)
}

// publishImages registers and uploads every image, skipping failed uploads,
// then creates one share referencing the uploaded assets.
func (p *linkedInProvider) publishImages(ctx context.Context, personURN, text string, media []models.MediaItem) Response {
	var assets []string

	for _, item := range media {
		if !item.IsImage() {
			continue
		}

		asset, uploadURL, err := p.registerUpload(ctx, personURN, "urn:li:digitalmediaRecipe:feedshare-image")
		if err != nil {
			continue
		}
		if err := p.uploadBinary(ctx, uploadURL, item); err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	if len(assets) == 0 {
		return ErrorResponse(nil, "failed to upload images")
	}

	return p.createShare(ctx, personURN, text, "IMAGE", assets)
}

func (p *linkedInProvider) publishVideo(ctx context.Context, personURN, text string, media models.MediaItem) Response {
	asset, uploadURL, err := p.registerUpload(ctx, personURN, "urn:li:digitalmediaRecipe:feedshare-video")
	if err != nil {
		return ErrorResponse(nil, "failed to register video upload")
	}

	if err := p.uploadBinary(ctx, uploadURL, media); err != nil {
		return ErrorResponse(nil, "failed to upload video file")
	}

	return p.createShare(ctx, personURN, text, "VIDEO", []string{asset})
}

func (p *linkedInProvider) registerUpload(ctx context.Context, personURN, recipe string) (asset, uploadURL string, err error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetHeader(linkedInRestliHeader, linkedInRestliValue).
		SetBody(map[string]any{
			"registerUploadRequest": map[string]any{
				"recipes": []string{recipe},
				"owner":   "urn:li:person:" + personURN,
				"serviceRelationships": []map[string]string{
					{
						"relationshipType": "OWNER",
						"identifier":       "urn:li:userGeneratedContent",
					},
				},
			},
		}).
		Post(linkedInAPIURL + "/assets?action=registerUpload")
	if err != nil {
		return "", "", err
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("register upload: %s", resp.Status())
	}

	var payload struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	decodeInto(resp.Body(), &payload)

	if payload.Value.Asset == "" {
		return "", "", fmt.Errorf("register upload: no asset in response")
	}

	mechanism := payload.Value.UploadMechanism["com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"]
	if mechanism.UploadURL == "" {
		return "", "", fmt.Errorf("register upload: no upload url in response")
	}

	return payload.Value.Asset, mechanism.UploadURL, nil
}

func (p *linkedInProvider) uploadBinary(ctx context.Context, uploadURL string, item models.MediaItem) error {
	raw, err := p.http.R().SetContext(ctx).Get(item.URL)
	if err != nil {
		return err
	}
	if raw.IsError() {
		return fmt.Errorf("fetch media: %s", raw.Status())
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetHeader("Content-Type", item.Mime).
		SetBody(raw.Body()).
		Put(uploadURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upload binary: %s", resp.Status())
	}

	return nil
}

func (p *linkedInProvider) createShare(ctx context.Context, personURN, text, category string, assets []string) Response {
	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": category,
	}
	if len(assets) > 0 {
		mediaContent := make([]map[string]string, 0, len(assets))
		for _, asset := range assets {
			mediaContent = append(mediaContent, map[string]string{
				"status": "READY",
				"media":  asset,
			})
		}
		shareContent["media"] = mediaContent
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetHeader(linkedInRestliHeader, linkedInRestliValue).
		SetBody(map[string]any{
			"author":         "urn:li:person:" + personURN,
			"lifecycleState": "PUBLISHED",
			"specificContent": map[string]any{
				"com.linkedin.ugc.ShareContent": shareContent,
			},
			"visibility": map[string]string{
				"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
			},
		}).
		Post(linkedInAPIURL + "/ugcPosts")
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

// DeletePost removes a share through the ugcPosts endpoint.
func (p *linkedInProvider) DeletePost(ctx context.Context, id string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetHeader(linkedInRestliHeader, linkedInRestliValue).
		Delete(linkedInAPIURL + "/ugcPosts/" + url.PathEscape(id))
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	// Deletion answers 204 No Content.
	if resp.StatusCode() == 204 {
		return OKResponse(map[string]any{"id": id})
	}
	return buildResponse(resp, nil)
}

func (p *linkedInProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          3000,
		MinPhotos:            0,
		MaxPhotos:            9,
		MinVideos:            0,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}
