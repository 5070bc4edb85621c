package provider

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	threadsGraphURL = "https://graph.threads.net"
	threadsAPIURL   = "https://graph.threads.net/v1.0"
	threadsAuthURL  = "https://threads.net/oauth/authorize"

	threadsPollAttempts = 60
	threadsPollDelay    = 2 * time.Second

	threadsDefaultExpiresIn = 5184000
)

type threadsProvider struct {
	connection
}

func newThreadsProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *threadsProvider {
	return &threadsProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *threadsProvider) Name() string { return "threads" }

func (p *threadsProvider) CallbackKeys() []string { return []string{"code"} }

func (p *threadsProvider) IsOnlyUserAccount() bool { return false }

func (p *threadsProvider) AuthURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", "threads_basic,threads_content_publish")
	q.Set("response_type", "code")
	q.Set("state", p.state())

	return threadsAuthURL + "?" + q.Encode(), nil
}

// RequestAccessToken exchanges the code for a short-lived token and trades it
// for a long-lived one. The short-lived token is returned if the second
// exchange fails.
func (p *threadsProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"grant_type":    "authorization_code",
			"redirect_uri":  p.redirectURL,
			"code":          params["code"],
		}).
		Post(threadsGraphURL + "/oauth/access_token")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, tokenExchangeError(p.Name(), resp)
	}

	shortLived, err := models.DecodeAccessToken(resp.Body())
	if err != nil {
		return nil, err
	}

	longResp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "th_exchange_token",
			"client_secret": p.clientSecret,
			"access_token":  shortLived.Token(),
		}).
		Get(threadsGraphURL + "/access_token")
	if err != nil || longResp.IsError() {
		return shortLived, nil
	}

	longLived, err := models.DecodeAccessToken(longResp.Body())
	if err != nil {
		return shortLived, nil
	}

	return models.AccessToken{
		"access_token": longLived.Token(),
		"expires_in":   expiresInValue(longLived, threadsDefaultExpiresIn),
	}, nil
}

// RefreshAccessToken rotates a long-lived token using the access token
// itself, same scheme as Instagram.
func (p *threadsProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":   "th_refresh_token",
			"access_token": refreshKey,
		}).
		Get(threadsGraphURL + "/refresh_access_token")
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

	return models.AccessToken{
		"access_token": token.Token(),
		"expires_in":   expiresInValue(token, threadsDefaultExpiresIn),
	}, nil
}

func (p *threadsProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if t := token.Token(); t != "" {
		return t, true
	}
	return "", false
}

func (p *threadsProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,username,threads_profile_picture_url",
			"access_token": p.accessToken(),
		}).
		Get(threadsAPIURL + "/me")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			ID                string `json:"id"`
			Username          string `json:"username"`
			ProfilePictureURL string `json:"threads_profile_picture_url"`
		}
		decodeInto(resp.Body(), &data)

		return map[string]any{
			"id":       data.ID,
			"name":     data.Username,
			"username": data.Username,
			"image":    data.ProfilePictureURL,
		}
	})
}

func (p *threadsProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

func (p *threadsProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	userID := p.values["provider_id"]

	if len(media) > 0 {
		first := media[0]
		if first.IsImage() {
			return p.publishMedia(ctx, userID, map[string]string{
				"media_type": "IMAGE",
				"image_url":  first.URL,
				"text":       text,
			}, false)
		}
		if first.IsVideo() {
			return p.publishMedia(ctx, userID, map[string]string{
				"media_type": "VIDEO",
				"video_url":  first.URL,
				"text":       text,
			}, true)
		}
	}

	return p.publishMedia(ctx, userID, map[string]string{
		"media_type": "TEXT",
		"text":       text,
	}, false)
}

func (p *threadsProvider) publishMedia(ctx context.Context, userID string, params map[string]string, poll bool) Response {
	params["access_token"] = p.accessToken()

	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(params).
		Post(threadsAPIURL + "/" + userID + "/threads")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}
	if resp.IsError() {
		return buildResponse(resp, nil)
	}

	var container struct {
		ID string `json:"id"`
	}
	decodeInto(resp.Body(), &container)
	if container.ID == "" {
		return ErrorResponse(decodeBody(resp), "container creation returned no id")
	}

	if poll {
		if r, ok := p.waitForContainer(ctx, container.ID); !ok {
			return r
		}
	}

	return p.publishContainer(ctx, userID, container.ID)
}

func (p *threadsProvider) waitForContainer(ctx context.Context, containerID string) (Response, bool) {
	err := pollContainerStatus(ctx, threadsPollAttempts, threadsPollDelay, func(ctx context.Context) (string, string, error) {
		resp, err := p.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"fields":       "status,error_message",
				"access_token": p.accessToken(),
			}).
			Get(threadsAPIURL + "/" + containerID)
		if err != nil || resp.IsError() {
			return "", "", errTransientPoll
		}

		var data struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		decodeInto(resp.Body(), &data)
		return data.Status, data.ErrorMessage, nil
	})

	switch {
	case err == nil:
		return Response{}, true
	case isProcessingError(err):
		return ErrorResponse(nil, err.Error()), false
	default:
		return ErrorResponse(nil, "video processing timeout"), false
	}
}

func (p *threadsProvider) publishContainer(ctx context.Context, userID, containerID string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"creation_id":  containerID,
			"access_token": p.accessToken(),
		}).
		Post(threadsAPIURL + "/" + userID + "/threads_publish")
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

func (p *threadsProvider) DeletePost(ctx context.Context, id string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", p.accessToken()).
		Delete(threadsAPIURL + "/" + id)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, nil)
}

func (p *threadsProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          1,
		MaxTextChar:          500,
		MinPhotos:            1,
		MaxPhotos:            10,
		MinVideos:            1,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}
