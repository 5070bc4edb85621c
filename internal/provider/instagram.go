package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	instagramGraphURL = "https://graph.instagram.com"
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramTokenURL = "https://api.instagram.com/oauth/access_token"

	instagramPollAttempts = 20
	instagramPollDelay    = 3 * time.Second

	// Long-lived token lifetime when the exchange response omits expires_in.
	instagramDefaultExpiresIn = 5184000
)

type instagramProvider struct {
	connection
}

func newInstagramProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *instagramProvider {
	return &instagramProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *instagramProvider) Name() string { return "instagram" }

func (p *instagramProvider) CallbackKeys() []string { return []string{"code"} }

func (p *instagramProvider) IsOnlyUserAccount() bool { return false }

func (p *instagramProvider) AuthURL(ctx context.Context) (string, error) {
	scopes := strings.Join([]string{
		"instagram_business_basic",
		"instagram_business_manage_messages",
		"instagram_business_manage_comments",
		"instagram_business_content_publish",
		"instagram_business_manage_insights",
	}, ",")

	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", scopes)
	q.Set("response_type", "code")
	q.Set("state", p.state())

	return instagramAuthURL + "?" + q.Encode(), nil
}

// RequestAccessToken runs the two-step exchange: the authorization code buys
// a short-lived token, which is immediately traded for a long-lived one. If
// the second exchange fails, the short-lived token is returned rather than
// nothing.
func (p *instagramProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"grant_type":    "authorization_code",
			"redirect_uri":  p.redirectURL,
			"code":          params["code"],
		}).
		Post(instagramTokenURL)
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
			"grant_type":    "ig_exchange_token",
			"client_secret": p.clientSecret,
			"access_token":  shortLived.Token(),
		}).
		Get(instagramGraphURL + "/access_token")
	if err != nil || longResp.IsError() {
		return shortLived, nil
	}

	longLived, err := models.DecodeAccessToken(longResp.Body())
	if err != nil {
		return shortLived, nil
	}

	return models.AccessToken{
		"access_token": longLived.Token(),
		"expires_in":   expiresInValue(longLived, instagramDefaultExpiresIn),
	}, nil
}

// RefreshAccessToken rotates a long-lived token. Instagram refreshes with the
// access token itself, so refreshKey is the current access token.
func (p *instagramProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":   "ig_refresh_token",
			"access_token": refreshKey,
		}).
		Get(instagramGraphURL + "/refresh_access_token")
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
		"expires_in":   expiresInValue(token, instagramDefaultExpiresIn),
	}, nil
}

func (p *instagramProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if t := token.Token(); t != "" {
		return t, true
	}
	return "", false
}

func (p *instagramProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,username,profile_picture_url",
			"access_token": p.accessToken(),
		}).
		Get(instagramGraphURL + "/" + p.values["provider_id"])
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			ID                string `json:"id"`
			Username          string `json:"username"`
			ProfilePictureURL string `json:"profile_picture_url"`
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

func (p *instagramProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
	accessToken := p.accessToken()
	if accessToken == "" {
		return ErrorResponse(nil, "no access token available")
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "user_id,username,account_type,profile_picture_url",
			"access_token": accessToken,
		}).
		Get(instagramGraphURL + "/me")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var data struct {
			UserID            string `json:"user_id"`
			Username          string `json:"username"`
			ProfilePictureURL string `json:"profile_picture_url"`
		}
		decodeInto(resp.Body(), &data)

		entity := Entity{
			ID:       data.UserID,
			Name:     data.Username,
			Username: data.Username,
			Image:    data.ProfilePictureURL,
		}
		if withAccessToken {
			entity.AccessToken = models.AccessToken{"access_token": accessToken}
		}

		return []Entity{entity}
	})
}

func (p *instagramProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	if len(media) == 0 {
		return ErrorResponse(nil, "instagram requires at least one media item")
	}

	igAccountID := p.values["provider_id"]

	if len(media) == 1 {
		if media[0].IsVideo() {
			return p.publishVideo(ctx, igAccountID, text, media[0])
		}
		if media[0].IsImage() {
			return p.publishImage(ctx, igAccountID, text, media[0])
		}
		return ErrorResponse(nil, "unsupported media type for instagram")
	}

	return p.publishCarousel(ctx, igAccountID, text, media)
}

func (p *instagramProvider) publishImage(ctx context.Context, igAccountID, text string, media models.MediaItem) Response {
	containerID, errResp := p.createContainer(ctx, igAccountID, map[string]string{
		"image_url": media.URL,
		"caption":   text,
	})
	if errResp != nil {
		return *errResp
	}

	return p.publishContainer(ctx, igAccountID, containerID)
}

func (p *instagramProvider) publishVideo(ctx context.Context, igAccountID, text string, media models.MediaItem) Response {
	containerID, errResp := p.createContainer(ctx, igAccountID, map[string]string{
		"media_type": "VIDEO",
		"video_url":  media.URL,
		"caption":    text,
	})
	if errResp != nil {
		return *errResp
	}

	if resp, ok := p.waitForContainer(ctx, containerID); !ok {
		return resp
	}

	return p.publishContainer(ctx, igAccountID, containerID)
}

func (p *instagramProvider) publishCarousel(ctx context.Context, igAccountID, text string, media []models.MediaItem) Response {
	var children []string

	for _, item := range media {
		params := map[string]string{"is_carousel_item": "true"}
		switch {
		case item.IsImage():
			params["image_url"] = item.URL
		case item.IsVideo():
			params["media_type"] = "VIDEO"
			params["video_url"] = item.URL
		default:
			continue
		}

		containerID, errResp := p.createContainer(ctx, igAccountID, params)
		if errResp != nil {
			continue
		}
		children = append(children, containerID)
	}

	if len(children) == 0 {
		return ErrorResponse(nil, "failed to create carousel containers")
	}

	carouselID, errResp := p.createContainer(ctx, igAccountID, map[string]string{
		"media_type": "CAROUSEL",
		"children":   strings.Join(children, ","),
		"caption":    text,
	})
	if errResp != nil {
		return *errResp
	}

	return p.publishContainer(ctx, igAccountID, carouselID)
}

func (p *instagramProvider) createContainer(ctx context.Context, igAccountID string, params map[string]string) (string, *Response) {
	params["access_token"] = p.accessToken()

	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(params).
		Post(instagramGraphURL + "/" + igAccountID + "/media")
	if err != nil {
		r := ErrorResponse(nil, err.Error())
		return "", &r
	}
	if resp.IsError() {
		r := buildResponse(resp, nil)
		return "", &r
	}

	var data struct {
		ID string `json:"id"`
	}
	decodeInto(resp.Body(), &data)
	if data.ID == "" {
		r := ErrorResponse(decodeBody(resp), "container creation returned no id")
		return "", &r
	}

	return data.ID, nil
}

// waitForContainer polls the container's status_code until it finishes. On
// failure the returned Response carries the stage-specific error and ok is
// false.
func (p *instagramProvider) waitForContainer(ctx context.Context, containerID string) (Response, bool) {
	err := pollContainerStatus(ctx, instagramPollAttempts, instagramPollDelay, func(ctx context.Context) (string, string, error) {
		resp, err := p.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"fields":       "status_code",
				"access_token": p.accessToken(),
			}).
			Get(instagramGraphURL + "/" + containerID)
		if err != nil || resp.IsError() {
			return "", "", errTransientPoll
		}

		var data struct {
			StatusCode string `json:"status_code"`
		}
		decodeInto(resp.Body(), &data)
		return data.StatusCode, "", nil
	})

	switch {
	case err == nil:
		return Response{}, true
	case isProcessingError(err):
		return ErrorResponse(nil, "video processing failed"), false
	default:
		return ErrorResponse(nil, "video processing timeout"), false
	}
}

func (p *instagramProvider) publishContainer(ctx context.Context, igAccountID, containerID string) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"creation_id":  containerID,
			"access_token": p.accessToken(),
		}).
		Post(instagramGraphURL + "/" + igAccountID + "/media_publish")
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

// DeletePost is a no-op: the platform offers no API deletion for published
// media.
func (p *instagramProvider) DeletePost(ctx context.Context, id string) Response {
	return OKResponse(map[string]any{})
}

func (p *instagramProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          2200,
		MinPhotos:            1,
		MaxPhotos:            10,
		MinVideos:            1,
		MaxVideos:            1,
		AllowMixingMediaType: true,
	}
}
