package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youTubeChannelsURL = "https://www.googleapis.com/youtube/v3/channels"

	youTubeTitleLimit       = 100
	youTubeDescriptionLimit = 5000

	youTubeDefaultExpiresIn = 3600
)

type youTubeProvider struct {
	connection
	oauth *oauth2.Config
}

func newYouTubeProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *youTubeProvider {
	return &youTubeProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				youtube.YoutubeUploadScope,
				youtube.YoutubeScope,
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (p *youTubeProvider) Name() string { return "youtube" }

func (p *youTubeProvider) CallbackKeys() []string { return []string{"code"} }

func (p *youTubeProvider) IsOnlyUserAccount() bool { return true }

func (p *youTubeProvider) AuthURL(ctx context.Context) (string, error) {
	return p.oauth.AuthCodeURL(p.state(), oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (p *youTubeProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	token, err := p.oauth.Exchange(ctx, params["code"])
	if err != nil {
		return nil, fmt.Errorf("youtube: token exchange: %w", err)
	}

	result := models.AccessToken{
		"access_token": token.AccessToken,
		"expires_in":   int64(youTubeDefaultExpiresIn),
	}
	if !token.Expiry.IsZero() {
		result.SetExpiresAt(token.Expiry)
	}
	if token.RefreshToken != "" {
		result["refresh_token"] = token.RefreshToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		result["scope"] = scope
	}

	return result, nil
}

func (p *youTubeProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	source := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshKey})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("youtube: token refresh: %w", err)
	}

	result := models.AccessToken{
		"access_token":  token.AccessToken,
		"expires_in":    int64(youTubeDefaultExpiresIn),
		"refresh_token": refreshKey,
	}
	if !token.Expiry.IsZero() {
		result.SetExpiresAt(token.Expiry)
	}
	if token.RefreshToken != "" {
		result["refresh_token"] = token.RefreshToken
	}

	return result, nil
}

func (p *youTubeProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if rt := token.RefreshToken(); rt != "" {
		return rt, true
	}
	return "", false
}

func (p *youTubeProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetQueryParams(map[string]string{
			"part": "snippet,contentDetails",
			"mine": "true",
		}).
		Get(youTubeChannelsURL)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildQuotaResponse(resp, func() any {
		var payload struct {
			Items []struct {
				ID      string `json:"id"`
				Snippet struct {
					Title      string `json:"title"`
					CustomURL  string `json:"customUrl"`
					Thumbnails struct {
						Default struct {
							URL string `json:"url"`
						} `json:"default"`
					} `json:"thumbnails"`
				} `json:"snippet"`
			} `json:"items"`
		}
		decodeInto(resp.Body(), &payload)

		if len(payload.Items) == 0 {
			return map[string]any{}
		}

		channel := payload.Items[0]
		username := channel.Snippet.CustomURL
		if username == "" {
			username = channel.ID
		}

		return map[string]any{
			"id":       channel.ID,
			"name":     channel.Snippet.Title,
			"username": username,
			"image":    channel.Snippet.Thumbnails.Default.URL,
		}
	})
}

func (p *youTubeProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

func (p *youTubeProvider) service(ctx context.Context) (*youtube.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.accessToken()})
	return youtube.NewService(ctx, option.WithTokenSource(source))
}

// PublishPost uploads one video through the resumable upload protocol the
// client library drives. The first line of text becomes the title, the rest
// the description.
func (p *youTubeProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	if len(media) == 0 {
		return ErrorResponse(nil, "youtube requires video content")
	}
	video := media[0]
	if !video.IsVideo() {
		return ErrorResponse(nil, "youtube only supports video uploads")
	}

	title, description := splitTitle(text)
	if isShort, _ := params["is_short"].(bool); isShort {
		title = "#Shorts " + title
	}
	title = truncate(title, youTubeTitleLimit)
	description = truncate(description, youTubeDescriptionLimit)

	categoryID, _ := params["category_id"].(string)
	if categoryID == "" {
		categoryID = "22"
	}
	privacy, _ := params["privacy"].(string)
	if privacy == "" {
		privacy = "public"
	}
	madeForKids, _ := params["made_for_kids"].(bool)

	snippet := &youtube.VideoSnippet{
		Title:       title,
		Description: description,
		CategoryId:  categoryID,
	}
	if tags, ok := params["tags"].([]string); ok {
		snippet.Tags = tags
	}

	raw, err := p.http.R().SetContext(ctx).Get(video.URL)
	if err != nil || raw.IsError() {
		return ErrorResponse(nil, "failed to read video file")
	}

	service, err := p.service(ctx)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, &youtube.Video{
		Snippet: snippet,
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: madeForKids,
		},
	})

	uploaded, err := call.Media(bytes.NewReader(raw.Body()), googleapi.ContentType(video.Mime)).Do()
	if err != nil {
		return classifyGoogleError(err)
	}

	return OKResponse(map[string]any{"id": uploaded.Id})
}

func (p *youTubeProvider) DeletePost(ctx context.Context, id string) Response {
	service, err := p.service(ctx)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	if err := service.Videos.Delete(id).Do(); err != nil {
		return classifyGoogleError(err)
	}

	return OKResponse(map[string]any{})
}

func (p *youTubeProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          5000,
		MinPhotos:            0,
		MaxPhotos:            0,
		MinVideos:            1,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}

// classifyGoogleError maps a client-library error to an envelope, honoring
// the quota reason codes the API reports through 403.
func classifyGoogleError(err error) Response {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return ErrorResponse(nil, err.Error())
	}

	switch apiErr.Code {
	case 401:
		return UnauthorizedResponse()
	case 429:
		return RateLimitResponse(defaultRetryAfter, false)
	case 403:
		for _, item := range apiErr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
				return RateLimitResponse(defaultRetryAfter, true)
			}
		}
	}

	return ErrorResponse(map[string]any{"body": apiErr.Body}, apiErr.Message)
}

func splitTitle(text string) (title, description string) {
	parts := strings.SplitN(text, "\n", 2)
	title = parts[0]
	if len(parts) > 1 {
		description = parts[1]
	}
	return title, description
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
