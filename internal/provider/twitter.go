package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	twitterOAuth1 "github.com/dghubble/oauth1/twitter"
	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	twitterAPIURL    = "https://api.twitter.com/2"
	twitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	twitterSecretKeyPrefix = "twitter_oauth_secret:"
	twitterSecretTTL       = 15 * time.Minute

	twitterUploadChunkSize = 4 * 1024 * 1024

	twitterPollAttempts = 20
	twitterPollDelay    = 3 * time.Second
)

// twitterProvider signs requests with OAuth 1.0a. The protocol has no state
// parameter and splits the handshake across a request-token round trip, so
// the request-token secret is parked in the single-use store between the
// redirect and the callback.
type twitterProvider struct {
	connection
	oauth   *oauth1.Config
	secrets TokenSecretStore
}

func newTwitterProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client, secrets TokenSecretStore) *twitterProvider {
	callbackURL := redirectURL
	if state := values["oauth_state"]; state != "" {
		callbackURL += "?state=" + url.QueryEscape(state)
	}

	return &twitterProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
		oauth: &oauth1.Config{
			ConsumerKey:    creds.ClientID,
			ConsumerSecret: creds.ClientSecret,
			CallbackURL:    callbackURL,
			Endpoint:       twitterOAuth1.AuthorizeEndpoint,
		},
		secrets: secrets,
	}
}

func (p *twitterProvider) Name() string { return "twitter" }

func (p *twitterProvider) CallbackKeys() []string { return []string{"oauth_token", "oauth_verifier"} }

func (p *twitterProvider) IsOnlyUserAccount() bool { return true }

func (p *twitterProvider) AuthURL(ctx context.Context) (string, error) {
	requestToken, requestSecret, err := p.oauth.RequestToken()
	if err != nil {
		return "", fmt.Errorf("twitter: request token: %w", err)
	}

	if err := p.secrets.Put(ctx, twitterSecretKeyPrefix+requestToken, requestSecret, twitterSecretTTL); err != nil {
		return "", fmt.Errorf("twitter: store request secret: %w", err)
	}

	authorizationURL, err := p.oauth.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("twitter: authorization url: %w", err)
	}

	return authorizationURL.String(), nil
}

func (p *twitterProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	requestToken := params["oauth_token"]

	var requestSecret string
	found, err := p.secrets.Pull(ctx, twitterSecretKeyPrefix+requestToken, &requestSecret)
	if err != nil {
		return nil, fmt.Errorf("twitter: pull request secret: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("twitter: request token secret expired")
	}

	accessToken, accessSecret, err := p.oauth.AccessToken(requestToken, requestSecret, params["oauth_verifier"])
	if err != nil {
		return nil, fmt.Errorf("twitter: access token exchange: %w", err)
	}

	return models.AccessToken{
		"oauth_token":        accessToken,
		"oauth_token_secret": accessSecret,
	}, nil
}

func (p *twitterProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	return nil, errRefreshUnsupported(p.Name())
}

// RefreshKey always reports false: OAuth1 token pairs never expire, so the
// lifecycle sweep skips twitter accounts.
func (p *twitterProvider) RefreshKey(token models.AccessToken) (string, bool) {
	return "", false
}

// signedClient builds a resty client whose transport signs every request
// with the bound token pair.
func (p *twitterProvider) signedClient(ctx context.Context) *resty.Client {
	tok, _ := p.token["oauth_token"].(string)
	secret, _ := p.token["oauth_token_secret"].(string)
	httpClient := p.oauth.Client(ctx, oauth1.NewToken(tok, secret))
	httpClient.Timeout = p.http.GetClient().Timeout
	return resty.NewWithClient(httpClient)
}

func (p *twitterProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.signedClient(ctx).R().
		SetContext(ctx).
		SetQueryParam("user.fields", "profile_image_url,username").
		Get(twitterAPIURL + "/users/me")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var payload struct {
			Data struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				Username        string `json:"username"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"data"`
		}
		decodeInto(resp.Body(), &payload)

		return map[string]any{
			"id":       payload.Data.ID,
			"name":     payload.Data.Name,
			"username": payload.Data.Username,
			"image":    payload.Data.ProfileImageURL,
		}
	})
}

func (p *twitterProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

func (p *twitterProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	client := p.signedClient(ctx)

	var mediaIDs []string
	for _, item := range media {
		id, errResp := p.uploadMedia(ctx, client, item)
		if errResp != nil {
			return *errResp
		}
		mediaIDs = append(mediaIDs, id)
	}

	body := map[string]any{"text": text}
	if len(mediaIDs) > 0 {
		body["media"] = map[string]any{"media_ids": mediaIDs}
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(twitterAPIURL + "/tweets")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var payload struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		decodeInto(resp.Body(), &payload)
		return map[string]any{"id": payload.Data.ID}
	})
}

// uploadMedia sends one media item through the v1.1 upload endpoint. Images
// go up in one base64 request; videos use the chunked INIT/APPEND/FINALIZE
// protocol with a bounded processing poll.
func (p *twitterProvider) uploadMedia(ctx context.Context, client *resty.Client, item models.MediaItem) (string, *Response) {
	raw, err := p.fetchMedia(ctx, item.URL)
	if err != nil {
		r := ErrorResponse(nil, "failed to fetch media: "+err.Error())
		return "", &r
	}

	if item.IsVideo() {
		return p.uploadChunked(ctx, client, item, raw)
	}

	resp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"media_data": base64.StdEncoding.EncodeToString(raw),
		}).
		Post(twitterUploadURL)
	if err != nil {
		r := ErrorResponse(nil, "failed to upload media: "+err.Error())
		return "", &r
	}
	if resp.IsError() {
		r := buildResponse(resp, nil)
		return "", &r
	}

	return uploadedMediaID(resp.Body()), nil
}

func (p *twitterProvider) uploadChunked(ctx context.Context, client *resty.Client, item models.MediaItem, raw []byte) (string, *Response) {
	initResp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"command":        "INIT",
			"media_type":     item.Mime,
			"total_bytes":    strconv.Itoa(len(raw)),
			"media_category": "tweet_video",
		}).
		Post(twitterUploadURL)
	if err != nil || initResp.IsError() {
		r := ErrorResponse(nil, "failed to initialize video upload")
		return "", &r
	}

	mediaID := uploadedMediaID(initResp.Body())

	for segment := 0; segment*twitterUploadChunkSize < len(raw); segment++ {
		start := segment * twitterUploadChunkSize
		end := min(start+twitterUploadChunkSize, len(raw))

		appendResp, err := client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"command":       "APPEND",
				"media_id":      mediaID,
				"segment_index": strconv.Itoa(segment),
				"media_data":    base64.StdEncoding.EncodeToString(raw[start:end]),
			}).
			Post(twitterUploadURL)
		if err != nil || appendResp.IsError() {
			r := ErrorResponse(nil, "failed to upload video chunk")
			return "", &r
		}
	}

	finalizeResp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"command":  "FINALIZE",
			"media_id": mediaID,
		}).
		Post(twitterUploadURL)
	if err != nil || finalizeResp.IsError() {
		r := ErrorResponse(nil, "failed to finalize video upload")
		return "", &r
	}

	if errResp := p.waitForProcessing(ctx, client, mediaID); errResp != nil {
		return "", errResp
	}

	return mediaID, nil
}

func (p *twitterProvider) waitForProcessing(ctx context.Context, client *resty.Client, mediaID string) *Response {
	err := pollContainerStatus(ctx, twitterPollAttempts, twitterPollDelay, func(ctx context.Context) (string, string, error) {
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"command":  "STATUS",
				"media_id": mediaID,
			}).
			Get(twitterUploadURL)
		if err != nil || resp.IsError() {
			return "", "", errTransientPoll
		}

		var payload struct {
			ProcessingInfo struct {
				State string `json:"state"`
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"processing_info"`
		}
		decodeInto(resp.Body(), &payload)

		switch payload.ProcessingInfo.State {
		case "succeeded", "":
			return pollStatusFinished, "", nil
		case "failed":
			return pollStatusError, payload.ProcessingInfo.Error.Message, nil
		default:
			return payload.ProcessingInfo.State, "", nil
		}
	})

	switch {
	case err == nil:
		return nil
	case isProcessingError(err):
		r := ErrorResponse(nil, err.Error())
		return &r
	default:
		r := ErrorResponse(nil, "video processing timeout")
		return &r
	}
}

func (p *twitterProvider) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	resp, err := p.http.R().SetContext(ctx).Get(mediaURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: %s", mediaURL, resp.Status())
	}
	return resp.Body(), nil
}

func (p *twitterProvider) DeletePost(ctx context.Context, id string) Response {
	resp, err := p.signedClient(ctx).R().
		SetContext(ctx).
		Delete(twitterAPIURL + "/tweets/" + id)
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, nil)
}

func (p *twitterProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  false,
		MinTextChar:          0,
		MaxTextChar:          280,
		MinPhotos:            0,
		MaxPhotos:            4,
		MinVideos:            0,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}

func uploadedMediaID(body []byte) string {
	var payload struct {
		MediaIDString string `json:"media_id_string"`
	}
	decodeInto(body, &payload)
	return payload.MediaIDString
}
