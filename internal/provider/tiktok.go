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
	tikTokAPIURL  = "https://open.tiktokapis.com/v2"
	tikTokAuthURL = "https://www.tiktok.com/v2/auth/authorize/"

	tikTokVideoChunkSize = 10000000
)

type tikTokProvider struct {
	connection
}

func newTikTokProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *tikTokProvider {
	return &tikTokProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *tikTokProvider) Name() string { return "tiktok" }

func (p *tikTokProvider) CallbackKeys() []string { return []string{"code"} }

func (p *tikTokProvider) IsOnlyUserAccount() bool { return true }

func (p *tikTokProvider) AuthURL(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("client_key", p.clientID)
	q.Set("scope", "user.info.basic,video.publish")
	q.Set("response_type", "code")
	q.Set("redirect_uri", p.redirectURL)
	q.Set("state", p.state())

	return tikTokAuthURL + "?" + q.Encode(), nil
}

// tikTokToken tolerates both response shapes the token endpoint has used:
// fields at the top level or wrapped in data.
func tikTokToken(body []byte) (models.AccessToken, error) {
	var wrapped struct {
		Data map[string]any `json:"data"`
	}
	decodeInto(body, &wrapped)
	if len(wrapped.Data) > 0 {
		token := models.AccessToken(wrapped.Data)
		if token.Token() != "" {
			return token, nil
		}
	}

	token, err := models.DecodeAccessToken(body)
	if err != nil {
		return nil, err
	}
	if token.Token() == "" {
		return nil, fmt.Errorf("tiktok: no access token in response")
	}

	return token, nil
}

func (p *tikTokProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_key":    p.clientID,
			"client_secret": p.clientSecret,
			"code":          params["code"],
			"grant_type":    "authorization_code",
			"redirect_uri":  p.redirectURL,
		}).
		Post(tikTokAPIURL + "/oauth/token/")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, tokenExchangeError(p.Name(), resp)
	}

	return tikTokToken(resp.Body())
}

func (p *tikTokProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_key":    p.clientID,
			"client_secret": p.clientSecret,
			"grant_type":    "refresh_token",
			"refresh_token": refreshKey,
		}).
		Post(tikTokAPIURL + "/oauth/token/")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, tokenExchangeError(p.Name(), resp)
	}

	return tikTokToken(resp.Body())
}

func (p *tikTokProvider) RefreshKey(token models.AccessToken) (string, bool) {
	if rt := token.RefreshToken(); rt != "" {
		return rt, true
	}
	return "", false
}

func (p *tikTokProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetQueryParam("fields", "open_id,union_id,avatar_url,display_name").
		Get(tikTokAPIURL + "/user/info/")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var payload struct {
			Data struct {
				User struct {
					OpenID      string `json:"open_id"`
					DisplayName string `json:"display_name"`
					AvatarURL   string `json:"avatar_url"`
				} `json:"user"`
			} `json:"data"`
		}
		decodeInto(resp.Body(), &payload)

		return map[string]any{
			"id":       payload.Data.User.OpenID,
			"name":     payload.Data.User.DisplayName,
			"username": payload.Data.User.DisplayName,
			"image":    payload.Data.User.AvatarURL,
		}
	})
}

func (p *tikTokProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
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

func (p *tikTokProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	if len(media) == 0 {
		return ErrorResponse(nil, "tiktok requires at least one video or image for posting")
	}

	first := media[0]
	if first.IsVideo() {
		return p.publishVideo(ctx, text, first)
	}
	if first.IsImage() {
		return p.publishSlideshow(ctx, text, media)
	}

	return ErrorResponse(nil, "unsupported media type for tiktok")
}

// publishVideo runs the direct-post protocol: init returns a publish id plus
// an upload url, the video bytes go up with a Content-Range header, and
// finalization happens asynchronously on the platform side. The publish id
// is returned as the post id.
func (p *tikTokProvider) publishVideo(ctx context.Context, text string, media models.MediaItem) Response {
	title := text
	if title == "" {
		title = "Video Post"
	}

	initResp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetBody(map[string]any{
			"post_info": map[string]any{
				"title":                    title,
				"privacy_level":            "SELF_ONLY",
				"disable_duet":             false,
				"disable_comment":          false,
				"disable_stitch":           false,
				"video_cover_timestamp_ms": 1000,
			},
			"source_info": map[string]any{
				"source":            "FILE_UPLOAD",
				"video_size":        media.Size,
				"chunk_size":        tikTokVideoChunkSize,
				"total_chunk_count": 1,
			},
		}).
		Post(tikTokAPIURL + "/post/publish/video/init/")
	if err != nil || initResp.IsError() {
		return ErrorResponse(nil, "failed to initialize video upload")
	}

	var init struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
	}
	decodeInto(initResp.Body(), &init)

	if init.Data.PublishID == "" || init.Data.UploadURL == "" {
		return ErrorResponse(nil, "failed to initialize video upload")
	}

	raw, err := p.fetchMedia(ctx, media.URL)
	if err != nil {
		return ErrorResponse(nil, "failed to upload video file")
	}

	uploadResp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", media.Mime).
		SetHeader("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(raw)-1, len(raw))).
		SetBody(raw).
		Put(init.Data.UploadURL)
	if err != nil || uploadResp.IsError() {
		return ErrorResponse(nil, "failed to upload video file")
	}

	statusResp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetBody(map[string]string{"publish_id": init.Data.PublishID}).
		Post(tikTokAPIURL + "/post/publish/status/fetch/")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}
	if statusResp.IsError() {
		return buildResponse(statusResp, nil)
	}

	return OKResponse(map[string]any{"id": init.Data.PublishID})
}

// publishSlideshow uploads each image separately and aggregates the
// successful ones into a photo-mode post. Failed uploads are skipped.
func (p *tikTokProvider) publishSlideshow(ctx context.Context, text string, media []models.MediaItem) Response {
	var images []map[string]string

	for _, item := range media {
		if !item.IsImage() {
			continue
		}

		initResp, err := p.http.R().
			SetContext(ctx).
			SetAuthToken(p.accessToken()).
			SetBody(map[string]any{
				"source_info": map[string]string{"source": "FILE_UPLOAD"},
			}).
			Post(tikTokAPIURL + "/post/publish/inbox/video/init/")
		if err != nil || initResp.IsError() {
			continue
		}

		var init struct {
			Data struct {
				UploadURL string `json:"upload_url"`
				PhotoID   string `json:"photo_id"`
			} `json:"data"`
		}
		decodeInto(initResp.Body(), &init)
		if init.Data.UploadURL == "" {
			continue
		}

		raw, err := p.fetchMedia(ctx, item.URL)
		if err != nil {
			continue
		}

		uploadResp, err := p.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", item.Mime).
			SetBody(raw).
			Put(init.Data.UploadURL)
		if err != nil || uploadResp.IsError() || init.Data.PhotoID == "" {
			continue
		}

		images = append(images, map[string]string{"photo_id": init.Data.PhotoID})
	}

	if len(images) == 0 {
		return ErrorResponse(nil, "failed to upload images")
	}

	title := text
	if title == "" {
		title = "Photo Post"
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken()).
		SetBody(map[string]any{
			"post_info": map[string]any{
				"title":           title,
				"privacy_level":   "SELF_ONLY",
				"disable_duet":    false,
				"disable_comment": false,
				"disable_stitch":  false,
			},
			"source_info": map[string]any{
				"source":       "PHOTO_MODE",
				"photo_images": images,
			},
		}).
		Post(tikTokAPIURL + "/post/publish/content/init/")
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}
	if resp.IsError() {
		return buildResponse(resp, nil)
	}

	var publish struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
	}
	decodeInto(resp.Body(), &publish)

	if publish.Data.PublishID == "" {
		return ErrorResponse(decodeBody(resp), "failed to publish slideshow")
	}

	return OKResponse(map[string]any{"id": publish.Data.PublishID})
}

func (p *tikTokProvider) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	resp, err := p.http.R().SetContext(ctx).Get(mediaURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: %s", mediaURL, resp.Status())
	}
	return resp.Body(), nil
}

// DeletePost is a no-op: the posting API offers no deletion.
func (p *tikTokProvider) DeletePost(ctx context.Context, id string) Response {
	return OKResponse(map[string]any{})
}

func (p *tikTokProvider) PostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          2200,
		MinPhotos:            1,
		MaxPhotos:            35,
		MinVideos:            1,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}
