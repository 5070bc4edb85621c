package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

// facebookPageProvider posts as a Facebook Page. The token bag carries both
// the user token and a page_access_token; all page-scoped calls use the
// latter.
type facebookPageProvider struct {
	facebookProvider
}

func newFacebookPageProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *facebookPageProvider {
	return &facebookPageProvider{
		facebookProvider: facebookProvider{
			connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
		},
	}
}

func (p *facebookPageProvider) Name() string { return "facebook_page" }

func (p *facebookPageProvider) pageToken() string {
	if t, ok := p.token["page_access_token"].(string); ok && t != "" {
		return t
	}
	return p.accessToken()
}

func (p *facebookPageProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,name,username,picture{url}",
			"access_token": p.pageToken(),
		}).
		Get(facebookAPIURL("/" + p.values["provider_id"]))
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		data := decodeFacebookIdentity(resp.Body())
		return map[string]any{
			"id":       data.ID,
			"name":     data.Name,
			"username": data.Username,
			"image":    data.Picture.Data.URL,
		}
	})
}

func (p *facebookPageProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	pageID := p.values["provider_id"]

	if len(media) == 1 && media[0].IsVideo() {
		return p.publishVideo(ctx, pageID, text, media[0])
	}
	if len(media) > 0 {
		return p.publishPhotos(ctx, pageID, text, media)
	}

	return p.publishText(ctx, pageID, text, params)
}

func (p *facebookPageProvider) publishText(ctx context.Context, pageID, text string, params map[string]any) Response {
	form := map[string]string{
		"message":      text,
		"access_token": p.pageToken(),
	}
	if link, ok := params["url"].(string); ok && link != "" {
		form["link"] = link
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(facebookAPIURL("/" + pageID + "/feed"))
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

// publishPhotos uploads each photo unpublished, then attaches the uploaded
// set to one feed post. Photos that fail to upload are skipped; the post is
// attempted as long as at least one upload succeeded.
func (p *facebookPageProvider) publishPhotos(ctx context.Context, pageID, text string, media []models.MediaItem) Response {
	var photoIDs []string

	for _, item := range media {
		if !item.IsImage() {
			continue
		}

		resp, err := p.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"url":          item.URL,
				"published":    "false",
				"access_token": p.pageToken(),
			}).
			Post(facebookAPIURL("/" + pageID + "/photos"))
		if err != nil || resp.IsError() {
			continue
		}

		var data struct {
			ID string `json:"id"`
		}
		decodeInto(resp.Body(), &data)
		if data.ID != "" {
			photoIDs = append(photoIDs, data.ID)
		}
	}

	if len(photoIDs) == 0 {
		return ErrorResponse(nil, "failed to upload media")
	}

	form := map[string]string{
		"message":      text,
		"access_token": p.pageToken(),
	}
	for i, id := range photoIDs {
		form["attached_media["+strconv.Itoa(i)+"]"] = `{"media_fbid":"` + id + `"}`
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(facebookAPIURL("/" + pageID + "/feed"))
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

func (p *facebookPageProvider) publishVideo(ctx context.Context, pageID, text string, media models.MediaItem) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"file_url":     media.URL,
			"description":  text,
			"access_token": p.pageToken(),
		}).
		Post(facebookAPIURL("/" + pageID + "/videos"))
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

func (p *facebookPageProvider) DeletePost(ctx context.Context, id string) Response {
	// Feed ids arrive as pageid_postid; deletion wants the post part with the
	// page token.
	if i := strings.Index(id, "_"); i >= 0 {
		id = id[i+1:]
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", p.pageToken()).
		Delete(facebookAPIURL("/" + p.values["provider_id"] + "_" + id))
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, nil)
}

func (p *facebookPageProvider) PostConfigs() PostConfigs {
	return facebookPostConfigs()
}
