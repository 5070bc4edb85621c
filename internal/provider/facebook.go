package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
)

const (
	facebookGraphURL   = "https://graph.facebook.com"
	facebookAPIVersion = "v19.0"
)

func facebookAPIURL(path string) string {
	return facebookGraphURL + "/" + facebookAPIVersion + path
}

// facebookProvider handles the user-level OAuth flow and page enumeration.
// Publishing happens through facebookPageProvider; a bare user identity
// cannot post.
type facebookProvider struct {
	connection
}

func newFacebookProvider(creds config.ProviderCredentials, redirectURL string, values map[string]string, http *resty.Client) *facebookProvider {
	return &facebookProvider{
		connection: newConnection(creds.ClientID, creds.ClientSecret, redirectURL, values, http),
	}
}

func (p *facebookProvider) Name() string { return "facebook" }

func (p *facebookProvider) CallbackKeys() []string { return []string{"code"} }

func (p *facebookProvider) IsOnlyUserAccount() bool { return false }

func (p *facebookProvider) AuthURL(ctx context.Context) (string, error) {
	scopes := strings.Join([]string{
		"pages_show_list",
		"pages_read_engagement",
		"pages_manage_posts",
		"read_insights",
	}, ",")

	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", scopes)
	q.Set("response_type", "code")
	q.Set("state", p.state())

	return "https://www.facebook.com/" + facebookAPIVersion + "/dialog/oauth?" + q.Encode(), nil
}

// RequestAccessToken exchanges the code, then trades the result for a
// long-lived token via fb_exchange_token. The short-lived token is returned
// when the second exchange fails.
func (p *facebookProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"redirect_uri":  p.redirectURL,
			"code":          params["code"],
		}).
		Get(facebookAPIURL("/oauth/access_token"))
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
			"grant_type":        "fb_exchange_token",
			"client_id":         p.clientID,
			"client_secret":     p.clientSecret,
			"fb_exchange_token": shortLived.Token(),
		}).
		Get(facebookAPIURL("/oauth/access_token"))
	if err != nil || longResp.IsError() {
		return shortLived, nil
	}

	longLived, err := models.DecodeAccessToken(longResp.Body())
	if err != nil {
		return shortLived, nil
	}

	return longLived, nil
}

// RefreshAccessToken is unsupported: long-lived page tokens do not rotate
// through a refresh endpoint.
func (p *facebookProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	return nil, errRefreshUnsupported(p.Name())
}

func (p *facebookProvider) RefreshKey(token models.AccessToken) (string, bool) {
	return "", false
}

func (p *facebookProvider) GetAccount(ctx context.Context) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,name,picture{url}",
			"access_token": p.accessToken(),
		}).
		Get(facebookAPIURL("/me"))
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

// GetEntities lists the pages the authorized user manages. Each page carries
// its own access token, which becomes the page_access_token when the page is
// selected.
func (p *facebookProvider) GetEntities(ctx context.Context, withAccessToken bool) Response {
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,name,username,picture{url},access_token",
			"limit":        "100",
			"access_token": p.accessToken(),
		}).
		Get(facebookAPIURL("/me/accounts"))
	if err != nil {
		return ErrorResponse(nil, err.Error())
	}

	return buildResponse(resp, func() any {
		var payload struct {
			Data []facebookIdentity `json:"data"`
		}
		decodeInto(resp.Body(), &payload)

		entities := make([]Entity, 0, len(payload.Data))
		for _, page := range payload.Data {
			entity := Entity{
				ID:       page.ID,
				Name:     page.Name,
				Username: page.Username,
				Image:    page.Picture.Data.URL,
			}
			if withAccessToken {
				entity.AccessToken = models.AccessToken{"access_token": page.AccessToken}
			}
			entities = append(entities, entity)
		}

		return entities
	})
}

func (p *facebookProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) Response {
	return ErrorResponse(nil, "publishing requires a facebook page")
}

func (p *facebookProvider) DeletePost(ctx context.Context, id string) Response {
	return ErrorResponse(nil, "deleting requires a facebook page")
}

func (p *facebookProvider) PostConfigs() PostConfigs {
	return facebookPostConfigs()
}

func facebookPostConfigs() PostConfigs {
	return PostConfigs{
		SimultaneousPosting:  true,
		MinTextChar:          0,
		MaxTextChar:          5000,
		MinPhotos:            0,
		MaxPhotos:            10,
		MinVideos:            0,
		MaxVideos:            1,
		AllowMixingMediaType: false,
	}
}

type facebookIdentity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	Picture     struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func decodeFacebookIdentity(body []byte) facebookIdentity {
	var data facebookIdentity
	decodeInto(body, &data)
	return data
}
