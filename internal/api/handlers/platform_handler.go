package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/service"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

type PlatformHandler struct {
	oauth service.OAuthService
	cfg   *config.Config
}

func NewPlatformHandler(oauth service.OAuthService, cfg *config.Config) *PlatformHandler {
	return &PlatformHandler{
		oauth: oauth,
		cfg:   cfg,
	}
}

// AddSocialAccount starts the authorization flow for a provider. The state
// query is passed through untouched so signed cross-domain states survive
// the round trip; local flows get a fresh random state.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" {
		var err error
		state, err = utils.SingleUseToken()
		if err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong",
			})
		}
	}

	values := map[string]string{
		"oauth_state": state,
	}
	if server := c.Query("server"); server != "" {
		values["server"] = server
	}

	authURL, err := h.oauth.GetAuthURL(c.Context(), c.Params("provider"), values)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to start authorization",
		})
	}

	return c.Redirect(authURL)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	result, err := h.oauth.HandleCallback(c.Context(), c.Params("provider"), c.Queries())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	return c.Redirect(result.RedirectURL, fiber.StatusTemporaryRedirect)
}
