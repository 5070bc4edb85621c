package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postbridge/internal/service"
)

type OAuthHandler struct {
	oauth service.OAuthService
}

func NewOAuthHandler(oauth service.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth}
}

type tokenRequest struct {
	Token string `json:"token"`
}

type selectEntityRequest struct {
	Token    string `json:"token"`
	EntityID string `json:"entity_id"`
}

// ExchangeHandoff trades a handoff token for the stored connection outcome.
// The token burns on first use, a replay gets invalid_token.
func (h *OAuthHandler) ExchangeHandoff(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token is required",
		})
	}

	result, err := h.oauth.ExchangeHandoff(c.Context(), req.Token)
	if err != nil {
		return oauthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *OAuthHandler) ListEntities(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token is required",
		})
	}

	entities, err := h.oauth.ResolveEntities(c.Context(), token)
	if err != nil {
		return oauthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"entities": entities,
	})
}

func (h *OAuthHandler) SelectEntity(c *fiber.Ctx) error {
	var req selectEntityRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.EntityID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token and entity_id are required",
		})
	}

	account, err := h.oauth.SelectEntity(c.Context(), req.Token, req.EntityID)
	if err != nil {
		return oauthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"account_id":   account.ID,
		"account_uuid": account.UUID,
		"provider":     account.Provider,
	})
}

func oauthError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrInvalidToken) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_token",
		})
	}

	slog.Info(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal_error",
	})
}
