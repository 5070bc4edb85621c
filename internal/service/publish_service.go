package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	cfg "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

type PublishService interface {
	Publish(ctx context.Context, account *models.Account, post *models.Post) provider.Response
}

type publishService struct {
	config    *cfg.Config
	connector provider.Connector
	posts     repository.PostRepository
	locks     *AccountLocker
}

func NewPublishService(config *cfg.Config, connector provider.Connector, posts repository.PostRepository, locks *AccountLocker) PublishService {
	return &publishService{
		config:    config,
		connector: connector,
		posts:     posts,
		locks:     locks,
	}
}

// Publish sends one post to one account and records the outcome on the
// post-account relation. The envelope is returned so the scheduler can act
// on unauthorized and rate-limit signals.
func (s *publishService) Publish(ctx context.Context, account *models.Account, post *models.Post) provider.Response {
	version := post.VersionFor(account.ID)
	if version == nil || emptyVersion(version) {
		s.recordErrors(ctx, post.ID, account.ID, []string{"no content for this account"})
		return provider.ErrorResponse(nil, "no content for this account")
	}

	text, media := flattenVersion(version)

	p, err := s.connector.Connect(account.Provider, account.Values())
	if err != nil {
		s.recordErrors(ctx, post.ID, account.ID, []string{err.Error()})
		return provider.ErrorResponse(nil, err.Error())
	}

	// Reads of the token serialize against a refresh in flight for the
	// same account.
	s.locks.Lock(account.ID)
	token, err := s.decryptToken(account)
	s.locks.Unlock(account.ID)
	if err != nil {
		s.recordErrors(ctx, post.ID, account.ID, []string{err.Error()})
		return provider.ErrorResponse(nil, err.Error())
	}
	p.SetAccessToken(token)

	if err := p.PostConfigs().Validate(text, media); err != nil {
		s.recordErrors(ctx, post.ID, account.ID, []string{err.Error()})
		return provider.ErrorResponse(nil, err.Error())
	}

	resp := p.PublishPost(ctx, text, media, version.Options)
	if resp.HasError() {
		s.recordErrors(ctx, post.ID, account.ID, errorContext(resp))
		return resp
	}

	if err := s.posts.InsertProviderData(ctx, post.ID, account.ID, resp.ID(), resp.Context()); err != nil {
		slog.Error("recording publish outcome failed",
			"post_id", post.ID,
			"account_id", account.ID,
			"error", err)
	}

	return resp
}

func (s *publishService) decryptToken(account *models.Account) (models.AccessToken, error) {
	decrypted, err := utils.Decrypt(account.AccessToken, []byte(s.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}
	return models.DecodeAccessToken([]byte(decrypted))
}

func (s *publishService) recordErrors(ctx context.Context, postID, accountID int64, errs []string) {
	if err := s.posts.InsertErrors(ctx, postID, accountID, errs); err != nil {
		slog.Error("recording publish errors failed",
			"post_id", postID,
			"account_id", accountID,
			"error", err)
	}
}

func emptyVersion(version *models.PostVersion) bool {
	for _, content := range version.Content {
		if strings.TrimSpace(content.Body) != "" || len(content.Media) > 0 {
			return false
		}
	}
	return true
}

// flattenVersion joins the content blocks into one body and one media list.
func flattenVersion(version *models.PostVersion) (string, []models.MediaItem) {
	var parts []string
	var media []models.MediaItem
	for _, content := range version.Content {
		if body := strings.TrimSpace(content.Body); body != "" {
			parts = append(parts, body)
		}
		media = append(media, content.Media...)
	}
	return strings.Join(parts, "\n\n"), media
}

// errorContext extracts the richest error payload available: the structured
// context when the provider returned one, else the bare message.
func errorContext(resp provider.Response) []string {
	switch ctx := resp.Context().(type) {
	case []string:
		if len(ctx) > 0 {
			return ctx
		}
	case map[string]any:
		if len(ctx) > 0 {
			if raw, err := json.Marshal(ctx); err == nil {
				return []string{string(raw)}
			}
		}
	}

	if msg := resp.ErrorMessage(); msg != "" {
		return []string{msg}
	}
	return []string{string(resp.Status())}
}
