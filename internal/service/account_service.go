package service

import (
	"context"
	"fmt"
	"log/slog"

	cfg "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

// AccountUpsert carries everything needed to persist a freshly connected
// identity.
type AccountUpsert struct {
	OrganizationID string
	Provider       string
	ProviderID     string
	Name           string
	Username       string
	Image          string
	AccessToken    models.AccessToken
	Data           map[string]any
	ConnectedBy    string
}

type AccountService interface {
	UpdateOrCreate(ctx context.Context, upsert AccountUpsert) (*models.Account, error)
}

type accountService struct {
	config   *cfg.Config
	accounts repository.AccountRepository
	avatars  *AvatarService
}

func NewAccountService(config *cfg.Config, accounts repository.AccountRepository, avatars *AvatarService) AccountService {
	return &accountService{
		config:   config,
		accounts: accounts,
		avatars:  avatars,
	}
}

// UpdateOrCreate encrypts the token bag and upserts the account by its
// natural key. Avatar storage is best effort and never fails the connect.
func (s *accountService) UpdateOrCreate(ctx context.Context, upsert AccountUpsert) (*models.Account, error) {
	encoded, err := upsert.AccessToken.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}

	encrypted, err := utils.Encrypt([]byte(encoded), []byte(s.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}

	uuid, err := utils.UUID()
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		UUID:           uuid,
		OrganizationID: upsert.OrganizationID,
		Provider:       upsert.Provider,
		ProviderID:     upsert.ProviderID,
		Name:           upsert.Name,
		Username:       upsert.Username,
		Authorized:     true,
		AccessToken:    encrypted,
		Data:           upsert.Data,
		ConnectedBy:    upsert.ConnectedBy,
	}

	media, err := s.avatars.Store(ctx, upsert.Provider, upsert.Image)
	if err != nil {
		slog.Warn("avatar store failed",
			"provider", upsert.Provider,
			"provider_id", upsert.ProviderID,
			"error", err)
	} else {
		account.Media = media
	}

	id, err := s.accounts.Upsert(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ID = id

	return account, nil
}
