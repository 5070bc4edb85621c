package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cfg "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/internal/service"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

const (
	// refreshThreshold is how close to expiry a token must be before the
	// sweep rotates it.
	refreshThreshold = 7 * 24 * time.Hour

	maxConcurrentRefreshes = 10
)

// TokenRefreshJob sweeps authorized accounts and rotates tokens nearing
// expiry. One account's failure never aborts the sweep.
type TokenRefreshJob struct {
	config    *cfg.Config
	accounts  repository.AccountRepository
	connector provider.Connector
	locks     *service.AccountLocker
}

func NewTokenRefreshJob(config *cfg.Config, accounts repository.AccountRepository, connector provider.Connector, locks *service.AccountLocker) *TokenRefreshJob {
	return &TokenRefreshJob{
		config:    config,
		accounts:  accounts,
		connector: connector,
		locks:     locks,
	}
}

// RefreshTokens runs one sweep and reports aggregate counts.
func (j *TokenRefreshJob) RefreshTokens(ctx context.Context) (refreshed, failed int) {
	accounts, err := j.accounts.ListAuthorized(ctx)
	if err != nil {
		slog.Error("listing accounts for refresh failed", "error", err)
		return 0, 0
	}

	var refreshedCount, failedCount atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentRefreshes)

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{}

		go func(account *models.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			done, err := j.refreshAccount(ctx, account)
			if err != nil {
				slog.Warn("token refresh failed",
					"account_id", account.ID,
					"provider", account.Provider,
					"error", err)
				failedCount.Add(1)
				return
			}
			if done {
				refreshedCount.Add(1)
			}
		}(account)
	}

	wg.Wait()
	return int(refreshedCount.Load()), int(failedCount.Load())
}

// refreshAccount rotates one account's token when due. Returns false with a
// nil error when the token is not refreshable or not yet due.
func (j *TokenRefreshJob) refreshAccount(ctx context.Context, account *models.Account) (bool, error) {
	j.locks.Lock(account.ID)
	defer j.locks.Unlock(account.ID)

	token, err := j.decryptToken(account)
	if err != nil {
		return false, err
	}

	p, err := j.connector.Connect(account.Provider, account.Values())
	if err != nil {
		return false, err
	}

	refreshKey, ok := p.RefreshKey(token)
	if !ok {
		return false, nil
	}

	if !dueForRefresh(token, account.UpdatedAt) {
		return false, nil
	}

	fresh, err := p.RefreshAccessToken(ctx, refreshKey)
	if err != nil {
		return false, err
	}

	merged := token.Merge(fresh)
	if expiresIn, ok := fresh.ExpiresIn(); ok {
		merged.SetExpiresAt(time.Now().Add(time.Duration(expiresIn) * time.Second))
	}

	encoded, err := merged.Encode()
	if err != nil {
		return false, err
	}
	encrypted, err := utils.Encrypt([]byte(encoded), []byte(j.config.SecretKey))
	if err != nil {
		return false, err
	}

	if err := j.accounts.UpdateAccessToken(ctx, account.ID, encrypted); err != nil {
		return false, err
	}

	return true, nil
}

// dueForRefresh computes expiry from an explicit expires_at when present,
// else derives it from the last update plus expires_in. Tokens without
// either are left alone.
func dueForRefresh(token models.AccessToken, updatedAt time.Time) bool {
	expiry, ok := token.ExpiresAt()
	if !ok {
		expiresIn, hasExpiresIn := token.ExpiresIn()
		if !hasExpiresIn {
			return false
		}
		expiry = updatedAt.Add(time.Duration(expiresIn) * time.Second)
	}

	return time.Until(expiry) <= refreshThreshold
}

func (j *TokenRefreshJob) decryptToken(account *models.Account) (models.AccessToken, error) {
	decrypted, err := utils.Decrypt(account.AccessToken, []byte(j.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypt token: %w", err)
	}
	return models.DecodeAccessToken([]byte(decrypted))
}
