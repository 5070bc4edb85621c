package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/maheshrc27/postbridge/internal/service"
	"github.com/maheshrc27/postbridge/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type refreshFakeProvider struct {
	provider.Provider

	refreshKey string
	hasKey     bool
	fresh      models.AccessToken
	refreshErr error
	refreshes  int
}

func (p *refreshFakeProvider) RefreshKey(token models.AccessToken) (string, bool) {
	return p.refreshKey, p.hasKey
}

func (p *refreshFakeProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	p.refreshes++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.fresh, nil
}

type refreshFakeConnector struct {
	provider *refreshFakeProvider
}

func (c *refreshFakeConnector) Connect(name string, values map[string]string) (provider.Provider, error) {
	return c.provider, nil
}

type refreshFakeRepo struct {
	mu       sync.Mutex
	accounts []*models.Account
	updated  map[int64]string
}

func newRefreshFakeRepo(accounts ...*models.Account) *refreshFakeRepo {
	return &refreshFakeRepo{accounts: accounts, updated: make(map[int64]string)}
}

func (r *refreshFakeRepo) Upsert(ctx context.Context, account *models.Account) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *refreshFakeRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return nil, nil
}

func (r *refreshFakeRepo) GetByProviderID(ctx context.Context, orgID, providerName, providerID string) (*models.Account, error) {
	return nil, nil
}

func (r *refreshFakeRepo) ListAuthorized(ctx context.Context) ([]*models.Account, error) {
	return r.accounts, nil
}

func (r *refreshFakeRepo) ListProviderIDs(ctx context.Context, orgID, providerName string) ([]string, error) {
	return nil, nil
}

func (r *refreshFakeRepo) UpdateAccessToken(ctx context.Context, id int64, encryptedToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated[id] = encryptedToken
	return nil
}

func (r *refreshFakeRepo) Remove(ctx context.Context, id int64) error { return nil }

func encryptToken(t *testing.T, token models.AccessToken) string {
	t.Helper()

	encoded, err := token.Encode()
	require.NoError(t, err)
	encrypted, err := utils.Encrypt([]byte(encoded), []byte(testSecretKey))
	require.NoError(t, err)
	return encrypted
}

func decryptToken(t *testing.T, encrypted string) models.AccessToken {
	t.Helper()

	decrypted, err := utils.Decrypt(encrypted, []byte(testSecretKey))
	require.NoError(t, err)
	token, err := models.DecodeAccessToken([]byte(decrypted))
	require.NoError(t, err)
	return token
}

func testJob(repo *refreshFakeRepo, p *refreshFakeProvider) *TokenRefreshJob {
	cfg := &config.Config{SecretKey: testSecretKey}
	return NewTokenRefreshJob(cfg, repo, &refreshFakeConnector{provider: p}, service.NewAccountLocker())
}

func dueAccount(t *testing.T, id int64, token models.AccessToken) *models.Account {
	return &models.Account{
		ID:          id,
		Provider:    "tiktok",
		ProviderID:  "tt-1",
		Authorized:  true,
		AccessToken: encryptToken(t, token),
		UpdatedAt:   time.Now(),
	}
}

func TestRefreshTokensRotatesDueToken(t *testing.T) {
	token := models.AccessToken{
		"access_token":  "old",
		"refresh_token": "refresh-1",
		"open_id":       "open-123",
	}
	token.SetExpiresAt(time.Now().Add(6 * 24 * time.Hour))

	repo := newRefreshFakeRepo(dueAccount(t, 1, token))
	p := &refreshFakeProvider{
		refreshKey: "refresh-1",
		hasKey:     true,
		fresh: models.AccessToken{
			"access_token":  "new",
			"refresh_token": "refresh-2",
			"expires_in":    int64(86400),
		},
	}

	refreshed, failed := testJob(repo, p).RefreshTokens(context.Background())
	assert.Equal(t, 1, refreshed)
	assert.Zero(t, failed)

	stored := decryptToken(t, repo.updated[1])
	assert.Equal(t, "new", stored.Token())
	assert.Equal(t, "refresh-2", stored.RefreshToken())

	// Provider extras survive the merge.
	assert.Equal(t, "open-123", stored["open_id"])

	// expires_at is recomputed from the fresh expires_in.
	at, ok := stored.ExpiresAt()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), at, time.Minute)
}

func TestRefreshTokensSkipsNotYetDue(t *testing.T) {
	token := models.AccessToken{"access_token": "old", "refresh_token": "refresh-1"}
	token.SetExpiresAt(time.Now().Add(30 * 24 * time.Hour))

	repo := newRefreshFakeRepo(dueAccount(t, 1, token))
	p := &refreshFakeProvider{refreshKey: "refresh-1", hasKey: true}

	refreshed, failed := testJob(repo, p).RefreshTokens(context.Background())
	assert.Zero(t, refreshed)
	assert.Zero(t, failed)
	assert.Zero(t, p.refreshes)
	assert.Empty(t, repo.updated)
}

func TestRefreshTokensSkipsNonRefreshable(t *testing.T) {
	token := models.AccessToken{"access_token": "old"}
	token.SetExpiresAt(time.Now().Add(time.Hour))

	repo := newRefreshFakeRepo(dueAccount(t, 1, token))
	p := &refreshFakeProvider{hasKey: false}

	refreshed, failed := testJob(repo, p).RefreshTokens(context.Background())
	assert.Zero(t, refreshed)
	assert.Zero(t, failed)
	assert.Zero(t, p.refreshes)
}

func TestRefreshTokensCountsFailures(t *testing.T) {
	good := models.AccessToken{"access_token": "a", "refresh_token": "r1"}
	good.SetExpiresAt(time.Now().Add(time.Hour))
	bad := models.AccessToken{"access_token": "b", "refresh_token": "r2"}
	bad.SetExpiresAt(time.Now().Add(time.Hour))

	repo := newRefreshFakeRepo(dueAccount(t, 1, good), dueAccount(t, 2, bad))
	p := &refreshFakeProvider{
		refreshKey: "r",
		hasKey:     true,
		refreshErr: errors.New("provider rejected the refresh"),
	}

	refreshed, failed := testJob(repo, p).RefreshTokens(context.Background())
	assert.Zero(t, refreshed)
	assert.Equal(t, 2, failed)
}

func TestDueForRefreshSevenDayThreshold(t *testing.T) {
	near := models.AccessToken{"access_token": "x"}
	near.SetExpiresAt(time.Now().Add(6 * 24 * time.Hour))
	assert.True(t, dueForRefresh(near, time.Now()))

	far := models.AccessToken{"access_token": "x"}
	far.SetExpiresAt(time.Now().Add(8 * 24 * time.Hour))
	assert.False(t, dueForRefresh(far, time.Now()))
}

func TestDueForRefreshFallsBackToUpdatedAt(t *testing.T) {
	token := models.AccessToken{"expires_in": int64(30 * 24 * 3600)}

	assert.False(t, dueForRefresh(token, time.Now()))
	assert.True(t, dueForRefresh(token, time.Now().Add(-25*24*time.Hour)))
}

func TestDueForRefreshPrefersExplicitExpiresAt(t *testing.T) {
	token := models.AccessToken{"expires_in": int64(30 * 24 * 3600)}
	token.SetExpiresAt(time.Now().Add(time.Hour))

	// expires_in alone would say the token is fresh; expires_at wins.
	assert.True(t, dueForRefresh(token, time.Now()))
}

func TestDueForRefreshWithoutExpiryInfo(t *testing.T) {
	assert.False(t, dueForRefresh(models.AccessToken{"access_token": "x"}, time.Now().Add(-365*24*time.Hour)))
}
