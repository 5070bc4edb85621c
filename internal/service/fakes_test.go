package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
)

// memStore is an in-memory SingleUseStore with the same destructive Pull
// semantics as the redis-backed one.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func (s *memStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memStore) Pull(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// fakeProvider is a scriptable provider.Provider.
type fakeProvider struct {
	name            string
	onlyUserAccount bool
	callbackKeys    []string
	token           models.AccessToken

	accessToken  models.AccessToken
	accessErr    error
	account      provider.Response
	entities     provider.Response
	publish      provider.Response
	postConfigs  provider.PostConfigs
	publishCalls int
	exchanges    int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(ctx context.Context) (string, error) {
	return "https://provider.example.com/authorize", nil
}

func (p *fakeProvider) CallbackKeys() []string {
	if p.callbackKeys == nil {
		return []string{"code"}
	}
	return p.callbackKeys
}

func (p *fakeProvider) IsOnlyUserAccount() bool { return p.onlyUserAccount }

func (p *fakeProvider) RequestAccessToken(ctx context.Context, params map[string]string) (models.AccessToken, error) {
	p.exchanges++
	if p.accessErr != nil {
		return nil, p.accessErr
	}
	return p.accessToken, nil
}

func (p *fakeProvider) RefreshAccessToken(ctx context.Context, refreshKey string) (models.AccessToken, error) {
	return nil, errors.New("refresh not supported")
}

func (p *fakeProvider) RefreshKey(token models.AccessToken) (string, bool) { return "", false }

func (p *fakeProvider) SetAccessToken(token models.AccessToken) { p.token = token }

func (p *fakeProvider) GetAccount(ctx context.Context) provider.Response { return p.account }

func (p *fakeProvider) GetEntities(ctx context.Context, withAccessToken bool) provider.Response {
	return p.entities
}

func (p *fakeProvider) PublishPost(ctx context.Context, text string, media []models.MediaItem, params map[string]any) provider.Response {
	p.publishCalls++
	return p.publish
}

func (p *fakeProvider) DeletePost(ctx context.Context, id string) provider.Response {
	return provider.OKResponse(nil)
}

func (p *fakeProvider) PostConfigs() provider.PostConfigs {
	if p.postConfigs == (provider.PostConfigs{}) {
		return provider.PostConfigs{MaxTextChar: 5000, MaxPhotos: 10, MaxVideos: 1}
	}
	return p.postConfigs
}

type fakeConnector struct {
	provider *fakeProvider
	err      error
}

func (c *fakeConnector) Connect(name string, values map[string]string) (provider.Provider, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.provider, nil
}

// fakeAccountService records upserts instead of touching a database.
type fakeAccountService struct {
	upserts []AccountUpsert
	err     error
}

func (s *fakeAccountService) UpdateOrCreate(ctx context.Context, upsert AccountUpsert) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.upserts = append(s.upserts, upsert)
	return &models.Account{
		ID:         int64(len(s.upserts)),
		UUID:       "uuid-1",
		Provider:   upsert.Provider,
		ProviderID: upsert.ProviderID,
	}, nil
}

// fakeAccountRepo only backs the connected-id lookup used by entity
// resolution.
type fakeAccountRepo struct {
	providerIDs map[string][]string
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, account *models.Account) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) GetByProviderID(ctx context.Context, orgID, providerName, providerID string) (*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListAuthorized(ctx context.Context) ([]*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListProviderIDs(ctx context.Context, orgID, providerName string) ([]string, error) {
	return r.providerIDs[providerName], nil
}

func (r *fakeAccountRepo) UpdateAccessToken(ctx context.Context, id int64, encryptedToken string) error {
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error { return nil }

// fakePostRepo records publish outcomes.
type fakePostRepo struct {
	mu           sync.Mutex
	providerData map[int64]string
	errs         map[int64][]string
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		providerData: make(map[int64]string),
		errs:         make(map[int64][]string),
	}
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context) ([]*models.Post, error) { return nil, nil }

func (r *fakePostRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	return nil
}

func (r *fakePostRepo) ListAccountIDs(ctx context.Context, postID int64) ([]int64, error) {
	return nil, nil
}

func (r *fakePostRepo) InsertProviderData(ctx context.Context, postID, accountID int64, providerPostID string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerData[accountID] = providerPostID
	return nil
}

func (r *fakePostRepo) InsertErrors(ctx context.Context, postID, accountID int64, errs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[accountID] = errs
	return nil
}
