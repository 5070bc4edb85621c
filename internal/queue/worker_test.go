package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostRepo struct {
	mu       sync.Mutex
	post     *models.Post
	accounts []int64
	status   string
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.post, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context) ([]*models.Post, error) { return nil, nil }

func (r *fakePostRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	return nil
}

func (r *fakePostRepo) ListAccountIDs(ctx context.Context, postID int64) ([]int64, error) {
	return r.accounts, nil
}

func (r *fakePostRepo) InsertProviderData(ctx context.Context, postID, accountID int64, providerPostID string, data any) error {
	return nil
}

func (r *fakePostRepo) InsertErrors(ctx context.Context, postID, accountID int64, errs []string) error {
	return nil
}

type fakeAccountRepo struct {
	accounts map[int64]*models.Account
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, account *models.Account) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) GetByProviderID(ctx context.Context, orgID, providerName, providerID string) (*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListAuthorized(ctx context.Context) ([]*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListProviderIDs(ctx context.Context, orgID, providerName string) ([]string, error) {
	return nil, nil
}

func (r *fakeAccountRepo) UpdateAccessToken(ctx context.Context, id int64, encryptedToken string) error {
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error { return nil }

// fakePublisher fails for the account ids listed in failFor.
type fakePublisher struct {
	mu      sync.Mutex
	failFor map[int64]bool
	calls   []int64
}

func (p *fakePublisher) Publish(ctx context.Context, account *models.Account, post *models.Post) provider.Response {
	p.mu.Lock()
	p.calls = append(p.calls, account.ID)
	p.mu.Unlock()

	if p.failFor[account.ID] {
		return provider.ErrorResponse(nil, "publish failed")
	}
	return provider.OKResponse(map[string]any{"id": "post-1"})
}

func testQueue(accountIDs []int64, failFor map[int64]bool) (*Queue, *fakePostRepo, *fakePublisher) {
	posts := &fakePostRepo{
		post:     &models.Post{ID: 1, Status: models.PostStatusPublishing},
		accounts: accountIDs,
	}

	accounts := &fakeAccountRepo{accounts: map[int64]*models.Account{}}
	for _, id := range accountIDs {
		accounts.accounts[id] = &models.Account{ID: id, Provider: "threads"}
	}

	pub := &fakePublisher{failFor: failFor}
	return NewQueue(posts, accounts, pub), posts, pub
}

func TestPublishPostFansOutToAllAccounts(t *testing.T) {
	q, posts, pub := testQueue([]int64{1, 2, 3}, nil)

	require.NoError(t, q.PublishPost(context.Background(), 1))
	assert.Len(t, pub.calls, 3)
	assert.Equal(t, models.PostStatusPublished, posts.status)
}

func TestPublishPostPartialFailureStillPublished(t *testing.T) {
	q, posts, _ := testQueue([]int64{1, 2}, map[int64]bool{2: true})

	require.NoError(t, q.PublishPost(context.Background(), 1))
	assert.Equal(t, models.PostStatusPublished, posts.status)
}

func TestPublishPostAllFailuresMarksFailed(t *testing.T) {
	q, posts, _ := testQueue([]int64{1, 2}, map[int64]bool{1: true, 2: true})

	require.NoError(t, q.PublishPost(context.Background(), 1))
	assert.Equal(t, models.PostStatusFailed, posts.status)
}

func TestPublishPostUnknownPost(t *testing.T) {
	q, _, _ := testQueue(nil, nil)
	q.posts = &fakePostRepo{post: nil}

	assert.Error(t, q.PublishPost(context.Background(), 99))
}

func TestPublishPostNoAccounts(t *testing.T) {
	q, _, pub := testQueue(nil, nil)

	assert.Error(t, q.PublishPost(context.Background(), 1))
	assert.Empty(t, pub.calls)
}
