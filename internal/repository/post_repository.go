package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/maheshrc27/postbridge/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListDue(ctx context.Context) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	ListAccountIDs(ctx context.Context, postID int64) ([]int64, error)
	InsertProviderData(ctx context.Context, postID, accountID int64, providerPostID string, data any) error
	InsertErrors(ctx context.Context, postID, accountID int64, errs []string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT id, uuid, status, versions, scheduled_at, created_at, updated_at FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	var versions []byte
	err := row.Scan(&post.ID, &post.UUID, &post.Status, &versions, &post.ScheduledAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if len(versions) > 0 {
		if err := json.Unmarshal(versions, &post.Versions); err != nil {
			return nil, err
		}
	}

	return &post, nil
}

// ListDue returns scheduled posts whose publish time has passed.
func (r *postRepository) ListDue(ctx context.Context) ([]*models.Post, error) {
	query := `
		SELECT id, uuid, status, versions, scheduled_at, created_at, updated_at
		FROM posts
		WHERE status = $1 AND scheduled_at <= now()
	`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		var versions []byte
		if err := rows.Scan(&post.ID, &post.UUID, &post.Status, &versions, &post.ScheduledAt, &post.CreatedAt, &post.UpdatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		if len(versions) > 0 {
			if err := json.Unmarshal(versions, &post.Versions); err != nil {
				return nil, err
			}
		}
		posts = append(posts, &post)
	}

	return posts, rows.Err()
}

func (r *postRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE posts SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

// ListAccountIDs returns the accounts a post is targeted at.
func (r *postRepository) ListAccountIDs(ctx context.Context, postID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM post_accounts WHERE post_id = $1`, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// InsertProviderData records the provider response for a successful publish
// on the post-account relation. A retry overwrites the previous outcome.
func (r *postRepository) InsertProviderData(ctx context.Context, postID, accountID int64, providerPostID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	query := `
		UPDATE post_accounts
		SET provider_post_id = $1, provider_data = $2, errors = NULL, published_at = now()
		WHERE post_id = $3 AND account_id = $4
	`

	_, err = r.db.ExecContext(ctx, query, providerPostID, raw, postID, accountID)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

// InsertErrors records a failed publish outcome on the post-account
// relation, replacing any previous result.
func (r *postRepository) InsertErrors(ctx context.Context, postID, accountID int64, errs []string) error {
	raw, err := json.Marshal(errs)
	if err != nil {
		return err
	}

	query := `
		UPDATE post_accounts
		SET errors = $1, provider_post_id = NULL, provider_data = NULL
		WHERE post_id = $2 AND account_id = $3
	`

	_, err = r.db.ExecContext(ctx, query, raw, postID, accountID)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}
