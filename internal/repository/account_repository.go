package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/maheshrc27/postbridge/internal/models"
)

type AccountRepository interface {
	Upsert(ctx context.Context, account *models.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByProviderID(ctx context.Context, orgID, provider, providerID string) (*models.Account, error)
	ListAuthorized(ctx context.Context) ([]*models.Account, error)
	ListProviderIDs(ctx context.Context, orgID, provider string) ([]string, error)
	UpdateAccessToken(ctx context.Context, id int64, encryptedToken string) error
	Remove(ctx context.Context, id int64) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
	id, uuid, organization_id, provider, provider_id, name, username, media,
	authorized, access_token, data, connected_by, connected_at, created_at, updated_at
`

// Upsert inserts or refreshes an account keyed by its natural identity
// (organization, provider, provider-assigned id).
func (r *accountRepository) Upsert(ctx context.Context, account *models.Account) (int64, error) {
	media, err := json.Marshal(account.Media)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(account.Data)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO accounts(
			uuid, organization_id, provider, provider_id, name, username,
			media, authorized, access_token, data, connected_by, connected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (organization_id, provider, provider_id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			media = EXCLUDED.media,
			authorized = EXCLUDED.authorized,
			access_token = EXCLUDED.access_token,
			data = EXCLUDED.data,
			updated_at = now()
		RETURNING id
	`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		account.UUID,
		account.OrganizationID,
		account.Provider,
		account.ProviderID,
		account.Name,
		account.Username,
		media,
		account.Authorized,
		account.AccessToken,
		data,
		account.ConnectedBy,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *accountRepository) GetByProviderID(ctx context.Context, orgID, provider, providerID string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE organization_id = $1 AND provider = $2 AND provider_id = $3
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orgID, provider, providerID))
}

func (r *accountRepository) ListAuthorized(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE authorized = true`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// ListProviderIDs returns the provider-assigned ids already connected for
// one provider, used to mark entities as connected during selection.
func (r *accountRepository) ListProviderIDs(ctx context.Context, orgID, provider string) ([]string, error) {
	query := `SELECT provider_id FROM accounts WHERE organization_id = $1 AND provider = $2`

	rows, err := r.db.QueryContext(ctx, query, orgID, provider)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *accountRepository) UpdateAccessToken(ctx context.Context, id int64, encryptedToken string) error {
	query := `UPDATE accounts SET access_token = $1, updated_at = now() WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, encryptedToken, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *accountRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *accountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return account, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var media, data []byte
	var connectedAt, createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&account.ID, &account.UUID, &account.OrganizationID, &account.Provider,
		&account.ProviderID, &account.Name, &account.Username, &media,
		&account.Authorized, &account.AccessToken, &data, &account.ConnectedBy,
		&connectedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(media) > 0 {
		if err := json.Unmarshal(media, &account.Media); err != nil {
			return nil, err
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &account.Data); err != nil {
			return nil, err
		}
	}

	account.ConnectedAt = nullableTime(connectedAt)
	account.CreatedAt = nullableTime(createdAt)
	account.UpdatedAt = nullableTime(updatedAt)

	return &account, nil
}

func nullableTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}
