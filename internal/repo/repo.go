package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `chat_id, first_name, last_name, username, phone_number, site_url, api_key, api_secret, torob_api_key, discount_percent, registered_at, updated_at`

// PostgresRepository provides typed access to a Postgres database.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a new connection pool to the database.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		logger: logger.With("component", "repo_postgres"),
	}

	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations applies the postgres/ migrations of filesystem.
func (r *PostgresRepository) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	sub, err := fs.Sub(filesystem, "postgres")
	if err != nil {
		return fmt.Errorf("open postgres migrations: %w", err)
	}
	return ApplyMigrations(ctx, r.pool, sub)
}

// GetAccount returns the account for chatID or ErrNotFound.
func (r *PostgresRepository) GetAccount(ctx context.Context, chatID int64) (*Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE chat_id = $1 LIMIT 1;`
	acc, err := scanAccount(r.pool.QueryRow(ctx, q, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// UpsertAccount inserts the account or merges the non-nil fields into it.
func (r *PostgresRepository) UpsertAccount(ctx context.Context, chatID int64, u AccountUpdate) (*Account, error) {
	const q = `
INSERT INTO accounts (chat_id, first_name, last_name, username, phone_number, site_url, api_key, api_secret, torob_api_key, discount_percent, registered_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, 5), NOW(), NOW())
ON CONFLICT (chat_id) DO UPDATE SET
    first_name = COALESCE(EXCLUDED.first_name, accounts.first_name),
    last_name = COALESCE(EXCLUDED.last_name, accounts.last_name),
    username = COALESCE(EXCLUDED.username, accounts.username),
    phone_number = COALESCE(EXCLUDED.phone_number, accounts.phone_number),
    site_url = COALESCE(EXCLUDED.site_url, accounts.site_url),
    api_key = COALESCE(EXCLUDED.api_key, accounts.api_key),
    api_secret = COALESCE(EXCLUDED.api_secret, accounts.api_secret),
    torob_api_key = COALESCE(EXCLUDED.torob_api_key, accounts.torob_api_key),
    discount_percent = COALESCE($10, accounts.discount_percent),
    updated_at = NOW()
RETURNING ` + accountColumns + `;
`
	row := r.pool.QueryRow(ctx, q,
		chatID,
		u.FirstName,
		u.LastName,
		u.Username,
		u.PhoneNumber,
		u.SiteURL,
		u.APIKey,
		u.APISecret,
		u.TorobAPIKey,
		u.DiscountPercent,
	)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return acc, nil
}

// HasCompleteCredentials reports whether site URL, key and secret are set to
// something other than whitespace, matching Account.HasCredentials.
func (r *PostgresRepository) HasCompleteCredentials(ctx context.Context, chatID int64) (bool, error) {
	const q = `
SELECT BTRIM(COALESCE(site_url, ''), ' ' || chr(9) || chr(10) || chr(13)) <> ''
   AND BTRIM(COALESCE(api_key, ''), ' ' || chr(9) || chr(10) || chr(13)) <> ''
   AND BTRIM(COALESCE(api_secret, ''), ' ' || chr(9) || chr(10) || chr(13)) <> ''
FROM accounts
WHERE chat_id = $1;
`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, chatID).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check credentials: %w", err)
	}
	return ok, nil
}

// DeleteAccount removes the account or returns ErrNotFound.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, chatID int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	if err := row.Scan(
		&a.ChatID,
		&a.FirstName,
		&a.LastName,
		&a.Username,
		&a.PhoneNumber,
		&a.SiteURL,
		&a.APIKey,
		&a.APISecret,
		&a.TorobAPIKey,
		&a.DiscountPercent,
		&a.RegisteredAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
