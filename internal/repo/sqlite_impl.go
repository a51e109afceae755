package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// -- Accounts --

func (r *SQLiteRepository) GetAccount(ctx context.Context, chatID int64) (*Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE chat_id = ? LIMIT 1;`
	acc, err := scanSQLiteAccount(r.db.QueryRowContext(ctx, q, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

func (r *SQLiteRepository) UpsertAccount(ctx context.Context, chatID int64, u AccountUpdate) (*Account, error) {
	const q = `
INSERT INTO accounts (chat_id, first_name, last_name, username, phone_number, site_url, api_key, api_secret, torob_api_key, discount_percent, registered_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, COALESCE(?10, 5), ?11, ?11)
ON CONFLICT (chat_id) DO UPDATE SET
    first_name = COALESCE(excluded.first_name, accounts.first_name),
    last_name = COALESCE(excluded.last_name, accounts.last_name),
    username = COALESCE(excluded.username, accounts.username),
    phone_number = COALESCE(excluded.phone_number, accounts.phone_number),
    site_url = COALESCE(excluded.site_url, accounts.site_url),
    api_key = COALESCE(excluded.api_key, accounts.api_key),
    api_secret = COALESCE(excluded.api_secret, accounts.api_secret),
    torob_api_key = COALESCE(excluded.torob_api_key, accounts.torob_api_key),
    discount_percent = COALESCE(?10, accounts.discount_percent),
    updated_at = excluded.updated_at
RETURNING ` + accountColumns + `;
`
	now := time.Now().UTC().Format(sqliteTimeLayout)
	row := r.db.QueryRowContext(ctx, q,
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
		now,
	)
	acc, err := scanSQLiteAccount(row)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return acc, nil
}

func (r *SQLiteRepository) HasCompleteCredentials(ctx context.Context, chatID int64) (bool, error) {
	const q = `
SELECT TRIM(COALESCE(site_url, ''), ' ' || char(9, 10, 13)) <> ''
   AND TRIM(COALESCE(api_key, ''), ' ' || char(9, 10, 13)) <> ''
   AND TRIM(COALESCE(api_secret, ''), ' ' || char(9, 10, 13)) <> ''
FROM accounts
WHERE chat_id = ?;
`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, chatID).Scan(&ok); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check credentials: %w", err)
	}
	return ok, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, chatID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// sqliteTime accepts whichever representation the driver hands back for a
// DATETIME column.
type sqliteTime struct {
	t *time.Time
}

func (s sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case int64:
		*s.t = time.Unix(v, 0).UTC()
		return nil
	case nil:
		*s.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (s sqliteTime) parse(v string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, v); err == nil {
			*s.t = parsed
			return nil
		}
	}
	return fmt.Errorf("parse time %q", v)
}

func scanSQLiteAccount(row rowScanner) (*Account, error) {
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
		sqliteTime{&a.RegisteredAt},
		sqliteTime{&a.UpdatedAt},
	); err != nil {
		return nil, err
	}
	return &a, nil
}
