package repo

import (
	"context"
	"errors"
	"io/fs"
)

// ErrNotFound is returned when no account exists for a chat.
var ErrNotFound = errors.New("account not found")

// Repository defines the interface for account persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Accounts
	GetAccount(ctx context.Context, chatID int64) (*Account, error)
	UpsertAccount(ctx context.Context, chatID int64, update AccountUpdate) (*Account, error)
	HasCompleteCredentials(ctx context.Context, chatID int64) (bool, error)
	DeleteAccount(ctx context.Context, chatID int64) error
}
