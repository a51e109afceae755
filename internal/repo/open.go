package repo

import (
	"context"
	"log/slog"
	"strings"
)

// Open picks the backend from databaseURL: postgres URLs use the pgx pool,
// anything else is treated as a SQLite path. A non-nil sealKey wraps the
// backend in a SealedRepository.
func Open(ctx context.Context, databaseURL string, sealKey []byte, logger *slog.Logger) (Repository, error) {
	var (
		store Repository
		err   error
	)
	if isPostgresURL(databaseURL) {
		store, err = NewPostgres(ctx, databaseURL, logger)
	} else {
		store, err = NewSQLite(ctx, databaseURL, logger)
	}
	if err != nil {
		return nil, err
	}
	if sealKey == nil {
		logger.Warn("ENCRYPTION_KEY not set, api credentials stored in plaintext")
		return store, nil
	}
	sealed, err := NewSealed(store, sealKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	return sealed, nil
}

func isPostgresURL(databaseURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(databaseURL))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
