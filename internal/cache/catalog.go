package cache

import (
	"context"
	"fmt"
	"time"

	"woo-export-bot/internal/woo"
)

// CatalogSnapshot is the last catalog fetched for a chat. It is a local
// convenience copy and never the source of truth.
type CatalogSnapshot struct {
	FetchedAt  time.Time     `json:"fetched_at"`
	Incomplete bool          `json:"incomplete"`
	Products   []woo.Product `json:"products"`
}

// Find returns the product with the given id.
func (s *CatalogSnapshot) Find(id int64) (woo.Product, bool) {
	if s == nil {
		return woo.Product{}, false
	}
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return woo.Product{}, false
}

// CatalogMirror stores one snapshot per chat in Redis, overwritten on every fetch.
type CatalogMirror struct {
	redis *Redis
	ttl   time.Duration
}

// NewCatalogMirror keeps snapshots for ttl.
func NewCatalogMirror(redis *Redis, ttl time.Duration) *CatalogMirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CatalogMirror{redis: redis, ttl: ttl}
}

// Save replaces the snapshot for chatID.
func (m *CatalogMirror) Save(ctx context.Context, chatID int64, snapshot CatalogSnapshot) error {
	return m.redis.SetJSON(ctx, catalogKey(chatID), snapshot, m.ttl)
}

// Load returns the snapshot for chatID, or nil when none is cached.
func (m *CatalogMirror) Load(ctx context.Context, chatID int64) (*CatalogSnapshot, error) {
	var snapshot CatalogSnapshot
	ok, err := m.redis.GetJSON(ctx, catalogKey(chatID), &snapshot)
	if err != nil || !ok {
		return nil, err
	}
	return &snapshot, nil
}

func catalogKey(chatID int64) string {
	return fmt.Sprintf("woo:catalog:%d", chatID)
}
