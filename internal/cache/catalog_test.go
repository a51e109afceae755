package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"woo-export-bot/internal/logging"
	"woo-export-bot/internal/woo"

	"github.com/shopspring/decimal"
)

func TestCatalogSnapshotFind(t *testing.T) {
	s := &CatalogSnapshot{Products: []woo.Product{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	if p, ok := s.Find(2); !ok || p.Name != "B" {
		t.Fatalf("expected B, got %+v %v", p, ok)
	}
	if _, ok := s.Find(3); ok {
		t.Fatal("unexpected hit")
	}
	var nilSnap *CatalogSnapshot
	if _, ok := nilSnap.Find(1); ok {
		t.Fatal("nil snapshot must not find anything")
	}
}

// Requires a reachable Redis; set REDIS_TEST_ADDR to run.
func TestCatalogMirrorRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r := New(Config{Addr: addr}, logging.Discard())
	defer r.Close()
	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	mirror := NewCatalogMirror(r, time.Minute)
	chatID := time.Now().UnixNano()
	defer r.Delete(ctx, catalogKey(chatID))

	if snap, err := mirror.Load(ctx, chatID); err != nil || snap != nil {
		t.Fatalf("expected empty mirror, got %v %v", snap, err)
	}
	in := CatalogSnapshot{
		FetchedAt: time.Now().UTC().Truncate(time.Second),
		Products:  []woo.Product{{ID: 5, Name: "Mug", Price: decimal.RequireFromString("3.50"), StockQuantity: 2}},
	}
	if err := mirror.Save(ctx, chatID, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := mirror.Load(ctx, chatID)
	if err != nil || out == nil {
		t.Fatalf("load: %v %v", out, err)
	}
	if len(out.Products) != 1 || !out.Products[0].Price.Equal(in.Products[0].Price) || !out.FetchedAt.Equal(in.FetchedAt) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
