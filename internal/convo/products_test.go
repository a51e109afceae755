package convo

import (
	"strings"
	"testing"

	"woo-export-bot/internal/woo"

	"github.com/shopspring/decimal"
)

func TestRankProductsPrefersSKU(t *testing.T) {
	items := []woo.Product{
		{ID: 1, Name: "Blue mug 300ml", SKU: "MUG-BLUE"},
		{ID: 2, Name: "Red mug 300ml", SKU: "MUG-RED"},
		{ID: 3, Name: "Mug holder", SKU: "HOLD-1"},
	}

	matches := rankProducts(items, "mug-red")
	if len(matches) != 3 {
		t.Fatalf("expected all items kept, got %d", len(matches))
	}
	if matches[0].ID != 2 {
		t.Fatalf("expected exact sku first, got %d", matches[0].ID)
	}
}

func TestRankProductsKeepsStoreOrderOnTie(t *testing.T) {
	var items []woo.Product
	for i := int64(1); i <= 15; i++ {
		items = append(items, woo.Product{ID: i, Name: "Shirt"})
	}
	matches := rankProducts(items, "shirt")
	if len(matches) != searchResultLimit {
		t.Fatalf("expected %d results, got %d", searchResultLimit, len(matches))
	}
	for i, m := range matches {
		if m.ID != int64(i+1) {
			t.Fatalf("order changed at %d: %d", i, m.ID)
		}
	}
}

func TestParsePriceInput(t *testing.T) {
	cases := map[string]string{
		"19.99":    "19.99",
		"19,99":    "19.99",
		"$ 5":      "5",
		" 7.5 EUR": "7.5",
		"3.14159":  "3.14",
	}
	for in, want := range cases {
		got, err := parsePriceInput(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("%q: got %s want %s", in, got, want)
		}
	}

	for _, in := range []string{"", "abc", "-4", "1 or 2"} {
		if _, err := parsePriceInput(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestFormatProductList(t *testing.T) {
	out := formatProductList([]woo.Product{
		{ID: 7, Name: "Lamp", SKU: "L-1", Price: decimal.RequireFromString("12.5"), StockQuantity: 3, Status: "draft"},
	})
	for _, want := range []string{"#7 Lamp", "(L-1)", "12.50", "stock 3", "[DRAFT]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if formatProductList(nil) != "No products matched your search." {
		t.Fatal("unexpected empty message")
	}
}
