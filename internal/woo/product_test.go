package woo

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]string{
		"":         "0",
		"   ":      "0",
		"19.99":    "19.99",
		"1,299.50": "1299.5",
		"abc":      "0",
		"7":        "7",
	}
	for in, want := range cases {
		if got := ParsePrice(in); !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParsePrice(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseStock(t *testing.T) {
	cases := map[string]int{
		"":                    0,
		"null":                0,
		"5":                   5,
		"3.0":                 3,
		"many":                0,
		"-2":                  -2,
		"1e30":                0,
		"NaN":                 0,
		"+Inf":                0,
		"-1e12":               0,
		"9999999999999999999": 0,
		"2147483647":          2147483647,
	}
	for in, want := range cases {
		if got := ParseStock(in); got != want {
			t.Errorf("ParseStock(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestProductUnmarshalNormalizes(t *testing.T) {
	payload := `[
		{"id": 1, "name": "Empty price", "price": "", "stock_quantity": null, "sku": "A-1", "status": "publish", "permalink": "https://shop.test/p/1"},
		{"id": 2, "name": "Priced", "price": "19.99", "stock_quantity": "5"},
		{"id": 3, "name": "No price key", "stock_quantity": 12, "short_description": "short", "description": "long"}
	]`
	var products []Product
	if err := json.Unmarshal([]byte(payload), &products); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}

	if !products[0].Price.IsZero() || products[0].StockQuantity != 0 {
		t.Fatalf("expected zero price/stock, got %+v", products[0])
	}
	if products[0].SKU != "A-1" || products[0].Permalink != "https://shop.test/p/1" {
		t.Fatalf("unexpected descriptive fields: %+v", products[0])
	}
	if !products[1].Price.Equal(decimal.RequireFromString("19.99")) || products[1].StockQuantity != 5 {
		t.Fatalf("unexpected product 2: %+v", products[1])
	}
	if !products[2].Price.IsZero() || products[2].StockQuantity != 12 || products[2].Description != "short" {
		t.Fatalf("unexpected product 3: %+v", products[2])
	}
}

func TestProductJSONRoundTrip(t *testing.T) {
	in := Product{ID: 9, Name: "Mug", Price: decimal.RequireFromString("4.20"), StockQuantity: 3, SKU: "M"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Product
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || !out.Price.Equal(in.Price) || out.StockQuantity != 3 || out.SKU != "M" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
