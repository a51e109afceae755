package woo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Product mirrors the subset of a WooCommerce product used for exports.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	Permalink     string          `json:"permalink"`
}

// UnmarshalJSON tolerates the loose typing WooCommerce uses: prices arrive
// as strings (often empty), stock as null, numbers or numeric strings.
func (p *Product) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID = readInt64Raw(raw, "id")
	p.Name = readStringRaw(raw, "name")
	p.Price = ParsePrice(readStringRaw(raw, "price"))
	p.StockQuantity = ParseStock(readStringRaw(raw, "stock_quantity"))
	p.SKU = readStringRaw(raw, "sku")
	p.Description = readStringRaw(raw, "short_description", "description")
	p.Status = readStringRaw(raw, "status")
	p.Permalink = readStringRaw(raw, "permalink")
	return nil
}

// ParsePrice converts a WooCommerce price string to a decimal. Empty or
// unparseable input yields zero.
func ParsePrice(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseStock converts a stock quantity to int. Empty, null, unparseable,
// non-finite or out-of-range input (beyond int32) yields zero; fractional
// values are truncated.
func ParseStock(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0
		}
		return int(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func readStringRaw(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var str string
		if err := json.Unmarshal(val, &str); err == nil {
			if str = strings.TrimSpace(str); str != "" {
				return str
			}
			continue
		}
		var number json.Number
		if err := json.Unmarshal(val, &number); err == nil {
			return number.String()
		}
	}
	return ""
}

func readInt64Raw(raw map[string]json.RawMessage, keys ...string) int64 {
	str := readStringRaw(raw, keys...)
	if str == "" {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
