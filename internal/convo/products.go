package convo

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"woo-export-bot/internal/woo"

	"github.com/shopspring/decimal"
)

var priceRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

var errInvalidPrice = errors.New("invalid price")

const searchResultLimit = 10

// rankProducts orders search hits by how well name and SKU match the query.
// Items that match nothing keep their store order at the end.
func rankProducts(items []woo.Product, query string) []woo.Product {
	tokens := tokenizeQuery(strings.ToLower(strings.TrimSpace(query)))
	scored := make([]scoredProduct, 0, len(items))
	for i, item := range items {
		scored = append(scored, scoredProduct{Item: item, Score: matchScore(item, tokens), Index: i})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Index < scored[j].Index
		}
		return scored[i].Score > scored[j].Score
	})
	res := make([]woo.Product, 0, len(scored))
	for _, sc := range scored {
		res = append(res, sc.Item)
	}
	return topN(res, searchResultLimit)
}

func formatProductList(items []woo.Product) string {
	if len(items) == 0 {
		return "No products matched your search."
	}
	var builder strings.Builder
	builder.WriteString("Matching products:\n")
	for _, item := range items {
		builder.WriteString(fmt.Sprintf("#%d %s", item.ID, item.Name))
		if item.SKU != "" {
			builder.WriteString(fmt.Sprintf(" (%s)", item.SKU))
		}
		builder.WriteString(fmt.Sprintf(" - %s, stock %d", formatPrice(item.Price), item.StockQuantity))
		if item.Status != "" && item.Status != "publish" {
			builder.WriteString(fmt.Sprintf(" [%s]", strings.ToUpper(item.Status)))
		}
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String())
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func matchScore(item woo.Product, tokens []string) int {
	name := strings.ToLower(item.Name)
	sku := strings.ToLower(item.SKU)

	score := 0
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if sku != "" && sku == token {
			score += 10
		} else if strings.Contains(sku, token) {
			score += 5
		}
		if strings.Contains(name, token) {
			score += 4
		}
	}
	return score
}

// parsePriceInput reads a price typed by a user: "19.99", "19,99" and
// "$ 19.99" are all accepted. Negative values are rejected.
func parsePriceInput(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "-") {
		return decimal.Zero, errInvalidPrice
	}
	matches := priceRegex.FindAllString(text, -1)
	if len(matches) != 1 {
		return decimal.Zero, errInvalidPrice
	}
	value := strings.ReplaceAll(matches[0], ",", ".")
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errInvalidPrice
	}
	return d.Round(2), nil
}

type scoredProduct struct {
	Item  woo.Product
	Score int
	Index int
}

func topN(items []woo.Product, n int) []woo.Product {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func tokenizeQuery(query string) []string {
	if query == "" {
		return nil
	}
	query = strings.ReplaceAll(query, ",", " ")
	rawTokens := strings.Fields(query)
	expanded := make([]string, 0, len(rawTokens)*2)
	for _, token := range rawTokens {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		expanded = append(expanded, token)
		if strings.ContainsAny(token, "0123456789") && strings.ContainsAny(token, "abcdefghijklmnopqrstuvwxyz") {
			builder := strings.Builder{}
			for _, r := range token {
				if r >= '0' && r <= '9' {
					builder.WriteRune(r)
				}
			}
			if builder.Len() > 0 {
				expanded = append(expanded, builder.String())
			}
		}
	}
	return expanded
}
