package repo

import (
	"strings"
	"time"
)

// Account represents the accounts table row: one per Telegram chat.
type Account struct {
	ChatID       int64
	FirstName    *string
	LastName     *string
	Username     *string
	PhoneNumber  *string
	SiteURL      *string
	APIKey       *string
	APISecret    *string
	// TorobAPIKey enables market price comparison.
	TorobAPIKey *string
	// DiscountPercent undercuts the market minimum in suggested prices.
	DiscountPercent float64
	RegisteredAt    time.Time
	UpdatedAt    time.Time
}

// HasCredentials reports whether site URL, key and secret are all set.
func (a *Account) HasCredentials() bool {
	if a == nil {
		return false
	}
	return nonEmpty(a.SiteURL) && nonEmpty(a.APIKey) && nonEmpty(a.APISecret)
}

// HasTorobKey reports whether market price comparison is configured.
func (a *Account) HasTorobKey() bool {
	return a != nil && nonEmpty(a.TorobAPIKey)
}

// DisplayName joins first and last name.
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, p := range []*string{a.FirstName, a.LastName} {
		if nonEmpty(p) {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}

// AccountUpdate carries the fields to merge into an account. Nil fields are
// left untouched.
type AccountUpdate struct {
	FirstName   *string
	LastName    *string
	Username    *string
	PhoneNumber *string
	SiteURL     *string
	APIKey      *string
	APISecret   *string
	TorobAPIKey *string
	// DiscountPercent replaces the stored discount when non-nil.
	DiscountPercent *float64
}

// DefaultDiscountPercent is the discount a new account starts with.
const DefaultDiscountPercent = 5.0

// Ptr returns a pointer to s, for building AccountUpdate literals.
func Ptr(s string) *string {
	return &s
}

// Value dereferences s, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
