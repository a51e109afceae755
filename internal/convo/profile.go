package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"woo-export-bot/internal/repo"
)

func (e *Engine) showProfile(ctx context.Context, chatID int64) error {
	account, err := e.store.GetAccount(ctx, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return e.sendKeyboard(ctx, chatID, msgNoProfile, WelcomeMenu())
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	return e.sendKeyboard(ctx, chatID, formatProfile(account), MainMenu())
}

func formatProfile(a *repo.Account) string {
	var b strings.Builder
	b.WriteString("Your profile\n")
	fmt.Fprintf(&b, "Name: %s\n", orDash(a.DisplayName()))
	if username := repo.Value(a.Username); username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", strings.TrimPrefix(username, "@"))
	}
	fmt.Fprintf(&b, "Phone: %s\n", orDash(repo.Value(a.PhoneNumber)))
	fmt.Fprintf(&b, "Store: %s\n", orDash(repo.Value(a.SiteURL)))
	fmt.Fprintf(&b, "Consumer key: %s\n", maskSecret(repo.Value(a.APIKey)))
	fmt.Fprintf(&b, "Consumer secret: %s\n", maskSecret(repo.Value(a.APISecret)))
	fmt.Fprintf(&b, "Torob API key: %s\n", maskSecret(repo.Value(a.TorobAPIKey)))
	fmt.Fprintf(&b, "Market discount: %s%%\n", formatPercent(a.DiscountPercent))
	if !a.RegisteredAt.IsZero() {
		fmt.Fprintf(&b, "Registered: %s\n", a.RegisteredAt.Format("2006-01-02"))
	}
	if a.HasCredentials() {
		b.WriteString("Status: connected")
	} else {
		b.WriteString("Status: not connected")
	}
	return b.String()
}

// maskSecret keeps only the last four characters visible.
func maskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	runes := []rune(s)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
