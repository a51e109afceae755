package convo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"woo-export-bot/internal/repo"
	"woo-export-bot/internal/torob"

	"github.com/shopspring/decimal"
)

var errInvalidDiscount = errors.New("invalid discount")

func (e *Engine) startMarketSetup(ctx context.Context, chatID int64) error {
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingTorobKey}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskTorobKey, CancelMenu())
}

func (e *Engine) onTorobKey(ctx context.Context, chatID int64, text string) error {
	if !isSkip(text) {
		if !e.saveStep(ctx, chatID, "torob_api_key", repo.AccountUpdate{TorobAPIKey: repo.Ptr(strings.TrimSpace(text))}) {
			return nil
		}
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingDiscount}); err != nil {
		return err
	}

	current := repo.DefaultDiscountPercent
	if account, err := e.store.GetAccount(ctx, chatID); err == nil {
		current = account.DiscountPercent
	}
	prompt := fmt.Sprintf("Suggested prices undercut the market minimum by %s%%. Send a new discount percentage, or \"skip\" to keep it.", formatPercent(current))
	return e.sendKeyboard(ctx, chatID, prompt, CancelMenu())
}

func (e *Engine) onDiscount(ctx context.Context, chatID int64, text string) error {
	if !isSkip(text) {
		discount, err := parseDiscount(text)
		if err != nil {
			return e.sendKeyboard(ctx, chatID, msgInvalidDiscount, CancelMenu())
		}
		if !e.saveStep(ctx, chatID, "discount_percent", repo.AccountUpdate{DiscountPercent: &discount}) {
			return nil
		}
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateComplete}); err != nil {
		return err
	}

	account, err := e.store.GetAccount(ctx, chatID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("load market settings: %w", err)
	}
	if !account.HasTorobKey() {
		return e.sendKeyboard(ctx, chatID, "Settings saved. "+msgMarketHint, MainMenu())
	}
	e.logger.Info("market pricing configured", "chat_id", chatID)
	return e.sendKeyboard(ctx, chatID, fmt.Sprintf("Market pricing is on with a %s%% discount. Use \"%s\" to compare prices.", formatPercent(account.DiscountPercent), LabelFindProduct), MainMenu())
}

// marketSummary reports the market minimum and suggested price for query.
// It returns "" when no market client is configured.
func (e *Engine) marketSummary(ctx context.Context, chatID int64, query string) string {
	if e.market == nil {
		return ""
	}
	account, err := e.store.GetAccount(ctx, chatID)
	if err != nil {
		e.logger.Warn("failed loading market settings", "chat_id", chatID, "error", err)
		return ""
	}
	if !account.HasTorobKey() {
		return msgMarketHint
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	minPrice, found, err := e.market.MinPrice(reqCtx, repo.Value(account.TorobAPIKey), query)
	if err != nil {
		e.logger.Warn("market price lookup failed", "chat_id", chatID, "error", err)
		if errors.Is(err, torob.ErrUnauthorized) {
			return msgMarketRejected
		}
		return msgMarketUnavailable
	}
	if !found {
		return fmt.Sprintf("Torob has no offers for %q.", query)
	}
	suggested := torob.SuggestedPrice(minPrice, account.DiscountPercent)
	return fmt.Sprintf("Torob minimum: %s\nSuggested price (%s%% below): %s",
		formatPrice(minPrice), formatPercent(account.DiscountPercent), formatPrice(suggested))
}

// parseDiscount accepts "5", "7.5" or "7.5%" in the range [0, 100).
func parseDiscount(text string) (float64, error) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errInvalidDiscount
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return 0, errInvalidDiscount
	}
	return d.InexactFloat64(), nil
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
