package convo

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"woo-export-bot/internal/repo"
	"woo-export-bot/internal/woo"
)

func (e *Engine) startOnboarding(ctx context.Context, chatID int64) error {
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingURL}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskSiteURL, CancelMenu())
}

func (e *Engine) onSiteURL(ctx context.Context, chatID int64, text string) error {
	siteURL, err := ValidateSiteURL(text)
	if err != nil {
		return e.sendKeyboard(ctx, chatID, msgInvalidURL, CancelMenu())
	}
	if !e.saveStep(ctx, chatID, "site_url", repo.AccountUpdate{SiteURL: repo.Ptr(siteURL)}) {
		return nil
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingKey}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskAPIKey, CancelMenu())
}

func (e *Engine) onAPIKey(ctx context.Context, chatID int64, text string) error {
	key := strings.TrimSpace(text)
	if key == "" {
		return e.sendKeyboard(ctx, chatID, msgEmptyAPIKey, CancelMenu())
	}
	if !e.saveStep(ctx, chatID, "api_key", repo.AccountUpdate{APIKey: repo.Ptr(key)}) {
		return nil
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingSecret}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskAPISecret, CancelMenu())
}

func (e *Engine) onAPISecret(ctx context.Context, chatID int64, text string) error {
	secret := strings.TrimSpace(text)
	if secret == "" {
		return e.sendKeyboard(ctx, chatID, msgEmptySecret, CancelMenu())
	}
	if !e.saveStep(ctx, chatID, "api_secret", repo.AccountUpdate{APISecret: repo.Ptr(secret)}) {
		return nil
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateComplete}); err != nil {
		return err
	}
	e.logger.Info("store connected", "chat_id", chatID)

	if !e.cfg.VerifyConnection {
		return e.sendKeyboard(ctx, chatID, msgConnected, MainMenu())
	}

	e.sendText(ctx, chatID, msgCheckingStore)
	creds, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}

	pingCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	if err := e.catalog.Ping(pingCtx, creds); err != nil {
		e.logger.Warn("connection test failed", "chat_id", chatID, "error", err)
		return e.sendKeyboard(ctx, chatID, msgConnected+"\n\nHowever, the connection test failed: "+describeStoreError(err), MainMenu())
	}
	return e.sendKeyboard(ctx, chatID, msgConnected+"\n"+msgStoreOK, MainMenu())
}

// saveStep persists one onboarding answer. On failure the user is asked to
// resend and the session stays on the same step.
func (e *Engine) saveStep(ctx context.Context, chatID int64, field string, update repo.AccountUpdate) bool {
	if _, err := e.store.UpsertAccount(ctx, chatID, update); err != nil {
		e.logger.Error("failed saving onboarding answer", "chat_id", chatID, "field", field, "error", err)
		e.countError("repo")
		_ = e.sendKeyboard(ctx, chatID, msgSaveFailed, CancelMenu())
		return false
	}
	return true
}

func (e *Engine) handleContact(ctx context.Context, msg Message) error {
	contact := msg.Contact
	if contact.UserID != 0 && msg.SenderID != 0 && contact.UserID != msg.SenderID {
		return e.sendKeyboard(ctx, msg.ChatID, "Please share your own phone number using the button below.", WelcomeMenu())
	}
	phone := strings.TrimSpace(contact.PhoneNumber)
	if phone == "" {
		return e.sendKeyboard(ctx, msg.ChatID, "That contact has no phone number.", WelcomeMenu())
	}

	update := repo.AccountUpdate{PhoneNumber: repo.Ptr(phone)}
	firstName := firstNonEmpty(contact.FirstName, msg.FirstName)
	if firstName != "" {
		update.FirstName = repo.Ptr(firstName)
	}
	if lastName := firstNonEmpty(contact.LastName, msg.LastName); lastName != "" {
		update.LastName = repo.Ptr(lastName)
	}
	if username := strings.TrimSpace(msg.Username); username != "" {
		update.Username = repo.Ptr(username)
	}

	account, err := e.store.UpsertAccount(ctx, msg.ChatID, update)
	if err != nil {
		return err
	}
	e.logger.Info("contact saved", "chat_id", msg.ChatID)

	greeting := "Thanks! Your phone number is saved."
	if name := account.DisplayName(); name != "" {
		greeting = "Thanks, " + name + "! Your phone number is saved."
	}
	if account.HasCredentials() {
		return e.sendKeyboard(ctx, msg.ChatID, greeting, MainMenu())
	}
	e.sendText(ctx, msg.ChatID, greeting)
	return e.startOnboarding(ctx, msg.ChatID)
}

// describeStoreError turns a WooCommerce failure into something a shop
// owner can act on.
func describeStoreError(err error) string {
	var apiErr *woo.APIError
	switch {
	case errors.Is(err, woo.ErrUnauthorized):
		return "the store rejected your consumer key or secret. Tap \"" + LabelConnect + "\" to enter them again."
	case errors.Is(err, woo.ErrMissingCredentials):
		return "the store connection is incomplete. Tap \"" + LabelConnect + "\" to finish it."
	case errors.Is(err, context.DeadlineExceeded):
		return "the store took too long to answer. Please try again later."
	case errors.As(err, &apiErr) && apiErr.StatusCode == 404:
		return "the store couldn't find what we asked for. Check the site address and that the REST API is enabled."
	case errors.As(err, &apiErr):
		return "the store returned an error (HTTP " + strconv.Itoa(apiErr.StatusCode) + "). Please try again later."
	default:
		return "I couldn't reach your store. Check the site address and try again."
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
