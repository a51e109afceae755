package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"woo-export-bot/internal/metrics"
	"woo-export-bot/internal/ratelimit"
	"woo-export-bot/internal/repo"
	"woo-export-bot/internal/woo"
)

// EngineConfig tunes conversation behaviour.
type EngineConfig struct {
	// VerifyConnection runs a one-product request after onboarding.
	VerifyConnection bool
	// ExportTimeout bounds a whole catalog fetch.
	ExportTimeout time.Duration
	// RequestTimeout bounds single store and market calls (ping, price
	// update, search, market lookup).
	RequestTimeout time.Duration
	// ExportStatus filters exported products by status; empty exports all.
	ExportStatus   string
	SupportContact string
}

// Engine routes inbound messages to the onboarding flow and the menu.
type Engine struct {
	store     repo.Repository
	catalog   Catalog
	market    Market
	renderer  Renderer
	messenger Messenger
	sessions  SessionStore
	limiter   ratelimit.Limiter
	mirror    Mirror
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       EngineConfig
	now       func() time.Time
}

// New wires an Engine. market, limiter, mirror and metricRegistry may be nil.
func New(store repo.Repository, catalog Catalog, market Market, renderer Renderer, messenger Messenger, sessions SessionStore, limiter ratelimit.Limiter, mirror Mirror, metricRegistry *metrics.Metrics, logger *slog.Logger, cfg EngineConfig) *Engine {
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 5 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if sessions == nil {
		sessions = NewMemorySessionStore(24 * time.Hour)
	}
	return &Engine{
		store:     store,
		catalog:   catalog,
		market:    market,
		renderer:  renderer,
		messenger: messenger,
		sessions:  sessions,
		limiter:   limiter,
		mirror:    mirror,
		metrics:   metricRegistry,
		logger:    logger.With("component", "convo"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// ProcessMessage handles one inbound message. It never panics and never
// returns an error; failures are logged and answered with a generic reply.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) {
	logger := e.logger.With("chat_id", msg.ChatID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "panic", r, "stack", string(debug.Stack()))
			e.countError("panic")
			e.sendText(ctx, msg.ChatID, msgGenericFailure)
		}
	}()

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx, strconv.FormatInt(msg.ChatID, 10))
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
		} else if !allowed {
			if e.metrics != nil {
				e.metrics.RateLimited.Inc()
			}
			logger.Info("message rate limited")
			e.sendText(ctx, msg.ChatID, msgSlowDown)
			return
		}
	}

	if err := e.handle(ctx, msg); err != nil {
		logger.Error("failed handling message", "error", err)
		e.countError("convo")
		e.sendText(ctx, msg.ChatID, msgGenericFailure)
	}
}

func (e *Engine) handle(ctx context.Context, msg Message) error {
	if msg.Contact != nil {
		return e.handleContact(ctx, msg)
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "":
		return nil
	case text == "/start" || strings.HasPrefix(text, "/start "):
		if err := e.sessions.Clear(ctx, msg.ChatID); err != nil {
			return err
		}
		return e.sendKeyboard(ctx, msg.ChatID, welcomeText(msg.FirstName), WelcomeMenu())
	case isCancel(text):
		if err := e.sessions.Clear(ctx, msg.ChatID); err != nil {
			return err
		}
		return e.sendKeyboard(ctx, msg.ChatID, msgCancelled, MainMenu())
	}

	// Menu buttons win over a pending step: tapping one abandons the step.
	if action, ok := ParseMenuAction(text); ok {
		if err := e.sessions.Clear(ctx, msg.ChatID); err != nil {
			return err
		}
		return e.dispatch(ctx, msg, action)
	}

	sess, err := e.sessions.Get(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	if sess.State.Pending() {
		return e.step(ctx, msg, text, sess)
	}
	return e.sendKeyboard(ctx, msg.ChatID, msgUnknown, MainMenu())
}

func (e *Engine) dispatch(ctx context.Context, msg Message, action Action) error {
	switch action {
	case ActionConnect:
		return e.startOnboarding(ctx, msg.ChatID)
	case ActionExport:
		return e.handleExport(ctx, msg.ChatID)
	case ActionProfile:
		return e.showProfile(ctx, msg.ChatID)
	case ActionHelp:
		return e.sendKeyboard(ctx, msg.ChatID, helpText, MainMenu())
	case ActionSupport:
		return e.sendKeyboard(ctx, msg.ChatID, supportText(e.cfg.SupportContact), MainMenu())
	case ActionUpdatePrice:
		return e.startPriceUpdate(ctx, msg.ChatID)
	case ActionFindProduct:
		return e.startSearch(ctx, msg.ChatID)
	case ActionMarket:
		return e.startMarketSetup(ctx, msg.ChatID)
	default:
		return e.sendKeyboard(ctx, msg.ChatID, msgUnknown, MainMenu())
	}
}

func (e *Engine) step(ctx context.Context, msg Message, text string, sess Session) error {
	switch sess.State {
	case StateAwaitingURL:
		return e.onSiteURL(ctx, msg.ChatID, text)
	case StateAwaitingKey:
		return e.onAPIKey(ctx, msg.ChatID, text)
	case StateAwaitingSecret:
		return e.onAPISecret(ctx, msg.ChatID, text)
	case StateAwaitingProductID:
		return e.onProductID(ctx, msg.ChatID, text)
	case StateAwaitingPrice:
		return e.onPrice(ctx, msg.ChatID, text, sess)
	case StateAwaitingSearch:
		return e.onSearch(ctx, msg.ChatID, text)
	case StateAwaitingTorobKey:
		return e.onTorobKey(ctx, msg.ChatID, text)
	case StateAwaitingDiscount:
		return e.onDiscount(ctx, msg.ChatID, text)
	default:
		if err := e.sessions.Clear(ctx, msg.ChatID); err != nil {
			return err
		}
		return e.sendKeyboard(ctx, msg.ChatID, msgUnknown, MainMenu())
	}
}

// loadCredentials returns the stored store credentials, or ok=false when the
// chat has not finished connecting a site.
func (e *Engine) loadCredentials(ctx context.Context, chatID int64) (woo.Credentials, bool, error) {
	account, err := e.store.GetAccount(ctx, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return woo.Credentials{}, false, nil
	}
	if err != nil {
		return woo.Credentials{}, false, fmt.Errorf("load account: %w", err)
	}
	if !account.HasCredentials() {
		return woo.Credentials{}, false, nil
	}
	return woo.Credentials{
		SiteURL:   repo.Value(account.SiteURL),
		APIKey:    repo.Value(account.APIKey),
		APISecret: repo.Value(account.APISecret),
	}, true, nil
}

func (e *Engine) sendText(ctx context.Context, chatID int64, text string) {
	if err := e.messenger.SendText(ctx, chatID, text); err != nil {
		e.logger.Warn("failed sending text", "chat_id", chatID, "error", err)
		e.countError("messenger")
	}
}

func (e *Engine) sendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	if err := e.messenger.SendKeyboard(ctx, chatID, text, kb); err != nil {
		e.logger.Warn("failed sending message", "chat_id", chatID, "error", err)
		e.countError("messenger")
	}
	return nil
}

func (e *Engine) countError(component string) {
	if e.metrics != nil {
		e.metrics.Errors.WithLabelValues(component).Inc()
	}
}
