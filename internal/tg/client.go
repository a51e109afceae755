package tg

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"woo-export-bot/internal/convo"
	"woo-export-bot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Config holds configuration to initialise the Telegram client.
type Config struct {
	Token string
	// WebhookURL switches the client to webhook mode when set.
	WebhookURL string
	// WebhookSecret is registered as secret_token and required on every
	// webhook delivery. A random one is generated when empty.
	WebhookSecret string
	Debug         bool
	// APIEndpoint overrides tgbotapi.APIEndpoint (format "<base>/bot%s/%s").
	APIEndpoint string
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// MessageProcessor handles inbound chat messages.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg convo.Message)
}

// Client wraps the Bot API client and dispatches updates to the processor.
type Client struct {
	bot        *tgbotapi.BotAPI
	logger     *slog.Logger
	metrics    *metrics.Metrics
	processor  MessageProcessor
	webhookURL string
	secret     string

	mu      sync.RWMutex
	baseCtx context.Context
	wg      sync.WaitGroup

	// queues holds the backlog of every chat that has a running worker.
	queueMu sync.Mutex
	queues  map[int64][]convo.Message
}

// secretHeader carries the webhook secret_token on every delivery.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// New authorises against the Bot API (getMe) and returns a client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return nil, err
		}
	}

	c := &Client{
		bot:        bot,
		logger:     logger.With("component", "tg"),
		metrics:    cfg.Metrics,
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
		secret:     secret,
		baseCtx:    context.Background(),
		queues:     make(map[int64][]convo.Message),
	}
	c.logger.Info("telegram bot authorised", "username", bot.Self.UserName)
	return c, nil
}

// SetMessageProcessor registers message processor callback.
func (c *Client) SetMessageProcessor(processor MessageProcessor) {
	c.processor = processor
}

// UsesWebhook reports whether updates arrive through ServeHTTP.
func (c *Client) UsesWebhook() bool {
	return c.webhookURL != ""
}

// Start registers the webhook, or long-polls until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	if c.UsesWebhook() {
		// WebhookConfig in v5.5.1 has no secret_token field.
		params := tgbotapi.Params{
			"url":          c.webhookURL,
			"secret_token": c.secret,
		}
		resp, err := c.bot.MakeRequest("setWebhook", params)
		if err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		if !resp.Ok {
			return fmt.Errorf("set webhook: %s", resp.Description)
		}
		c.logger.Info("telegram webhook registered", "url", c.webhookURL)
		return nil
	}

	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		c.logger.Warn("failed removing webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)
	c.logger.Info("telegram long polling started")

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram long polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.dispatch(update)
		}
	}
}

// Close waits for in-flight message handlers.
func (c *Client) Close() {
	c.wg.Wait()
}

// ServeHTTP accepts webhook deliveries carrying the registered secret token.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	given := r.Header.Get(secretHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(c.secret)) != 1 {
		c.logger.Warn("webhook delivery with bad secret token", "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	update, err := c.bot.HandleUpdate(r)
	if err != nil {
		c.logger.Warn("invalid webhook update", "error", err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	c.dispatch(*update)
	w.WriteHeader(http.StatusOK)
}

func (c *Client) dispatch(update tgbotapi.Update) {
	msg, kind, ok := toMessage(update)
	if !ok {
		return
	}
	if c.metrics != nil {
		c.metrics.TGIncomingMessages.WithLabelValues(kind).Inc()
	}
	c.logger.Debug("received message", "chat_id", msg.ChatID, "type", kind)

	if c.processor == nil {
		return
	}
	c.enqueue(msg)
}

// enqueue appends msg to its chat's backlog. Each chat has at most one
// worker, so a chat's messages are processed one at a time in arrival order
// while different chats run concurrently.
func (c *Client) enqueue(msg convo.Message) {
	c.queueMu.Lock()
	backlog, running := c.queues[msg.ChatID]
	c.queues[msg.ChatID] = append(backlog, msg)
	if running {
		c.queueMu.Unlock()
		return
	}
	c.wg.Add(1)
	c.queueMu.Unlock()

	go c.drain(msg.ChatID)
}

func (c *Client) drain(chatID int64) {
	defer c.wg.Done()

	c.mu.RLock()
	ctx := c.baseCtx
	c.mu.RUnlock()

	for {
		c.queueMu.Lock()
		backlog := c.queues[chatID]
		if len(backlog) == 0 {
			delete(c.queues, chatID)
			c.queueMu.Unlock()
			return
		}
		msg := backlog[0]
		c.queues[chatID] = backlog[1:]
		c.queueMu.Unlock()

		c.processor.ProcessMessage(ctx, msg)
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// toMessage translates an update into a transport-neutral message. Updates
// without a chat message (edits, callbacks, channel posts) are ignored.
func toMessage(update tgbotapi.Update) (convo.Message, string, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return convo.Message{}, "", false
	}
	msg := convo.Message{
		ChatID: m.Chat.ID,
		Text:   m.Text,
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.FirstName = m.From.FirstName
		msg.LastName = m.From.LastName
		msg.Username = m.From.UserName
	}
	if m.Contact != nil {
		msg.Contact = &convo.Contact{
			PhoneNumber: m.Contact.PhoneNumber,
			FirstName:   m.Contact.FirstName,
			LastName:    m.Contact.LastName,
			UserID:      m.Contact.UserID,
		}
		return msg, "contact", true
	}
	if m.Text == "" {
		return convo.Message{}, "", false
	}
	if m.IsCommand() {
		return msg, "command", true
	}
	return msg, "text", true
}

// SendText sends a plain text message.
func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	c.countOutgoing("text")
	return nil
}

// SendKeyboard sends text with a reply keyboard.
func (c *Client) SendKeyboard(_ context.Context, chatID int64, text string, kb convo.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = toReplyMarkup(kb)
	}
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send keyboard: %w", err)
	}
	c.countOutgoing("keyboard")
	return nil
}

// SendDocument uploads an in-memory file.
func (c *Client) SendDocument(_ context.Context, chatID int64, doc convo.Document) error {
	if len(doc.Data) == 0 {
		return errors.New("send document: empty data")
	}
	cfg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	cfg.Caption = doc.Caption
	if _, err := c.bot.Send(cfg); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	c.countOutgoing("document")
	return nil
}

func toReplyMarkup(kb convo.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			if b.RequestContact {
				buttons = append(buttons, tgbotapi.NewKeyboardButtonContact(b.Label))
			} else {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Label))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

func (c *Client) countOutgoing(kind string) {
	if c.metrics != nil {
		c.metrics.TGOutgoingMessages.WithLabelValues(kind).Inc()
	}
}
