package tg

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"woo-export-bot/internal/convo"
	"woo-export-bot/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeBotAPI answers Bot API methods and records the calls it receives.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

type apiCall struct {
	Method      string
	ContentType string
	Body        string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, ContentType: r.Header.Get("Content-Type"), Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Export","username":"export_bot"}}`)
	case "setWebhook", "deleteWebhook":
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}
}

func (f *fakeBotAPI) find(method string) (apiCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Method == method {
			return c, true
		}
	}
	return apiCall{}, false
}

const testSecret = "hook-secret_1"

func newTestClient(t *testing.T, webhookURL string) (*Client, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		Token:         "123:abc",
		WebhookURL:    webhookURL,
		WebhookSecret: testSecret,
		APIEndpoint:   srv.URL + "/bot%s/%s",
		HTTPClient:    srv.Client(),
	}, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, api
}

type captureProcessor struct {
	ch chan convo.Message
}

func (p *captureProcessor) ProcessMessage(_ context.Context, msg convo.Message) {
	p.ch <- msg
}

func textUpdate(updateID int, chatID int64, text string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": updateID,
			"date":       0,
			"text":       text,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"from":       map[string]any{"id": chatID, "is_bot": false, "first_name": "Ada"},
		},
	})
	return payload
}

func deliver(t *testing.T, c *Client, payload []byte, secret string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(string(payload)))
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, req)
	return rec.Code
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}, logging.Discard()); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestToMessageText(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "Profile",
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 7, FirstName: "Ada", LastName: "L", UserName: "ada"},
	}}
	msg, kind, ok := toMessage(update)
	if !ok || kind != "text" {
		t.Fatalf("expected text message, got %v %q", ok, kind)
	}
	if msg.ChatID != 42 || msg.SenderID != 7 || msg.Username != "ada" || msg.Text != "Profile" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestToMessageCommandAndContact(t *testing.T) {
	cmd := tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/start",
		Chat:     &tgbotapi.Chat{ID: 1},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
	if _, kind, ok := toMessage(cmd); !ok || kind != "command" {
		t.Fatalf("expected command, got %v %q", ok, kind)
	}

	contact := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 1},
		Contact: &tgbotapi.Contact{PhoneNumber: "+1555", FirstName: "Ada", UserID: 1},
	}}
	msg, kind, ok := toMessage(contact)
	if !ok || kind != "contact" || msg.Contact == nil || msg.Contact.PhoneNumber != "+1555" || msg.Contact.UserID != 1 {
		t.Fatalf("unexpected contact translation %+v %q %v", msg, kind, ok)
	}
}

func TestToMessageIgnoresNonMessages(t *testing.T) {
	if _, _, ok := toMessage(tgbotapi.Update{}); ok {
		t.Fatal("empty update must be ignored")
	}
	photoOnly := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}
	if _, _, ok := toMessage(photoOnly); ok {
		t.Fatal("message without text or contact must be ignored")
	}
}

func TestToReplyMarkup(t *testing.T) {
	markup := toReplyMarkup(convo.WelcomeMenu())
	if !markup.ResizeKeyboard {
		t.Fatal("expected resized keyboard")
	}
	first := markup.Keyboard[0][0]
	if first.Text != convo.LabelSharePhone || !first.RequestContact {
		t.Fatalf("expected contact button first, got %+v", first)
	}
	if markup.Keyboard[1][0].RequestContact {
		t.Fatal("menu buttons must not request contact")
	}
}

func TestSendKeyboardAndDocument(t *testing.T) {
	c, api := newTestClient(t, "")
	ctx := context.Background()

	if err := c.SendKeyboard(ctx, 42, "hello", convo.MainMenu()); err != nil {
		t.Fatalf("send keyboard: %v", err)
	}
	call, ok := api.find("sendMessage")
	if !ok || !strings.Contains(call.Body, "reply_markup") || !strings.Contains(call.Body, "hello") {
		t.Fatalf("unexpected sendMessage call %+v", call)
	}

	err := c.SendDocument(ctx, 42, convo.Document{Name: "products.xlsx", Data: []byte("PK\x03\x04"), Caption: "Exported 1 products."})
	if err != nil {
		t.Fatalf("send document: %v", err)
	}
	call, ok = api.find("sendDocument")
	if !ok || !strings.HasPrefix(call.ContentType, "multipart/form-data") {
		t.Fatalf("expected multipart upload, got %+v", call)
	}
	if !strings.Contains(call.Body, "products.xlsx") || !strings.Contains(call.Body, "Exported 1 products.") {
		t.Fatal("upload must carry file name and caption")
	}

	if err := c.SendDocument(ctx, 42, convo.Document{Name: "empty.xlsx"}); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestWebhookDeliversToProcessor(t *testing.T) {
	c, api := newTestClient(t, "https://bot.example.com/webhook/telegram")
	if !c.UsesWebhook() {
		t.Fatal("expected webhook mode")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	call, ok := api.find("setWebhook")
	if !ok {
		t.Fatal("expected setWebhook call")
	}
	if !strings.Contains(call.Body, "secret_token="+testSecret) {
		t.Fatalf("setWebhook must register the secret token, got %q", call.Body)
	}

	proc := &captureProcessor{ch: make(chan convo.Message, 1)}
	c.SetMessageProcessor(proc)

	if code := deliver(t, c, textUpdate(1, 42, "Help"), testSecret); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	select {
	case msg := <-proc.ch:
		if msg.ChatID != 42 || msg.Text != "Help" || msg.FirstName != "Ada" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not called")
	}
	c.Close()
}

func TestWebhookRejectsGarbage(t *testing.T) {
	c, _ := newTestClient(t, "https://bot.example.com/webhook/telegram")
	if code := deliver(t, c, []byte("not json"), testSecret); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestWebhookRejectsMissingOrWrongSecret(t *testing.T) {
	c, _ := newTestClient(t, "https://bot.example.com/webhook/telegram")
	proc := &captureProcessor{ch: make(chan convo.Message, 2)}
	c.SetMessageProcessor(proc)

	for _, secret := range []string{"", "hook-secret_2", testSecret + "x"} {
		if code := deliver(t, c, textUpdate(1, 42, "Connect to site"), secret); code != http.StatusUnauthorized {
			t.Fatalf("secret %q: expected 401, got %d", secret, code)
		}
	}
	c.Close()
	if len(proc.ch) != 0 {
		t.Fatal("forged updates must not reach the processor")
	}
}

func TestNewGeneratesWebhookSecret(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()
	c, err := New(Config{Token: "123:abc", APIEndpoint: srv.URL + "/bot%s/%s", HTTPClient: srv.Client()}, logging.Discard())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if len(c.secret) != 64 {
		t.Fatalf("expected generated 32-byte hex secret, got %q", c.secret)
	}
}

// orderedProcessor records message texts and holds the first one back.
type orderedProcessor struct {
	mu      sync.Mutex
	texts   []string
	holdFor time.Duration
	done    chan struct{}
}

func (p *orderedProcessor) ProcessMessage(_ context.Context, msg convo.Message) {
	if msg.Text == "https://shop.test" {
		time.Sleep(p.holdFor)
	}
	p.mu.Lock()
	p.texts = append(p.texts, msg.Text)
	p.mu.Unlock()
	p.done <- struct{}{}
}

func TestSameChatMessagesAreProcessedInOrder(t *testing.T) {
	c, _ := newTestClient(t, "https://bot.example.com/webhook/telegram")
	proc := &orderedProcessor{holdFor: 200 * time.Millisecond, done: make(chan struct{}, 2)}
	c.SetMessageProcessor(proc)

	if code := deliver(t, c, textUpdate(1, 42, "https://shop.test"), testSecret); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := deliver(t, c, textUpdate(2, 42, "abc123"), testSecret); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-proc.done:
		case <-time.After(2 * time.Second):
			t.Fatal("messages were not processed")
		}
	}
	c.Close()

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.texts) != 2 || proc.texts[0] != "https://shop.test" || proc.texts[1] != "abc123" {
		t.Fatalf("processing order = %v", proc.texts)
	}
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queues) != 0 {
		t.Fatalf("idle chat queues must be released, got %d", len(c.queues))
	}
}

// gateProcessor blocks chat 1 until chat 2 has been handled.
type gateProcessor struct {
	gate chan struct{}
	done chan int64
}

func (p *gateProcessor) ProcessMessage(_ context.Context, msg convo.Message) {
	if msg.ChatID == 1 {
		select {
		case <-p.gate:
		case <-time.After(2 * time.Second):
		}
		p.done <- msg.ChatID
		return
	}
	p.done <- msg.ChatID
	close(p.gate)
}

func TestDifferentChatsAreProcessedConcurrently(t *testing.T) {
	c, _ := newTestClient(t, "https://bot.example.com/webhook/telegram")
	proc := &gateProcessor{gate: make(chan struct{}), done: make(chan int64, 2)}
	c.SetMessageProcessor(proc)

	deliver(t, c, textUpdate(1, 1, "Help"), testSecret)
	deliver(t, c, textUpdate(2, 2, "Help"), testSecret)

	var order []int64
	for i := 0; i < 2; i++ {
		select {
		case id := <-proc.done:
			order = append(order, id)
		case <-time.After(3 * time.Second):
			t.Fatal("messages were not processed")
		}
	}
	c.Close()
	if order[0] != 2 || order[1] != 1 {
		t.Fatalf("a busy chat must not block other chats, order = %v", order)
	}
}
