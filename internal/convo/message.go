package convo

import (
	"context"

	"woo-export-bot/internal/cache"
	"woo-export-bot/internal/woo"

	"github.com/shopspring/decimal"
)

// Message is an inbound chat message, independent of the transport.
type Message struct {
	ChatID    int64
	SenderID  int64
	FirstName string
	LastName  string
	Username  string
	Text      string
	Contact   *Contact
}

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	UserID      int64
}

// Button is one reply-keyboard button.
type Button struct {
	Label          string
	RequestContact bool
}

// Keyboard is a reply keyboard, row by row.
type Keyboard [][]Button

// Document is a file attachment sent once and then discarded.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Messenger delivers outbound messages to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendDocument(ctx context.Context, chatID int64, doc Document) error
}

// Catalog is the store-facing side of the WooCommerce client.
type Catalog interface {
	FetchProducts(ctx context.Context, creds woo.Credentials, opts woo.FetchOptions) (*woo.FetchResult, error)
	UpdatePrice(ctx context.Context, creds woo.Credentials, productID int64, price decimal.Decimal) (*woo.Product, error)
	Ping(ctx context.Context, creds woo.Credentials) error
}

// Market looks up the lowest competitor price for a product name.
type Market interface {
	MinPrice(ctx context.Context, apiKey, query string) (decimal.Decimal, bool, error)
}

// Renderer serializes products into a spreadsheet.
type Renderer interface {
	Render(products []woo.Product) ([]byte, error)
}

// Mirror keeps the last fetched catalog per chat.
type Mirror interface {
	Save(ctx context.Context, chatID int64, snapshot cache.CatalogSnapshot) error
	Load(ctx context.Context, chatID int64) (*cache.CatalogSnapshot, error)
}
