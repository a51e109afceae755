package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"woo-export-bot/internal/woo"
)

func (e *Engine) startPriceUpdate(ctx context.Context, chatID int64) error {
	_, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingProductID}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskProductID, CancelMenu())
}

func (e *Engine) onProductID(ctx context.Context, chatID int64, text string) error {
	id, err := parseProductID(text)
	if err != nil {
		return e.sendKeyboard(ctx, chatID, msgInvalidProductID, CancelMenu())
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingPrice, ProductID: id}); err != nil {
		return err
	}

	prompt := fmt.Sprintf("Send the new price for product #%d.", id)
	if product, ok := e.mirroredProduct(ctx, chatID, id); ok {
		prompt = fmt.Sprintf("Product #%d %q currently costs %s. Send the new price.", id, product.Name, formatPrice(product.Price))
	}
	return e.sendKeyboard(ctx, chatID, prompt, CancelMenu())
}

func (e *Engine) onPrice(ctx context.Context, chatID int64, text string, sess Session) error {
	price, err := parsePriceInput(text)
	if err != nil {
		return e.sendKeyboard(ctx, chatID, msgInvalidPrice, CancelMenu())
	}
	creds, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateComplete}); err != nil {
		return err
	}
	if !ok {
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	product, err := e.catalog.UpdatePrice(reqCtx, creds, sess.ProductID, price)
	if err != nil {
		e.logger.Warn("price update failed", "chat_id", chatID, "product_id", sess.ProductID, "error", err)
		var apiErr *woo.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return e.sendKeyboard(ctx, chatID, fmt.Sprintf("Product #%d was not found in your store.", sess.ProductID), MainMenu())
		}
		return e.sendKeyboard(ctx, chatID, "Price update failed: "+describeStoreError(err), MainMenu())
	}
	e.logger.Info("product price updated", "chat_id", chatID, "product_id", sess.ProductID, "price", price.String())

	name := strings.TrimSpace(product.Name)
	if name == "" {
		name = fmt.Sprintf("#%d", sess.ProductID)
	}
	return e.sendKeyboard(ctx, chatID, fmt.Sprintf("Price of %s updated to %s.", name, formatPrice(price)), MainMenu())
}

func (e *Engine) mirroredProduct(ctx context.Context, chatID, productID int64) (woo.Product, bool) {
	if e.mirror == nil {
		return woo.Product{}, false
	}
	snapshot, err := e.mirror.Load(ctx, chatID)
	if err != nil {
		e.logger.Warn("failed loading catalog mirror", "chat_id", chatID, "error", err)
		return woo.Product{}, false
	}
	return snapshot.Find(productID)
}

func (e *Engine) startSearch(ctx context.Context, chatID int64) error {
	_, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateAwaitingSearch}); err != nil {
		return err
	}
	return e.sendKeyboard(ctx, chatID, msgAskSearch, CancelMenu())
}

func (e *Engine) onSearch(ctx context.Context, chatID int64, text string) error {
	query := strings.TrimSpace(text)
	if query == "" {
		return e.sendKeyboard(ctx, chatID, msgEmptySearch, CancelMenu())
	}
	creds, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if err := e.sessions.Put(ctx, chatID, Session{State: StateComplete}); err != nil {
		return err
	}
	if !ok {
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	result, err := e.catalog.FetchProducts(reqCtx, creds, woo.FetchOptions{Search: query, MaxProducts: searchResultLimit})
	if err != nil && (result == nil || len(result.Products) == 0) {
		e.logger.Warn("product search failed", "chat_id", chatID, "error", err)
		return e.sendKeyboard(ctx, chatID, "Search failed: "+describeStoreError(err), MainMenu())
	}
	reply := formatProductList(rankProducts(result.Products, query))
	if summary := e.marketSummary(ctx, chatID, query); summary != "" {
		reply += "\n\n" + summary
	}
	return e.sendKeyboard(ctx, chatID, reply, MainMenu())
}
