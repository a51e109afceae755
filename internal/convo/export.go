package convo

import (
	"context"
	"fmt"

	"woo-export-bot/internal/cache"
	"woo-export-bot/internal/export"
	"woo-export-bot/internal/woo"

	"github.com/google/uuid"
)

// handleExport fetches the catalog and delivers it as a spreadsheet. A fetch
// that fails after some pages still delivers what was collected, marked as
// partial; a fetch that yields nothing delivers no file.
func (e *Engine) handleExport(ctx context.Context, chatID int64) error {
	creds, ok, err := e.loadCredentials(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		e.countExport("missing_credentials")
		return e.sendKeyboard(ctx, chatID, msgConnectFirst, MainMenu())
	}

	exportID := uuid.NewString()
	logger := e.logger.With("chat_id", chatID, "export_id", exportID)
	e.sendText(ctx, chatID, msgExporting)

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.ExportTimeout)
	defer cancel()

	result, fetchErr := e.catalog.FetchProducts(fetchCtx, creds, woo.FetchOptions{Status: e.cfg.ExportStatus})
	var products []woo.Product
	if result != nil {
		products = result.Products
	}
	if fetchErr != nil && len(products) == 0 {
		logger.Error("catalog fetch failed", "error", fetchErr)
		e.countExport("failed")
		e.countError("woo")
		return e.sendKeyboard(ctx, chatID, "Export failed: "+describeStoreError(fetchErr), MainMenu())
	}
	incomplete := fetchErr != nil || (result != nil && result.Incomplete)
	if fetchErr != nil {
		logger.Warn("catalog fetch incomplete", "error", fetchErr, "products", len(products))
	}

	if e.mirror != nil {
		snapshot := cache.CatalogSnapshot{FetchedAt: e.now().UTC(), Incomplete: incomplete, Products: products}
		if err := e.mirror.Save(ctx, chatID, snapshot); err != nil {
			logger.Warn("failed mirroring catalog", "error", err)
		}
	}

	data, err := e.renderer.Render(products)
	if err != nil {
		logger.Error("failed rendering spreadsheet", "error", err)
		e.countExport("render_failed")
		e.countError("export")
		return e.sendKeyboard(ctx, chatID, msgGenericFailure, MainMenu())
	}

	doc := Document{
		Name:    export.FileName(e.now()),
		Data:    data,
		Caption: exportCaption(len(products), incomplete, fetchErr),
	}
	if err := e.messenger.SendDocument(ctx, chatID, doc); err != nil {
		logger.Error("failed sending spreadsheet", "error", err)
		e.countExport("send_failed")
		e.countError("messenger")
		return e.sendKeyboard(ctx, chatID, msgGenericFailure, MainMenu())
	}

	outcome := "complete"
	if incomplete {
		outcome = "partial"
	}
	e.countExport(outcome)
	if e.metrics != nil {
		e.metrics.ExportedProducts.Observe(float64(len(products)))
	}
	logger.Info("catalog exported", "products", len(products), "outcome", outcome)
	return nil
}

func exportCaption(count int, incomplete bool, fetchErr error) string {
	if !incomplete {
		if count == 0 {
			return "Your store has no products yet."
		}
		return fmt.Sprintf("Exported %d products.", count)
	}
	reason := "the store stopped answering"
	if fetchErr != nil {
		reason = describeStoreError(fetchErr)
	}
	return fmt.Sprintf("Warning: this export is incomplete (%d products). Some products are missing because %s", count, reason)
}

func (e *Engine) countExport(outcome string) {
	if e.metrics != nil {
		e.metrics.Exports.WithLabelValues(outcome).Inc()
	}
}
