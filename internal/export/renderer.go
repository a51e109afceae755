package export

import (
	"fmt"
	"time"

	"woo-export-bot/internal/woo"

	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet of every export.
const SheetName = "Products"

// Headers is the fixed column order of the export.
var Headers = []string{"ID", "Name", "Price", "Stock", "SKU", "Status", "Link"}

var columnWidths = []float64{10, 48, 12, 10, 18, 12, 60}

// Renderer turns products into an xlsx workbook.
type Renderer struct{}

// NewRenderer returns a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes one header row and one row per product, in input order.
// An empty slice yields a header-only workbook.
func (r *Renderer) Render(products []woo.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		price, _ := p.Price.Float64()
		row := []any{p.ID, p.Name, price, p.StockQuantity, p.SKU, p.Status, p.Permalink}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName names an export after its creation time so consecutive exports
// never collide in the chat.
func FileName(now time.Time) string {
	return fmt.Sprintf("products_%s.xlsx", now.Format("20060102_150405"))
}
