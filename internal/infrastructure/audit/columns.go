// Package audit writes reconciliation audit rows to artifacts and
// fans them out to history, event and object-storage sinks.
package audit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
)

var (
	productColumns = []string{"sku", "price_before", "price_after", "qty_before", "qty_after", "action", "reason", "dryrun", "ts"}
	stockColumns   = []string{"sku", "qty_before", "qty_after", "price_before", "price_after", "change_type", "detail", "dryrun", "ts"}
)

// Columns returns the artifact header for a flow. The sale flow shares
// the stock layout.
func Columns(flow integration.Flow) []string {
	if flow == integration.FlowProducts {
		return productColumns
	}
	return stockColumns
}

// Values renders a row in the column order of Columns(flow)
func Values(flow integration.Flow, row integration.AuditRow) []string {
	ts := row.Timestamp.UTC().Format(time.RFC3339)
	dry := strconv.FormatBool(row.DryRun)

	if flow == integration.FlowProducts {
		return []string{
			row.SKU,
			formatPrice(row.PriceBefore),
			formatPrice(row.PriceAfter),
			formatQty(row.QtyBefore),
			formatQty(row.QtyAfter),
			row.Action.String(),
			row.Reason,
			dry,
			ts,
		}
	}

	detail := row.Detail
	if detail == "" {
		detail = row.Reason
	}
	return []string{
		row.SKU,
		formatQty(row.QtyBefore),
		formatQty(row.QtyAfter),
		formatPrice(row.PriceBefore),
		formatPrice(row.PriceAfter),
		row.Action.String(),
		detail,
		dry,
		ts,
	}
}

// FileName builds {flow}_{dryrun|real}_{YYYYMMDD_HHMMSS}_{reqid8}.{ext}
func FileName(batch integration.AuditBatch, ext string) string {
	mode := "real"
	if batch.DryRun {
		mode = "dryrun"
	}
	reqID := batch.RequestID
	if len(reqID) > 8 {
		reqID = reqID[:8]
	}
	if reqID == "" {
		reqID = "local"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", batch.Flow, mode, batch.StartedAt.UTC().Format("20060102_150405"), reqID, ext)
}

func formatQty(q *int) string {
	if q == nil {
		return ""
	}
	return strconv.Itoa(*q)
}

func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return ""
	}
	return p.StringFixed(2)
}
