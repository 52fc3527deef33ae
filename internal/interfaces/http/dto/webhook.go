package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// ErrEmptyPayload is returned for bodies with no items
var ErrEmptyPayload = errors.New("payload has no items")

// StockItemRequest is one {sku, qty} pair pushed by the webhook
type StockItemRequest struct {
	SKU   string           `json:"sku" validate:"required,max=64"`
	Qty   *int             `json:"qty" validate:"required"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// ToDomain converts the request into a pipeline item
func (r StockItemRequest) ToDomain() integration.StockItem {
	return integration.StockItem{SKU: r.SKU, Quantity: *r.Qty, Price: r.Price}
}

// SaleItemRequest is one sold line
type SaleItemRequest struct {
	SKU string `json:"sku" validate:"required,max=64"`
	Qty *int   `json:"qty" validate:"required,gte=0"`
}

// DecodeItems accepts either a single JSON object or an array of objects
func DecodeItems[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
	} else {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		items = []T{one}
	}
	if len(items) == 0 {
		return nil, ErrEmptyPayload
	}
	return items, nil
}

// AuditRunResponse is one audit run in the history API
type AuditRunResponse struct {
	Flow      string             `json:"flow"`
	RequestID string             `json:"request_id"`
	DryRun    bool               `json:"dryrun"`
	StartedAt time.Time          `json:"started_at"`
	Counts    map[string]int     `json:"counts"`
	Rows      []AuditRowResponse `json:"rows,omitempty"`
}

// AuditRowResponse is one audit row in the history API
type AuditRowResponse struct {
	SKU         string           `json:"sku"`
	QtyBefore   *int             `json:"qty_before"`
	QtyAfter    *int             `json:"qty_after"`
	PriceBefore *decimal.Decimal `json:"price_before"`
	PriceAfter  *decimal.Decimal `json:"price_after"`
	Action      string           `json:"action"`
	Reason      string           `json:"reason,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	DryRun      bool             `json:"dryrun"`
	Timestamp   time.Time        `json:"ts"`
}

// CountsByName renders action counts with string keys
func CountsByName(counts map[integration.AuditAction]int) map[string]int {
	out := make(map[string]int, len(counts))
	for action, n := range counts {
		out[action.String()] = n
	}
	return out
}

// NewAuditRunResponse converts a stored batch
func NewAuditRunResponse(batch integration.AuditBatch, withRows bool) AuditRunResponse {
	resp := AuditRunResponse{
		Flow:      batch.Flow.String(),
		RequestID: batch.RequestID,
		DryRun:    batch.DryRun,
		StartedAt: batch.StartedAt,
		Counts:    CountsByName(batch.Counts()),
	}
	if withRows {
		resp.Rows = NewAuditRowResponses(batch.Rows)
	}
	return resp
}

// NewAuditRowResponses converts stored rows
func NewAuditRowResponses(rows []integration.AuditRow) []AuditRowResponse {
	out := make([]AuditRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, AuditRowResponse{
			SKU:         r.SKU,
			QtyBefore:   r.QtyBefore,
			QtyAfter:    r.QtyAfter,
			PriceBefore: r.PriceBefore,
			PriceAfter:  r.PriceAfter,
			Action:      r.Action.String(),
			Reason:      r.Reason,
			Detail:      r.Detail,
			DryRun:      r.DryRun,
			Timestamp:   r.Timestamp,
		})
	}
	return out
}
