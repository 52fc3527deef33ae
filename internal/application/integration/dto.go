package integration

import (
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// Run summaries
const (
	SummaryDone       = "done"
	SummaryNoProducts = "no_products"
	SummaryNoItems    = "no_items"
	SummaryLocked     = "locked"
)

// RunOptions controls a single pipeline run
type RunOptions struct {
	DryRun bool
	// Since limits the ERP fetch to records modified at or after it
	Since *time.Time
}

// SaleItem is one sold line pushed into the ERP
type SaleItem struct {
	SKU      string
	Quantity int
}

// RunSummary is what the CLI prints and the webhook returns
type RunSummary struct {
	Flow      integration.Flow                `json:"flow"`
	Summary   string                          `json:"summary"`
	Count     int                             `json:"count"`
	Counts    map[integration.AuditAction]int `json:"counts"`
	RequestID string                          `json:"requestId"`
	DryRun    bool                            `json:"dryrun"`
	StartedAt time.Time                       `json:"startedAt"`
}

// newRunSummary builds a summary from a finished batch
func newRunSummary(batch integration.AuditBatch, summary string) *RunSummary {
	return &RunSummary{
		Flow:      batch.Flow,
		Summary:   summary,
		Count:     len(batch.Rows),
		Counts:    batch.Counts(),
		RequestID: batch.RequestID,
		DryRun:    batch.DryRun,
		StartedAt: batch.StartedAt,
	}
}

// Updated returns the number of rows that ended in a write
func (s *RunSummary) Updated() int {
	return s.Counts[integration.AuditActionUpdated]
}
