package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Flow identifies the pipeline variant that produced a row
// ---------------------------------------------------------------------------

// Flow identifies a sync pipeline variant
type Flow string

const (
	FlowProducts Flow = "products"
	FlowStock    Flow = "stock"
	FlowSale     Flow = "sale"
)

// IsValid returns true if the flow is known
func (f Flow) IsValid() bool {
	switch f {
	case FlowProducts, FlowStock, FlowSale:
		return true
	}
	return false
}

func (f Flow) String() string { return string(f) }

// ---------------------------------------------------------------------------
// AuditAction is the terminal state of one processed item
// ---------------------------------------------------------------------------

// AuditAction is the terminal state of a processed item
type AuditAction string

const (
	AuditActionUpdated            AuditAction = "updated"
	AuditActionSkipped            AuditAction = "skipped"
	AuditActionSkippedNegativeQty AuditAction = "skipped_negative_qty"
	AuditActionDryRun             AuditAction = "dryrun"
	AuditActionFailed             AuditAction = "failed"
	AuditActionError              AuditAction = "error"
)

// AllAuditActions lists every terminal state in reporting order
var AllAuditActions = []AuditAction{
	AuditActionUpdated,
	AuditActionSkipped,
	AuditActionSkippedNegativeQty,
	AuditActionDryRun,
	AuditActionFailed,
	AuditActionError,
}

// IsValid returns true if the action is a known terminal state
func (a AuditAction) IsValid() bool {
	for _, known := range AllAuditActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a AuditAction) String() string { return string(a) }

// Reasons attached to audit rows and result values
const (
	ReasonNotFound         = "not_found"
	ReasonNoChanges        = "no_changes"
	ReasonNegativeQuantity = "negative_quantity"
	ReasonFetchFailed      = "fetch_failed"
	ReasonAdjustError      = "adjust_error"
	ReasonNoLocation       = "no_internal_location"
	ReasonQuantWrite       = "quant_write_failed"
	ReasonQuantCreate      = "quant_create_failed"
)

// AuditRow records one reconciliation decision.
// Before values are nil when the commerce record was never read.
type AuditRow struct {
	SKU         string
	QtyBefore   *int
	QtyAfter    *int
	PriceBefore *decimal.Decimal
	PriceAfter  *decimal.Decimal
	Action      AuditAction
	Reason      string
	Detail      string
	DryRun      bool
	Timestamp   time.Time
}

// AuditBatch is the set of rows produced by one pipeline run
type AuditBatch struct {
	Flow      Flow
	RequestID string
	DryRun    bool
	StartedAt time.Time
	Rows      []AuditRow
}

// Counts tallies rows per action
func (b AuditBatch) Counts() map[AuditAction]int {
	counts := make(map[AuditAction]int, len(AllAuditActions))
	for _, row := range b.Rows {
		counts[row.Action]++
	}
	return counts
}
