package integration

import (
	"fmt"
	"strings"
)

// FieldChange is one changed canonical field in a partial update
type FieldChange struct {
	Field  string
	Before string
	After  string
}

// UpdateResult is the outcome of a partial commerce update.
// OK=false carries a business Reason; Skipped and DryRun both mean no write happened.
type UpdateResult struct {
	OK      bool
	ID      int64
	Skipped bool
	DryRun  bool
	Changes []FieldChange
	Before  *CommerceProduct
	Reason  string
}

// Describe renders the changes as "field: before -> after" pairs.
func (r UpdateResult) Describe() string {
	parts := make([]string, 0, len(r.Changes))
	for _, c := range r.Changes {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Field, c.Before, c.After))
	}
	return strings.Join(parts, "; ")
}

// AdjustResult is the outcome of an ERP stock adjustment.
type AdjustResult struct {
	OK         bool
	Reason     string
	ProductID  int64
	LocationID int64
	QuantID    int64
	Quantity   int
	// PreviousQuantity is the ERP quantity before the adjustment, when known
	PreviousQuantity int
	Created          bool
	DryRun           bool
}

// AdjustFailed builds a failed adjustment
func AdjustFailed(reason string) AdjustResult {
	return AdjustResult{OK: false, Reason: reason}
}
