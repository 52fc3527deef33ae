package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// AuditRunModel is one pipeline run with per-action tallies
type AuditRunModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time `gorm:"not null"`
	Flow            string    `gorm:"type:varchar(16);not null;index"`
	RequestID       string    `gorm:"type:varchar(64);index"`
	DryRun          bool      `gorm:"not null;default:false"`
	StartedAt       time.Time `gorm:"not null;index"`
	TotalRows       int       `gorm:"not null;default:0"`
	Updated         int       `gorm:"not null;default:0"`
	Skipped         int       `gorm:"not null;default:0"`
	SkippedNegative int       `gorm:"not null;default:0"`
	DryRunRows      int       `gorm:"column:dryrun_rows;not null;default:0"`
	Failed          int       `gorm:"not null;default:0"`
	Errors          int       `gorm:"not null;default:0"`

	Rows []AuditRowModel `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (AuditRunModel) TableName() string {
	return "audit_runs"
}

// AuditRowModel is a single reconciliation decision
type AuditRowModel struct {
	ID          uint             `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time        `gorm:"not null"`
	RunID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	SKU         string           `gorm:"column:sku;type:varchar(128);not null;index"`
	QtyBefore   *int             `gorm:"column:qty_before"`
	QtyAfter    *int             `gorm:"column:qty_after"`
	PriceBefore *decimal.Decimal `gorm:"column:price_before;type:decimal(18,4)"`
	PriceAfter  *decimal.Decimal `gorm:"column:price_after;type:decimal(18,4)"`
	Action      string           `gorm:"type:varchar(32);not null;index"`
	Reason      string           `gorm:"type:varchar(128)"`
	Detail      string           `gorm:"type:text"`
	DryRun      bool             `gorm:"not null;default:false"`
	Ts          time.Time        `gorm:"column:ts;not null"`
}

// TableName returns the table name for GORM
func (AuditRowModel) TableName() string {
	return "audit_rows"
}

// NewAuditRunModel converts a finished batch into its persistence model
func NewAuditRunModel(batch integration.AuditBatch) *AuditRunModel {
	counts := batch.Counts()
	run := &AuditRunModel{
		ID:              uuid.New(),
		Flow:            batch.Flow.String(),
		RequestID:       batch.RequestID,
		DryRun:          batch.DryRun,
		StartedAt:       batch.StartedAt.UTC(),
		TotalRows:       len(batch.Rows),
		Updated:         counts[integration.AuditActionUpdated],
		Skipped:         counts[integration.AuditActionSkipped],
		SkippedNegative: counts[integration.AuditActionSkippedNegativeQty],
		DryRunRows:      counts[integration.AuditActionDryRun],
		Failed:          counts[integration.AuditActionFailed],
		Errors:          counts[integration.AuditActionError],
		Rows:            make([]AuditRowModel, 0, len(batch.Rows)),
	}
	for _, row := range batch.Rows {
		run.Rows = append(run.Rows, AuditRowModel{
			RunID:       run.ID,
			SKU:         row.SKU,
			QtyBefore:   row.QtyBefore,
			QtyAfter:    row.QtyAfter,
			PriceBefore: row.PriceBefore,
			PriceAfter:  row.PriceAfter,
			Action:      row.Action.String(),
			Reason:      row.Reason,
			Detail:      row.Detail,
			DryRun:      row.DryRun,
			Ts:          row.Timestamp.UTC(),
		})
	}
	return run
}

// ToDomain converts the run back into a batch. Rows are only present
// when they were preloaded.
func (m *AuditRunModel) ToDomain() integration.AuditBatch {
	batch := integration.AuditBatch{
		Flow:      integration.Flow(m.Flow),
		RequestID: m.RequestID,
		DryRun:    m.DryRun,
		StartedAt: m.StartedAt,
	}
	for i := range m.Rows {
		batch.Rows = append(batch.Rows, m.Rows[i].ToDomain())
	}
	return batch
}

// ToDomain converts the persistence model to an audit row
func (m *AuditRowModel) ToDomain() integration.AuditRow {
	return integration.AuditRow{
		SKU:         m.SKU,
		QtyBefore:   m.QtyBefore,
		QtyAfter:    m.QtyAfter,
		PriceBefore: m.PriceBefore,
		PriceAfter:  m.PriceAfter,
		Action:      integration.AuditAction(m.Action),
		Reason:      m.Reason,
		Detail:      m.Detail,
		DryRun:      m.DryRun,
		Timestamp:   m.Ts,
	}
}
