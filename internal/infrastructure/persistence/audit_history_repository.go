package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// AuditRunFilter narrows run listings
type AuditRunFilter struct {
	Flow      integration.Flow
	DryRun    *bool
	Since     *time.Time
	SortBy    string
	SortOrder string
}

// AuditRunListResult is a page of runs
type AuditRunListResult struct {
	Runs       []integration.AuditBatch
	TotalCount int64
}

// GormAuditHistoryRepository stores audit runs and rows using GORM
type GormAuditHistoryRepository struct {
	db *gorm.DB
}

// NewGormAuditHistoryRepository creates a new GormAuditHistoryRepository
func NewGormAuditHistoryRepository(db *gorm.DB) *GormAuditHistoryRepository {
	return &GormAuditHistoryRepository{db: db}
}

// Record saves a run and its rows in one transaction. It implements
// integration.AuditSink.
func (r *GormAuditHistoryRepository) Record(ctx context.Context, batch integration.AuditBatch) error {
	run := NewAuditRunModel(batch)
	rows := run.Rows
	run.Rows = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("save audit run: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("save audit rows: %w", err)
		}
		return nil
	})
}

// FindRuns returns runs without their rows, most recent first by default
func (r *GormAuditHistoryRepository) FindRuns(ctx context.Context, filter AuditRunFilter, page, pageSize int) (*AuditRunListResult, error) {
	query := r.db.WithContext(ctx).Model(&AuditRunModel{})
	if filter.Flow != "" {
		query = query.Where("flow = ?", filter.Flow.String())
	}
	if filter.DryRun != nil {
		query = query.Where("dry_run = ?", *filter.DryRun)
	}
	if filter.Since != nil {
		query = query.Where("started_at >= ?", filter.Since.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	sortBy := ValidateSortField(filter.SortBy, AuditRunSortFields, "started_at")
	query = query.Order(sortBy + " " + ValidateSortOrder(filter.SortOrder))

	var models []AuditRunModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	result := &AuditRunListResult{Runs: make([]integration.AuditBatch, 0, len(models)), TotalCount: total}
	for i := range models {
		result.Runs = append(result.Runs, models[i].ToDomain())
	}
	return result, nil
}

// RowsForSKU returns the latest rows recorded for a SKU, newest first
func (r *GormAuditHistoryRepository) RowsForSKU(ctx context.Context, sku string, limit int) ([]integration.AuditRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []AuditRowModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", integration.NormalizeSKU(sku)).
		Order("ts DESC").Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	rows := make([]integration.AuditRow, 0, len(models))
	for i := range models {
		rows = append(rows, models[i].ToDomain())
	}
	return rows, nil
}

var _ integration.AuditSink = (*GormAuditHistoryRepository)(nil)
