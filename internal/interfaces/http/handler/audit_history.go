package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

// AuditHistory is the read side of the audit repository
type AuditHistory interface {
	FindRuns(ctx context.Context, filter persistence.AuditRunFilter, page, pageSize int) (*persistence.AuditRunListResult, error)
	RowsForSKU(ctx context.Context, sku string, limit int) ([]integration.AuditRow, error)
}

// AuditHistoryHandler serves past sync runs
type AuditHistoryHandler struct {
	BaseHandler
	history AuditHistory
}

// NewAuditHistoryHandler creates a new AuditHistoryHandler
func NewAuditHistoryHandler(history AuditHistory) *AuditHistoryHandler {
	return &AuditHistoryHandler{history: history}
}

// ListRuns handles GET /audit/runs
func (h *AuditHistoryHandler) ListRuns(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := persistence.AuditRunFilter{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if flow := strings.TrimSpace(c.Query("flow")); flow != "" {
		filter.Flow = integration.Flow(flow)
		if !filter.Flow.IsValid() {
			h.BadRequest(c, "unknown flow")
			return
		}
	}
	if raw := c.Query("dryrun"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "dryrun must be a boolean")
			return
		}
		filter.DryRun = &v
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = &since
	}

	result, err := h.history.FindRuns(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to list audit runs", zap.Error(err))
		h.InternalError(c, "failed to list audit runs")
		return
	}

	runs := make([]dto.AuditRunResponse, 0, len(result.Runs))
	for _, batch := range result.Runs {
		runs = append(runs, dto.NewAuditRunResponse(batch, false))
	}
	h.SuccessWithMeta(c, runs, result.TotalCount, page, pageSize)
}

// RowsForSKU handles GET /audit/skus/:sku
func (h *AuditHistoryHandler) RowsForSKU(c *gin.Context) {
	sku := integration.NormalizeSKU(c.Param("sku"))
	if sku == "" {
		h.BadRequest(c, "sku is required")
		return
	}

	rows, err := h.history.RowsForSKU(c.Request.Context(), sku, queryInt(c, "limit", 20))
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to load audit rows", zap.String("sku", sku), zap.Error(err))
		h.InternalError(c, "failed to load audit rows")
		return
	}
	h.Success(c, dto.NewAuditRowResponses(rows))
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
