package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// WebhookPipeline is the part of the sync pipeline the webhook drives
type WebhookPipeline interface {
	RunStock(ctx context.Context, items []integration.StockItem, opts appintegration.RunOptions) (*appintegration.RunSummary, error)
	RunSale(ctx context.Context, sales []appintegration.SaleItem, opts appintegration.RunOptions) (*appintegration.RunSummary, error)
}

// WebhookHandler accepts stock and sale pushes
type WebhookHandler struct {
	pipeline    WebhookPipeline
	validate    *validator.Validate
	forceDryRun bool
}

// NewWebhookHandler creates a new WebhookHandler. forceDryRun makes every
// call a dry run regardless of the query string.
func NewWebhookHandler(pipeline WebhookPipeline, forceDryRun bool) *WebhookHandler {
	return &WebhookHandler{
		pipeline:    pipeline,
		validate:    middleware.NewValidator(),
		forceDryRun: forceDryRun,
	}
}

// Stock handles POST /webhook/stock
func (h *WebhookHandler) Stock(c *gin.Context) {
	reqs, ok := decodeAndValidate[dto.StockItemRequest](h, c)
	if !ok {
		return
	}
	items := make([]integration.StockItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, r.ToDomain())
	}

	summary, err := h.pipeline.RunStock(c.Request.Context(), items, appintegration.RunOptions{DryRun: h.dryRun(c)})
	h.respond(c, summary, err)
}

// Sale handles POST /webhook/sale
func (h *WebhookHandler) Sale(c *gin.Context) {
	reqs, ok := decodeAndValidate[dto.SaleItemRequest](h, c)
	if !ok {
		return
	}
	sales := make([]appintegration.SaleItem, 0, len(reqs))
	for _, r := range reqs {
		sales = append(sales, appintegration.SaleItem{SKU: r.SKU, Quantity: *r.Qty})
	}

	summary, err := h.pipeline.RunSale(c.Request.Context(), sales, appintegration.RunOptions{DryRun: h.dryRun(c)})
	h.respond(c, summary, err)
}

func (h *WebhookHandler) dryRun(c *gin.Context) bool {
	if h.forceDryRun {
		return true
	}
	v, err := strconv.ParseBool(c.Query("dryrun"))
	return err == nil && v
}

func decodeAndValidate[T any](h *WebhookHandler, c *gin.Context) ([]T, bool) {
	requestID := middleware.GetRequestID(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.NewWebhookError(dto.MsgTooLarge, requestID))
			return nil, false
		}
		c.JSON(http.StatusBadRequest, dto.NewWebhookError(dto.MsgInvalidPayload, requestID))
		return nil, false
	}

	items, err := dto.DecodeItems[T](body)
	if err != nil {
		logger.L(c.Request.Context()).Warn("Rejected webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewWebhookError(dto.MsgInvalidPayload, requestID))
		return nil, false
	}

	for i := range items {
		if err := h.validate.Struct(items[i]); err != nil {
			resp := dto.NewWebhookError(dto.MsgInvalidPayload, requestID)
			resp.Details = middleware.ValidationDetails(err)
			c.JSON(http.StatusBadRequest, resp)
			return nil, false
		}
	}
	return items, true
}

func (h *WebhookHandler) respond(c *gin.Context, summary *appintegration.RunSummary, err error) {
	requestID := middleware.GetRequestID(c)
	if err != nil {
		logger.L(c.Request.Context()).Error("Webhook sync failed", zap.Error(err))
		message := dto.MsgInternal
		if integration.IsAuthFailure(err) {
			message = "erp authentication failed"
		}
		c.JSON(http.StatusInternalServerError, dto.NewWebhookError(message, requestID))
		return
	}

	count := summary.Count
	dryRun := summary.DryRun
	c.JSON(http.StatusOK, dto.WebhookResponse{
		Status:    dto.StatusOK,
		Summary:   summary.Summary,
		Count:     &count,
		Counts:    dto.CountsByName(summary.Counts),
		DryRun:    &dryRun,
		RequestID: requestID,
	})
}
