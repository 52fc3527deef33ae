package integration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// SyncPipeline runs the product, stock and sale flows item by item. A single
// item failure never aborts the batch; only ERP authentication does.
type SyncPipeline struct {
	erp     integration.ERPClient
	adapter *ReconciliationAdapter
	sink    integration.AuditSink
	metrics *telemetry.SyncMetrics
	now     func() time.Time
}

// PipelineOption configures a SyncPipeline
type PipelineOption func(*SyncPipeline)

// WithMetrics records run counters
func WithMetrics(m *telemetry.SyncMetrics) PipelineOption {
	return func(p *SyncPipeline) { p.metrics = m }
}

// WithPipelineClock sets the time source for audit timestamps
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *SyncPipeline) { p.now = now }
}

// NewSyncPipeline creates a pipeline. sink may be nil.
func NewSyncPipeline(erp integration.ERPClient, adapter *ReconciliationAdapter, sink integration.AuditSink, opts ...PipelineOption) *SyncPipeline {
	p := &SyncPipeline{erp: erp, adapter: adapter, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Adapter exposes the reconciliation adapter
func (p *SyncPipeline) Adapter() *ReconciliationAdapter {
	return p.adapter
}

type runState struct {
	batch integration.AuditBatch
	start time.Time
}

func (p *SyncPipeline) begin(ctx context.Context, flow integration.Flow, dryRun bool) (context.Context, *runState) {
	ctx = logger.WithFlow(ctx, flow.String())
	start := p.now()
	return ctx, &runState{
		start: start,
		batch: integration.AuditBatch{
			Flow:      flow,
			RequestID: logger.GetRequestID(ctx),
			DryRun:    dryRun,
			StartedAt: start,
		},
	}
}

// finish delivers the batch to the sink and builds the summary. Sink
// failures are logged and do not fail the run.
func (p *SyncPipeline) finish(ctx context.Context, st *runState, summary string) *RunSummary {
	if p.sink != nil && len(st.batch.Rows) > 0 {
		if err := p.sink.Record(ctx, st.batch); err != nil {
			logger.L(ctx).Error("Audit sink failed", zap.Error(err))
		}
	}
	p.metrics.RecordRun(ctx, st.batch, summary, p.now().Sub(st.start))

	result := newRunSummary(st.batch, summary)
	logger.L(ctx).Info("Sync run finished",
		zap.String("summary", summary),
		zap.Int("count", result.Count),
		zap.Int("updated", result.Updated()),
		zap.Bool("dryrun", st.batch.DryRun),
	)
	return result
}

// RunProducts pulls changed products from the ERP and pushes quantity and
// price to the commerce platform. Negative ERP quantities are not written.
func (p *SyncPipeline) RunProducts(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	ctx, st := p.begin(ctx, integration.FlowProducts, opts.DryRun)
	ctx, span := telemetry.StartSpan(ctx, "sync.products",
		telemetry.AttrFlow.String(integration.FlowProducts.String()),
		telemetry.AttrDryRun.Bool(opts.DryRun),
	)
	defer span.End()

	records, err := p.fetchERP(ctx, opts.Since)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.AttrItems.Int(len(records)))
	if len(records) == 0 {
		logger.L(ctx).Info("No products to sync")
		return p.finish(ctx, st, SummaryNoProducts), nil
	}

	for _, rec := range records {
		if !rec.HasSKU() {
			logger.L(ctx).Info("Dropping ERP product without SKU", zap.Int64("erp_id", rec.ID))
			continue
		}
		st.batch.Rows = append(st.batch.Rows, p.guard(ctx, rec.SKU, opts.DryRun, func() integration.AuditRow {
			return p.productRow(ctx, rec, opts.DryRun)
		}))
	}
	return p.finish(ctx, st, SummaryDone), nil
}

func (p *SyncPipeline) productRow(ctx context.Context, rec integration.ProductRecord, dryRun bool) integration.AuditRow {
	price := rec.Price
	if rec.Quantity < 0 {
		logger.L(ctx).Warn("Negative ERP quantity, not written",
			zap.String("sku", rec.SKU), zap.Int("quantity", rec.Quantity))
		zero := 0
		return integration.AuditRow{
			SKU:        integration.NormalizeSKU(rec.SKU),
			QtyAfter:   &zero,
			PriceAfter: &price,
			Action:     integration.AuditActionSkippedNegativeQty,
			Reason:     integration.ReasonNegativeQuantity,
			Detail:     "quantity: " + strconv.Itoa(rec.Quantity),
			DryRun:     dryRun,
			Timestamp:  p.now(),
		}
	}

	fields := map[string]any{FieldQuantity: rec.Quantity, FieldPrice: rec.Price}
	res, err := p.adapter.UpdatePartialBySku(ctx, rec.SKU, fields, dryRun)
	qty := rec.Quantity
	return p.rowFromResult(rec.SKU, &qty, &price, res, err, dryRun)
}

// RunStock pushes (sku, quantity) pairs to the commerce platform. A nil
// items slice pulls the pairs from the ERP.
func (p *SyncPipeline) RunStock(ctx context.Context, items []integration.StockItem, opts RunOptions) (*RunSummary, error) {
	ctx, st := p.begin(ctx, integration.FlowStock, opts.DryRun)
	ctx, span := telemetry.StartSpan(ctx, "sync.stock",
		telemetry.AttrFlow.String(integration.FlowStock.String()),
		telemetry.AttrDryRun.Bool(opts.DryRun),
	)
	defer span.End()

	if items == nil {
		records, err := p.fetchERP(ctx, opts.Since)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		items = make([]integration.StockItem, 0, len(records))
		for _, rec := range records {
			items = append(items, integration.StockItemFromRecord(rec))
		}
	}

	valid := make([]integration.StockItem, 0, len(items))
	for _, item := range items {
		if integration.NormalizeSKU(item.SKU) == "" {
			logger.L(ctx).Info("Dropping stock item without SKU")
			continue
		}
		valid = append(valid, item)
	}
	span.SetAttributes(telemetry.AttrItems.Int(len(valid)))
	if len(valid) == 0 {
		logger.L(ctx).Info("No stock items to sync")
		return p.finish(ctx, st, SummaryNoItems), nil
	}

	for _, item := range valid {
		st.batch.Rows = append(st.batch.Rows, p.guard(ctx, item.SKU, opts.DryRun, func() integration.AuditRow {
			return p.stockRow(ctx, item, opts.DryRun)
		}))
	}
	return p.finish(ctx, st, SummaryDone), nil
}

func (p *SyncPipeline) stockRow(ctx context.Context, item integration.StockItem, dryRun bool) integration.AuditRow {
	fields := map[string]any{FieldQuantity: item.Quantity}
	if item.Price != nil {
		fields[FieldPrice] = *item.Price
	}
	res, err := p.adapter.UpdatePartialBySku(ctx, item.SKU, fields, dryRun)

	qty := integration.ClampQuantity(item.Quantity)
	row := p.rowFromResult(item.SKU, &qty, item.Price, res, err, dryRun)
	if row.PriceAfter == nil {
		row.PriceAfter = row.PriceBefore
	}
	if row.Detail == "" && res.OK {
		row.Detail = res.Describe()
	}
	return row
}

// RunSale pushes sold quantities back into the ERP
func (p *SyncPipeline) RunSale(ctx context.Context, sales []SaleItem, opts RunOptions) (*RunSummary, error) {
	ctx, st := p.begin(ctx, integration.FlowSale, opts.DryRun)
	ctx, span := telemetry.StartSpan(ctx, "sync.sale",
		telemetry.AttrFlow.String(integration.FlowSale.String()),
		telemetry.AttrDryRun.Bool(opts.DryRun),
	)
	defer span.End()

	if err := p.erp.Authenticate(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("erp authentication: %w", err)
	}

	for _, sale := range sales {
		if integration.NormalizeSKU(sale.SKU) == "" {
			logger.L(ctx).Info("Dropping sale without SKU")
			continue
		}
		st.batch.Rows = append(st.batch.Rows, p.guard(ctx, sale.SKU, opts.DryRun, func() integration.AuditRow {
			return p.saleRow(ctx, sale, opts.DryRun)
		}))
	}
	if len(st.batch.Rows) == 0 {
		return p.finish(ctx, st, SummaryNoItems), nil
	}
	return p.finish(ctx, st, SummaryDone), nil
}

func (p *SyncPipeline) saleRow(ctx context.Context, sale SaleItem, dryRun bool) integration.AuditRow {
	res := p.adapter.SyncSaleToOdoo(ctx, sale.SKU, sale.Quantity, dryRun)
	row := integration.AuditRow{
		SKU:       integration.NormalizeSKU(sale.SKU),
		Reason:    res.Reason,
		Detail:    "sold: " + strconv.Itoa(sale.Quantity),
		DryRun:    dryRun,
		Timestamp: p.now(),
	}
	if res.Reason != integration.ReasonNotFound {
		before, after := res.PreviousQuantity, res.Quantity
		row.QtyBefore, row.QtyAfter = &before, &after
	}
	switch {
	case !res.OK && res.Reason == integration.ReasonNotFound:
		row.Action = integration.AuditActionSkipped
	case !res.OK:
		row.Action = integration.AuditActionFailed
	case res.DryRun:
		row.Action = integration.AuditActionDryRun
	default:
		row.Action = integration.AuditActionUpdated
	}
	return row
}

// fetchERP authenticates and reads products. Authentication failures abort
// the run.
func (p *SyncPipeline) fetchERP(ctx context.Context, since *time.Time) ([]integration.ProductRecord, error) {
	if err := p.erp.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("erp authentication: %w", err)
	}
	records, err := p.erp.FetchProducts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch erp products: %w", err)
	}
	return records, nil
}

// guard turns a panic in one item into an error row
func (p *SyncPipeline) guard(ctx context.Context, sku string, dryRun bool, fn func() integration.AuditRow) (row integration.AuditRow) {
	defer func() {
		if r := recover(); r != nil {
			logger.L(ctx).Error("Item processing panicked", zap.String("sku", sku), zap.Any("panic", r))
			row = integration.AuditRow{
				SKU:       integration.NormalizeSKU(sku),
				Action:    integration.AuditActionError,
				Reason:    fmt.Sprintf("panic: %v", r),
				DryRun:    dryRun,
				Timestamp: p.now(),
			}
		}
	}()
	return fn()
}

// rowFromResult maps an adapter outcome onto an audit row
func (p *SyncPipeline) rowFromResult(sku string, qtyAfter *int, priceAfter *decimal.Decimal, res integration.UpdateResult, err error, dryRun bool) integration.AuditRow {
	row := integration.AuditRow{
		SKU:        integration.NormalizeSKU(sku),
		QtyAfter:   qtyAfter,
		PriceAfter: priceAfter,
		Reason:     res.Reason,
		DryRun:     dryRun,
		Timestamp:  p.now(),
	}
	if res.Before != nil {
		row.QtyBefore = res.Before.Quantity
		row.PriceBefore = res.Before.Price
	}

	switch {
	case err != nil:
		row.Action = integration.AuditActionError
		row.Reason = err.Error()
	case !res.OK && res.Reason == integration.ReasonNotFound:
		row.Action = integration.AuditActionSkipped
	case !res.OK:
		row.Action = integration.AuditActionFailed
	case res.Skipped:
		row.Action = integration.AuditActionSkipped
	case res.DryRun:
		row.Action = integration.AuditActionDryRun
	default:
		row.Action = integration.AuditActionUpdated
	}
	return row
}
