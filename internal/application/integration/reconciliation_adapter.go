package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// Canonical field names accepted by UpdatePartialBySku
const (
	FieldQuantity = "quantity"
	FieldPrice    = "price"
)

var fieldAliases = map[string]string{
	"qty":        FieldQuantity,
	"stock":      FieldQuantity,
	"quantity":   FieldQuantity,
	"list_price": FieldPrice,
	"price":      FieldPrice,
}

// desiredState is the canonical form of a partial update request
type desiredState struct {
	quantity *int
	price    *decimal.Decimal
	rawQty   *int
}

// ReconciliationAdapter combines SKU resolution with commerce reads and
// partial writes, and carries the reverse sale flow into the ERP.
type ReconciliationAdapter struct {
	resolver *SkuResolver
	commerce integration.CommerceClient
	erp      integration.ERPClient
}

// NewReconciliationAdapter creates an adapter. erp is only needed for
// SyncSaleToOdoo.
func NewReconciliationAdapter(resolver *SkuResolver, commerce integration.CommerceClient, erp integration.ERPClient) *ReconciliationAdapter {
	return &ReconciliationAdapter{resolver: resolver, commerce: commerce, erp: erp}
}

// Resolver exposes the underlying SKU resolver
func (a *ReconciliationAdapter) Resolver() *SkuResolver {
	return a.resolver
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

// GetBySku returns the current commerce record for sku, or nil when the SKU
// does not resolve or the fetch is rejected.
func (a *ReconciliationAdapter) GetBySku(ctx context.Context, sku string) (*integration.CommerceProduct, error) {
	res := a.resolver.Resolve(ctx, sku, false)
	if !res.OK {
		return nil, nil
	}
	product, code, err := a.fetch(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		logger.L(ctx).Info("Commerce product fetch rejected",
			zap.String("sku", res.SKU), zap.Int64("id", res.ID), zap.Int("code", code))
	}
	return product, nil
}

func (a *ReconciliationAdapter) fetch(ctx context.Context, id int64) (*integration.CommerceProduct, int, error) {
	resp, err := a.commerce.Get(ctx, productPath(id))
	if err != nil {
		return nil, 0, fmt.Errorf("fetch product %d: %w", id, err)
	}
	if !resp.IsSuccess() {
		return nil, resp.Code, nil
	}
	product := parseCommerceProduct(resp.Body)
	if product.ID == 0 {
		product.ID = id
	}
	return product, resp.Code, nil
}

// UpdatePartialBySku writes only the fields of the request that differ from
// the current commerce record. Nothing is written when the diff is empty or
// dryRun is set. A returned error means an unexpected failure; business
// outcomes are carried by the result.
func (a *ReconciliationAdapter) UpdatePartialBySku(ctx context.Context, sku string, fields map[string]any, dryRun bool) (integration.UpdateResult, error) {
	log := logger.L(ctx).With(zap.String("sku", integration.NormalizeSKU(sku)))

	desired, err := normalizeFields(fields)
	if err != nil {
		return integration.UpdateResult{}, err
	}
	if desired.rawQty != nil && *desired.rawQty < 0 {
		log.Warn("Negative quantity clamped to zero", zap.Int("quantity", *desired.rawQty))
	}

	res := a.resolver.Resolve(ctx, sku, false)
	if !res.OK {
		return integration.UpdateResult{OK: false, Reason: integration.ReasonNotFound}, nil
	}

	before, code, err := a.fetch(ctx, res.ID)
	if err != nil {
		return integration.UpdateResult{}, err
	}
	if before == nil {
		log.Warn("Commerce product fetch rejected", zap.Int64("id", res.ID), zap.Int("code", code))
		return integration.UpdateResult{OK: false, ID: res.ID, Reason: integration.ReasonFetchFailed}, nil
	}

	changes, payload := diff(before, desired)
	result := integration.UpdateResult{OK: true, ID: res.ID, Before: before, Changes: changes}
	if len(changes) == 0 {
		result.Skipped = true
		result.Reason = integration.ReasonNoChanges
		return result, nil
	}
	if dryRun {
		result.DryRun = true
		log.Info("Dry-run, commerce update not sent", zap.String("changes", result.Describe()))
		return result, nil
	}

	resp, err := a.commerce.Patch(ctx, productPath(res.ID), payload)
	if err != nil {
		return integration.UpdateResult{}, fmt.Errorf("patch product %d: %w", res.ID, err)
	}
	if !resp.IsSuccess() {
		result.OK = false
		result.Reason = fmt.Sprintf("http_%d", resp.Code)
		log.Warn("Commerce update rejected", zap.Int64("id", res.ID), zap.Int("code", resp.Code))
		return result, nil
	}
	log.Info("Commerce product updated", zap.Int64("id", res.ID), zap.String("changes", result.Describe()))
	return result, nil
}

// diff compares the desired state with the current record. A field the
// record does not expose counts as changed.
func diff(before *integration.CommerceProduct, desired desiredState) ([]integration.FieldChange, map[string]any) {
	var changes []integration.FieldChange
	payload := make(map[string]any, 2)

	if desired.quantity != nil {
		if before.Quantity == nil || *before.Quantity != *desired.quantity {
			changes = append(changes, integration.FieldChange{
				Field:  FieldQuantity,
				Before: formatQuantity(before.Quantity),
				After:  strconv.Itoa(*desired.quantity),
			})
			payload[FieldQuantity] = *desired.quantity
		}
	}
	if desired.price != nil {
		if before.Price == nil || !before.Price.Equal(*desired.price) {
			changes = append(changes, integration.FieldChange{
				Field:  FieldPrice,
				Before: formatPrice(before.Price),
				After:  desired.price.StringFixed(2),
			})
			payload[FieldPrice] = desired.price.String()
		}
	}
	return changes, payload
}

func formatQuantity(q *int) string {
	if q == nil {
		return "-"
	}
	return strconv.Itoa(*q)
}

func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.StringFixed(2)
}

// normalizeFields maps aliases onto canonical fields and coerces values.
// Unknown fields are ignored.
func normalizeFields(fields map[string]any) (desiredState, error) {
	var desired desiredState
	for key, value := range fields {
		canonical, ok := fieldAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok || value == nil {
			continue
		}
		switch canonical {
		case FieldQuantity:
			q, err := toInt(value)
			if err != nil {
				return desiredState{}, fmt.Errorf("%w: %s: %v", integration.ErrInvalidPayload, key, err)
			}
			raw := q
			clamped := integration.ClampQuantity(q)
			desired.rawQty = &raw
			desired.quantity = &clamped
		case FieldPrice:
			p, err := toDecimal(value)
			if err != nil {
				return desiredState{}, fmt.Errorf("%w: %s: %v", integration.ErrInvalidPayload, key, err)
			}
			desired.price = &p
		}
	}
	return desired, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(math.Round(n)), nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return 0, err
		}
		return int(d.Round(0).IntPart()), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0, err
		}
		return int(d.Round(0).IntPart()), nil
	case decimal.Decimal:
		return int(n.Round(0).IntPart()), nil
	}
	return 0, fmt.Errorf("unsupported quantity type %T", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, errors.New("nil price")
		}
		return *n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	}
	return decimal.Zero, fmt.Errorf("unsupported price type %T", v)
}

// SyncSaleToOdoo decrements the ERP quantity of sku by soldQty, floored at
// zero. Failures come back as AdjustResult values.
func (a *ReconciliationAdapter) SyncSaleToOdoo(ctx context.Context, sku string, soldQty int, dryRun bool) integration.AdjustResult {
	key := integration.NormalizeSKU(sku)
	log := logger.L(ctx).With(zap.String("sku", key), zap.Int("sold", soldQty))

	if a.erp == nil {
		return integration.AdjustFailed(integration.ReasonAdjustError)
	}
	product, err := a.erp.FindProductBySKU(ctx, key)
	if err != nil {
		log.Error("ERP product lookup failed", zap.Error(err))
		return integration.AdjustFailed(integration.ReasonAdjustError)
	}
	if product == nil {
		log.Info("SKU not found in ERP")
		return integration.AdjustFailed(integration.ReasonNotFound)
	}

	next := product.Quantity - soldQty
	if next < 0 {
		log.Warn("Sale drives stock negative, clamped to zero", zap.Int("quantity", next))
	}
	next = integration.ClampQuantity(next)

	if dryRun {
		log.Info("Dry-run, ERP adjustment not sent", zap.Int("before", product.Quantity), zap.Int("after", next))
		return integration.AdjustResult{
			OK:               true,
			ProductID:        product.ID,
			Quantity:         next,
			PreviousQuantity: product.Quantity,
			DryRun:           true,
		}
	}

	result, err := a.erp.AdjustStock(ctx, product.ID, next, nil)
	if err != nil {
		log.Error("ERP stock adjustment failed", zap.Error(err))
		failed := integration.AdjustFailed(integration.ReasonAdjustError)
		failed.ProductID = product.ID
		failed.PreviousQuantity = product.Quantity
		failed.Quantity = next
		return failed
	}
	result.PreviousQuantity = product.Quantity
	if result.ProductID == 0 {
		result.ProductID = product.ID
	}
	if result.OK {
		log.Info("ERP stock adjusted", zap.Int("before", product.Quantity), zap.Int("after", result.Quantity))
	} else {
		result.Quantity = next
		log.Warn("ERP stock adjustment rejected", zap.String("reason", result.Reason))
	}
	return result
}
