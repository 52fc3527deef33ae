package erp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// odooTimeLayout is the server-side datetime format; values are UTC.
const odooTimeLayout = "2006-01-02 15:04:05"

var productFields = []any{"id", "default_code", "name", "list_price", "qty_available", "write_date"}

// OdooConfig holds ERP credentials
type OdooConfig struct {
	DB       string
	User     string
	Password string
}

// Errors for Odoo configuration
var (
	ErrOdooConfigMissingDB   = errors.New("odoo: database is required")
	ErrOdooConfigMissingUser = errors.New("odoo: user is required")
)

// Validate validates the Odoo configuration
func (c *OdooConfig) Validate() error {
	if c.DB == "" {
		return ErrOdooConfigMissingDB
	}
	if c.User == "" {
		return ErrOdooConfigMissingUser
	}
	return nil
}

// OdooClient implements integration.ERPClient over Odoo's external API.
type OdooClient struct {
	config *OdooConfig
	caller Caller

	mu  sync.RWMutex
	uid int64
}

// NewOdooClient creates a new client
func NewOdooClient(config *OdooConfig, caller Caller) (*OdooClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OdooClient{config: config, caller: caller}, nil
}

// Authenticate implements integration.ERPClient
func (c *OdooClient) Authenticate(ctx context.Context) error {
	reply, err := c.caller.Call(ctx, "common", "authenticate", []any{
		c.config.DB, c.config.User, c.config.Password, map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", integration.ErrAuthFailed, err)
	}

	uid, ok := asInt(reply)
	if !ok || uid <= 0 {
		return fmt.Errorf("%w: odoo rejected credentials for %s", integration.ErrAuthFailed, c.config.User)
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()

	logger.L(ctx).Info("Odoo authenticated", zap.Int64("uid", uid))
	return nil
}

func (c *OdooClient) currentUID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

// execute runs execute_kw for model.method
func (c *OdooClient) execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	uid := c.currentUID()
	if uid == 0 {
		return nil, integration.ErrNotAuthenticated
	}
	params := []any{c.config.DB, uid, c.config.Password, model, method, args}
	if kwargs != nil {
		params = append(params, kwargs)
	}
	return c.caller.Call(ctx, "object", "execute_kw", params)
}

// search returns matching record ids
func (c *OdooClient) search(ctx context.Context, model string, domain []any, limit int) ([]int64, error) {
	var kwargs map[string]any
	if limit > 0 {
		kwargs = map[string]any{"limit": limit}
	}
	reply, err := c.execute(ctx, model, "search", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	list, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.search returned %T", integration.ErrERPInvalidResponse, model, reply)
	}
	ids := make([]int64, 0, len(list))
	for _, v := range list {
		if id, ok := asInt(v); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// readProducts bulk-reads the product field set for ids
func (c *OdooClient) readProducts(ctx context.Context, ids []int64) ([]map[string]any, error) {
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	reply, err := c.execute(ctx, "product.product", "read", []any{idArgs}, map[string]any{"fields": productFields})
	if err != nil {
		return nil, err
	}
	list, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: product.product.read returned %T", integration.ErrERPInvalidResponse, reply)
	}
	rows := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if row, ok := v.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// FetchProducts implements integration.ERPClient. The server-side write_date
// filter is re-checked locally against the UTC cutoff, truncated to the
// second like write_date itself.
func (c *OdooClient) FetchProducts(ctx context.Context, since *time.Time) ([]integration.ProductRecord, error) {
	log := logger.L(ctx)

	domain := []any{}
	var cutoff time.Time
	if since != nil {
		cutoff = since.UTC().Truncate(time.Second)
		domain = append(domain, []any{"write_date", ">=", cutoff.Format(odooTimeLayout)})
	}

	ids, err := c.search(ctx, "product.product", domain, 0)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		log.Info("No products matched", zap.Time("since", cutoff))
		return nil, nil
	}

	rows, err := c.readProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	products := make([]integration.ProductRecord, 0, len(rows))
	for _, row := range rows {
		p := productFromRow(row)
		if !p.HasSKU() {
			log.Debug("Dropping product without SKU", zap.Int64("product_id", p.ID))
			continue
		}
		if since != nil && !p.ModifiedAt.IsZero() && p.ModifiedAt.Before(cutoff) {
			log.Debug("Dropping product outside window",
				zap.String("sku", p.SKU),
				zap.Time("write_date", p.ModifiedAt),
			)
			continue
		}
		products = append(products, p)
	}

	log.Info("Fetched products from Odoo", zap.Int("matched", len(ids)), zap.Int("kept", len(products)))
	return products, nil
}

// FindProductBySKU implements integration.ERPClient
func (c *OdooClient) FindProductBySKU(ctx context.Context, sku string) (*integration.ProductRecord, error) {
	norm := integration.NormalizeSKU(sku)
	if norm == "" {
		return nil, nil
	}

	ids, err := c.search(ctx, "product.product", []any{[]any{"default_code", "=ilike", norm}}, 5)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	rows, err := c.readProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		p := productFromRow(row)
		if integration.NormalizeSKU(p.SKU) == norm {
			return &p, nil
		}
	}
	return nil, nil
}

// AdjustStock implements integration.ERPClient. Faults from the server are
// business failures; only transport failures are returned as errors.
func (c *OdooClient) AdjustStock(ctx context.Context, productID int64, quantity int, locationID *int64) (integration.AdjustResult, error) {
	log := logger.L(ctx).With(zap.Int64("product_id", productID))

	if quantity < 0 {
		log.Warn("Clamping negative stock quantity", zap.Int("requested", quantity))
		quantity = 0
	}

	var loc int64
	if locationID != nil {
		loc = *locationID
	} else {
		ids, err := c.search(ctx, "stock.location", []any{[]any{"usage", "=", "internal"}}, 1)
		if err != nil {
			return c.businessOrTransport(err, integration.ReasonNoLocation)
		}
		if len(ids) == 0 {
			log.Error("No internal stock location found")
			return integration.AdjustFailed(integration.ReasonNoLocation), nil
		}
		loc = ids[0]
	}

	quantIDs, err := c.search(ctx, "stock.quant", []any{
		[]any{"product_id", "=", productID},
		[]any{"location_id", "=", loc},
	}, 1)
	if err != nil {
		return c.businessOrTransport(err, integration.ReasonQuantWrite)
	}

	result := integration.AdjustResult{OK: true, ProductID: productID, LocationID: loc, Quantity: quantity}

	if len(quantIDs) > 0 {
		result.QuantID = quantIDs[0]
		reply, err := c.execute(ctx, "stock.quant", "write", []any{
			[]any{result.QuantID},
			map[string]any{"quantity": quantity},
		}, nil)
		if err != nil {
			return c.businessOrTransport(err, integration.ReasonQuantWrite)
		}
		if ok, _ := reply.(bool); !ok {
			return integration.AdjustFailed(integration.ReasonQuantWrite), nil
		}
		log.Info("Stock quant updated", zap.Int64("quant_id", result.QuantID), zap.Int("quantity", quantity))
		return result, nil
	}

	reply, err := c.execute(ctx, "stock.quant", "create", []any{map[string]any{
		"product_id":  productID,
		"location_id": loc,
		"quantity":    quantity,
	}}, nil)
	if err != nil {
		return c.businessOrTransport(err, integration.ReasonQuantCreate)
	}
	id, ok := asInt(reply)
	if !ok || id <= 0 {
		return integration.AdjustFailed(integration.ReasonQuantCreate), nil
	}
	result.QuantID = id
	result.Created = true
	log.Info("Stock quant created", zap.Int64("quant_id", id), zap.Int("quantity", quantity))
	return result, nil
}

func (c *OdooClient) businessOrTransport(err error, reason string) (integration.AdjustResult, error) {
	if errors.Is(err, integration.ErrERPFault) || errors.Is(err, integration.ErrERPInvalidResponse) {
		return integration.AdjustFailed(reason), nil
	}
	return integration.AdjustResult{}, err
}

// productFromRow maps a product.product read row. Odoo returns false for
// empty char fields.
func productFromRow(row map[string]any) integration.ProductRecord {
	p := integration.ProductRecord{}
	if id, ok := asInt(row["id"]); ok {
		p.ID = id
	}
	if s, ok := row["default_code"].(string); ok {
		p.SKU = strings.TrimSpace(s)
	}
	if s, ok := row["name"].(string); ok {
		p.Name = s
	}
	p.Price = asDecimal(row["list_price"])
	p.Quantity = int(asDecimal(row["qty_available"]).Floor().IntPart())
	if s, ok := row["write_date"].(string); ok && s != "" {
		if t, err := time.ParseInLocation(odooTimeLayout, s, time.UTC); err == nil {
			p.ModifiedAt = t
		}
	}
	return p
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case int64:
		return decimal.NewFromInt(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	}
	return decimal.Zero
}

var _ integration.ERPClient = (*OdooClient)(nil)
