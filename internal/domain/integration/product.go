package integration

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeSKU returns the canonical lookup key for a SKU: trimmed and upper-cased.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ProductRecord is an ERP-side product snapshot.
type ProductRecord struct {
	ID         int64
	SKU        string
	Name       string
	Price      decimal.Decimal
	Quantity   int
	ModifiedAt time.Time
}

// HasSKU reports whether the record carries a usable SKU.
func (p ProductRecord) HasSKU() bool {
	return NormalizeSKU(p.SKU) != ""
}

// StockItem is a (sku, quantity) pair pushed to the stock flow, either built
// from ERP records or supplied directly by the webhook.
type StockItem struct {
	SKU      string
	Quantity int
	Price    *decimal.Decimal
}

// StockItemFromRecord converts an ERP record into a stock flow item.
func StockItemFromRecord(p ProductRecord) StockItem {
	price := p.Price
	return StockItem{SKU: p.SKU, Quantity: p.Quantity, Price: &price}
}

// CommerceProduct is the current state of a product on the commerce platform.
// Quantity and Price are nil when the platform record does not expose them.
type CommerceProduct struct {
	ID        int64
	Reference string
	Name      string
	Quantity  *int
	Price     *decimal.Decimal
	Raw       Node
}

// ClampQuantity floors negative quantities at zero.
func ClampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}
