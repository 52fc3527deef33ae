package integration

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// parseCommerceProduct reads a product out of a commerce response body. The
// record may be wrapped in a "product" element or be the root itself.
func parseCommerceProduct(body integration.Node) *integration.CommerceProduct {
	node := body
	if wrapped, ok := body.FindFirst("product"); ok && wrapped.Kind() == integration.NodeObject {
		node = wrapped
	}

	p := &integration.CommerceProduct{Raw: node}
	if id, ok := node.FindID("id"); ok {
		p.ID = id
	}
	if ref, ok := textField(node, "reference"); ok {
		p.Reference = ref
	}
	p.Name = productName(node)

	if q, ok := node.Get("quantity"); ok {
		if v, isInt := q.Int(); isInt {
			qty := int(v)
			p.Quantity = &qty
		}
	}
	if raw, ok := textField(node, "price"); ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			p.Price = &d
		}
	}
	return p
}

func textField(node integration.Node, key string) (string, bool) {
	v, ok := node.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// productName accepts a plain name or the first translated value
func productName(node integration.Node) string {
	if s, ok := textField(node, "name"); ok {
		return s
	}
	name, ok := node.Get("name")
	if !ok {
		return ""
	}
	if lang, ok := name.FindFirst("language"); ok {
		name = lang
	}
	if name.Kind() == integration.NodeArray && len(name.Items()) > 0 {
		name = name.Items()[0]
	}
	if s, ok := name.Text(); ok {
		return strings.TrimSpace(s)
	}
	if v, ok := textField(name, "value"); ok {
		return v
	}
	return ""
}
