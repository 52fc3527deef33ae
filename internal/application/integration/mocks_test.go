package integration

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// MockERPClient is a mock implementation of integration.ERPClient
type MockERPClient struct {
	mock.Mock
}

func (m *MockERPClient) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockERPClient) FetchProducts(ctx context.Context, since *time.Time) ([]integration.ProductRecord, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductRecord), args.Error(1)
}

func (m *MockERPClient) FindProductBySKU(ctx context.Context, sku string) (*integration.ProductRecord, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductRecord), args.Error(1)
}

func (m *MockERPClient) AdjustStock(ctx context.Context, productID int64, quantity int, locationID *int64) (integration.AdjustResult, error) {
	args := m.Called(ctx, productID, quantity, locationID)
	return args.Get(0).(integration.AdjustResult), args.Error(1)
}

// MockCommerceClient is a mock implementation of integration.CommerceClient
type MockCommerceClient struct {
	mock.Mock
}

func (m *MockCommerceClient) Get(ctx context.Context, path string) (*integration.CommerceResponse, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CommerceResponse), args.Error(1)
}

func (m *MockCommerceClient) Patch(ctx context.Context, path string, payload map[string]any) (*integration.CommerceResponse, error) {
	args := m.Called(ctx, path, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CommerceResponse), args.Error(1)
}

// MockAuditSink is a mock implementation of integration.AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Record(ctx context.Context, batch integration.AuditBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

// memCache is an in-memory SkuCache
type memCache struct {
	mu      sync.Mutex
	entries map[string]integration.CacheEntry
	putErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]integration.CacheEntry)}
}

func (c *memCache) Get(_ context.Context, sku string) (integration.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sku]
	return e, ok, nil
}

func (c *memCache) Put(_ context.Context, entry integration.CacheEntry) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.SKU] = entry
	return nil
}

// memState is an in-memory SyncStateStore
type memState struct {
	at    time.Time
	found bool
	saves []time.Time
}

func (s *memState) LastSync(context.Context) (time.Time, bool, error) {
	return s.at, s.found, nil
}

func (s *memState) SaveLastSync(_ context.Context, at time.Time) error {
	s.at, s.found = at, true
	s.saves = append(s.saves, at)
	return nil
}

// shopProduct is the commerce-side state kept by fakeShop
type shopProduct struct {
	id       int64
	quantity int
	price    string
}

// fakeShop is a stateful commerce platform: search by reference, read and
// patch products. Patches are applied so repeated runs observe them.
type fakeShop struct {
	mu       sync.Mutex
	bySKU    map[string]*shopProduct
	searches int
	patches  []map[string]any
	panicOn  string
	patchErr error
}

func newFakeShop() *fakeShop {
	return &fakeShop{bySKU: make(map[string]*shopProduct)}
}

func (s *fakeShop) add(sku string, id int64, quantity int, price string) {
	s.bySKU[sku] = &shopProduct{id: id, quantity: quantity, price: price}
}

func (s *fakeShop) byID(id int64) *shopProduct {
	for _, p := range s.bySKU {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (s *fakeShop) Get(_ context.Context, path string) (*integration.CommerceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.Contains(path, "filters[reference]=") {
		s.searches++
		ref := path[strings.Index(path, "filters[reference]=")+len("filters[reference]="):]
		ref = strings.SplitN(ref, "&", 2)[0]
		if ref == s.panicOn && ref != "" {
			panic("shop exploded")
		}
		p, ok := s.bySKU[ref]
		if !ok {
			return &integration.CommerceResponse{Code: 200, Body: integration.Object(
				integration.Field{Key: "products", Value: integration.Array()},
			)}, nil
		}
		return &integration.CommerceResponse{Code: 200, Body: integration.Object(
			integration.Field{Key: "products", Value: integration.Array(integration.Object(
				integration.Field{Key: "id", Value: integration.Scalar(strconv.FormatInt(p.id, 10))},
			))},
		)}, nil
	}
	if strings.Contains(path, "filter[reference]=") {
		return &integration.CommerceResponse{Code: 404}, nil
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(path, "/products/"), 10, 64)
	if err != nil {
		return &integration.CommerceResponse{Code: 400}, nil
	}
	p := s.byID(id)
	if p == nil {
		return &integration.CommerceResponse{Code: 404}, nil
	}
	return &integration.CommerceResponse{Code: 200, Body: productBody(p.id, p.quantity, p.price)}, nil
}

func (s *fakeShop) Patch(_ context.Context, path string, payload map[string]any) (*integration.CommerceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.patchErr != nil {
		return nil, s.patchErr
	}
	s.patches = append(s.patches, payload)
	id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/products/"), 10, 64)
	p := s.byID(id)
	if p == nil {
		return &integration.CommerceResponse{Code: 404}, nil
	}
	if q, ok := payload[FieldQuantity].(int); ok {
		p.quantity = q
	}
	if pr, ok := payload[FieldPrice].(string); ok {
		p.price = pr
	}
	return &integration.CommerceResponse{Code: 200}, nil
}

func (s *fakeShop) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

// productBody renders a product response the way the JSON webservice does
func productBody(id int64, quantity int, price string) integration.Node {
	return integration.Object(integration.Field{Key: "product", Value: integration.Object(
		integration.Field{Key: "id", Value: integration.Scalar(strconv.FormatInt(id, 10))},
		integration.Field{Key: "reference", Value: integration.Scalar(fmt.Sprintf("REF%d", id))},
		integration.Field{Key: "quantity", Value: integration.Scalar(strconv.Itoa(quantity))},
		integration.Field{Key: "price", Value: integration.Scalar(price)},
	)})
}

func searchBody(id string) integration.Node {
	return integration.Object(integration.Field{Key: "products", Value: integration.Array(
		integration.Object(integration.Field{Key: "id", Value: integration.Scalar(id)}),
	)})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intp(v int) *int { return &v }

// fixedClock returns a settable clock
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
