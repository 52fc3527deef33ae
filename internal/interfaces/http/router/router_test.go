package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct {
	stockCalls int
}

func (s *stubPipeline) RunStock(_ context.Context, items []integration.StockItem, opts appintegration.RunOptions) (*appintegration.RunSummary, error) {
	s.stockCalls++
	return &appintegration.RunSummary{Flow: integration.FlowStock, Summary: appintegration.SummaryDone, Count: len(items), DryRun: opts.DryRun}, nil
}

func (s *stubPipeline) RunSale(_ context.Context, sales []appintegration.SaleItem, opts appintegration.RunOptions) (*appintegration.RunSummary, error) {
	panic("sale exploded")
}

func newTestEngine(p *stubPipeline) *gin.Engine {
	return NewEngine(Config{
		HookToken:   "tok",
		MaxBodySize: 1024,
		System:      handler.NewSystemHandler("catalogsync", "test"),
		Webhook:     handler.NewWebhookHandler(p, false),
	})
}

func send(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set(middleware.HookTokenHeader, token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestNewEngine_Health(t *testing.T) {
	w := send(newTestEngine(&stubPipeline{}), http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestNewEngine_WebhookRequiresToken(t *testing.T) {
	p := &stubPipeline{}
	r := newTestEngine(p)

	w := send(r, http.MethodPost, "/webhook/stock", "wrong", `{"sku":"A1","qty":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Forbidden"`)
	assert.Zero(t, p.stockCalls)

	w = send(r, http.MethodPost, "/webhook/stock", "tok", `{"sku":"A1","qty":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Equal(t, 1, p.stockCalls)
}

func TestNewEngine_BodyLimit(t *testing.T) {
	p := &stubPipeline{}
	w := send(newTestEngine(p), http.MethodPost, "/webhook/stock", "tok", `{"sku":"`+strings.Repeat("A", 2048)+`","qty":1}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, p.stockCalls)
}

func TestNewEngine_RecoversPanic(t *testing.T) {
	w := send(newTestEngine(&stubPipeline{}), http.MethodPost, "/webhook/sale", "tok", `{"sku":"A1","qty":1}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestNewEngine_AuditRoutesOptional(t *testing.T) {
	w := send(newTestEngine(&stubPipeline{}), http.MethodGet, "/api/v1/audit/runs", "tok", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainGroup(t *testing.T) {
	g := NewDomainGroup("things", "/things").
		GET("", func(c *gin.Context) { c.String(http.StatusOK, "list") }).
		POST("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	assert.Equal(t, "things", g.Name())

	engine := gin.New()
	g.RegisterRoutes(&engine.RouterGroup)

	w := send(engine, http.MethodGet, "/things", "", "")
	assert.Equal(t, "list", w.Body.String())
	w = send(engine, http.MethodPost, "/things/7", "", "")
	assert.Equal(t, "7", w.Body.String())
}
