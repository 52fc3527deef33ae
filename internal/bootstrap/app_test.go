package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/lock"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:     config.AppConfig{Name: "catalogsync", Env: "test"},
		Odoo:    config.OdooConfig{BaseURL: "http://odoo.invalid", DB: "db", User: "admin", Password: "pw", Timeout: time.Second},
		Presta:  config.PrestaConfig{URL: "http://shop.invalid/api", Key: "KEY", AuthScheme: "bearer", Timeout: time.Second, SearchPath: "/products"},
		Sync:    config.SyncConfig{DefaultRange: "1h", StateFile: filepath.Join(dir, "last_sync.txt")},
		Cache:   config.CacheConfig{Backend: "file", Dir: filepath.Join(dir, "cache"), TTL: time.Hour},
		Lock:    config.LockConfig{Backend: "file", Path: filepath.Join(dir, "sync.lock"), TTL: time.Minute},
		HTTP:    config.HTTPConfig{Port: "0", MaxBodySize: 1 << 20},
		Webhook: config.WebhookConfig{Token: "tok"},
		Audit:   config.AuditConfig{Dir: filepath.Join(dir, "dryrun"), Format: "csv"},
	}
}

func TestNew_FileBackends(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer app.Close(context.Background())

	assert.NotNil(t, app.Pipeline)
	assert.NotNil(t, app.Runner)
	assert.NotNil(t, app.Resolver)
	assert.Nil(t, app.History)
	assert.Nil(t, app.Redis)
	assert.False(t, app.Telemetry.Enabled())
}

func TestNew_AuditDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.DBDriver = "sqlite"
	cfg.Audit.DBDSN = filepath.Join(t.TempDir(), "audit.db")

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close(context.Background())
	require.NotNil(t, app.History)

	engine := app.Engine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/runs", nil)
	req.Header.Set(middleware.HookTokenHeader, "tok")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestNew_InvalidCommerceConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Presta.AuthScheme = "oauth"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestScheduledJob_LockHeldIsNotAnError(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close(context.Background())

	lease, err := lock.NewFileLock(cfg.Lock.Path, time.Hour).Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release(context.Background())

	assert.NoError(t, app.ScheduledJob()(context.Background()))
}

func TestClose_JoinsErrors(t *testing.T) {
	app := &App{}
	var order []int
	app.closers = append(app.closers,
		func(context.Context) error { order = append(order, 1); return errors.New("first") },
		func(context.Context) error { order = append(order, 2); return nil },
	)

	err := app.Close(context.Background())
	assert.EqualError(t, err, "first")
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, app.Close(context.Background()))
}
