package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// DomainGroup collects the routes of one concern under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: http.MethodGet, path: path, handlers: handlers})
	return dg
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: http.MethodPost, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Config carries everything the engine needs
type Config struct {
	Logger      *zap.Logger
	HookToken   string
	MaxBodySize int64
	System      *handler.SystemHandler
	Webhook     *handler.WebhookHandler
	// Audit is optional; the history routes are only mounted when set
	Audit *handler.AuditHistoryHandler
}

// NewEngine builds the gin engine with middleware and all routes
func NewEngine(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
	)

	if cfg.System != nil {
		engine.GET("/healthz", cfg.System.Health)
		engine.GET("/readyz", cfg.System.Ready)
	}

	root := &engine.RouterGroup
	for _, group := range Groups(cfg) {
		group.RegisterRoutes(root)
	}
	return engine
}

// Groups returns the token-protected route groups
func Groups(cfg Config) []RouteRegistrar {
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	var groups []RouteRegistrar
	if cfg.Webhook != nil {
		groups = append(groups, NewDomainGroup("webhook", "/webhook").
			Use(middleware.HookToken(cfg.HookToken), middleware.BodyLimit(maxBody)).
			POST("/stock", cfg.Webhook.Stock).
			POST("/sale", cfg.Webhook.Sale))
	}
	if cfg.Audit != nil {
		groups = append(groups, NewDomainGroup("audit", "/api/v1/audit").
			Use(middleware.HookToken(cfg.HookToken)).
			GET("/runs", cfg.Audit.ListRuns).
			GET("/skus/:sku", cfg.Audit.RowsForSKU))
	}
	return groups
}
