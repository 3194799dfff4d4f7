// Package httpapi exposes the ledger as a JSON API on gin.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
)

// DefaultBasePath is the URL prefix of every route.
const DefaultBasePath = "/cahiers"

// Handler serves the ledger over HTTP.
type Handler struct {
	ledger   *cahiers.Ledger
	basePath string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithBasePath sets the URL prefix of every route.
func WithBasePath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.basePath = path
		}
	}
}

// WithLogger sets the logger used for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithClock sets the clock used by date-dependent reports.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler over a ledger.
func New(l *cahiers.Ledger, opts ...Option) *Handler {
	h := &Handler{
		ledger:   l,
		basePath: DefaultBasePath,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a gin engine serving only the ledger routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	h.Register(r)
	return r
}

// Register mounts the ledger routes on r under the base path.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group(h.basePath)

	years := g.Group("/school-years")
	years.POST("", h.createSchoolYear)
	years.GET("", h.listSchoolYears)
	years.GET("/current", h.currentSchoolYear)
	years.GET("/compare", h.compareYears)
	years.GET("/compare.xlsx", h.compareYearsXLSX)
	years.GET("/:id", h.getSchoolYear)
	years.POST("/:id/activate", h.activateSchoolYear)
	years.GET("/:id/summary", h.yearSummary)

	schools := g.Group("/schools")
	schools.POST("", h.createSchool)
	schools.GET("", h.listSchools)
	schools.GET("/:id", h.getSchool)
	schools.PUT("/:id", h.updateSchool)
	schools.DELETE("/:id", h.deleteSchool)
	schools.GET("/:id/debt", h.schoolDebt)
	schools.GET("/:id/statement", h.schoolStatement)
	schools.GET("/:id/statement.xlsx", h.schoolStatementXLSX)

	items := g.Group("/items")
	items.POST("", h.createItem)
	items.GET("", h.listItems)
	items.GET("/low-stock", h.lowStockItems)
	items.GET("/:id", h.getItem)
	items.PUT("/:id", h.updateItem)
	items.DELETE("/:id", h.deleteItem)
	items.POST("/:id/restock", h.restockItem)

	sales := g.Group("/sales")
	sales.POST("", h.createSale)
	sales.GET("", h.listSales)
	sales.GET("/overdue", h.overdueSales)
	sales.GET("/upcoming", h.upcomingSales)
	sales.GET("/:id", h.getSale)
	sales.DELETE("/:id", h.deleteSale)
	sales.POST("/:id/lines", h.addLines)
	sales.PUT("/:id/lines", h.replaceLines)
	sales.PATCH("/:id/lines/:line", h.updateLine)
	sales.DELETE("/:id/lines/:line", h.removeLine)
	sales.GET("/:id/payments", h.listPayments)
	sales.POST("/:id/payments", h.recordPayment)
	sales.GET("/:id/invoice", h.invoice)
	sales.GET("/:id/invoice.xlsx", h.invoiceXLSX)
	sales.POST("/:id/recompute-debt", h.recomputeDebt)

	g.POST("/payments/:id/cancel", h.cancelPayment)
}

// ──────────────────────────────────────────────────
// Errors
// ──────────────────────────────────────────────────

// fail writes the error response matching err.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		stock *cahiers.InsufficientStockError
		ve    cahiers.ValidationError
	)
	switch {
	case errors.As(err, &stock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "shortages": stock.Shortages})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": ve.Field})
	case errors.Is(err, cahiers.ErrInvoiceEmpty):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case cahiers.IsNotFound(err), errors.Is(err, cahiers.ErrRendererNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case cahiers.IsBusinessRule(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// pathID parses a path parameter as an identifier of the given prefix.
func pathID(c *gin.Context, param string, prefix id.Prefix) (id.ID, error) {
	v, err := id.ParseWithPrefix(c.Param(param), prefix)
	if err != nil {
		return id.Nil, cahiers.ValidationError{Field: param, Message: "malformed " + string(prefix) + " identifier"}
	}
	return v, nil
}

// queryID parses an optional query parameter as an identifier.
func queryID(c *gin.Context, name string, prefix id.Prefix) (id.ID, error) {
	raw := c.Query(name)
	if raw == "" {
		return id.Nil, nil
	}
	v, err := id.ParseWithPrefix(raw, prefix)
	if err != nil {
		return id.Nil, cahiers.ValidationError{Field: name, Message: "malformed " + string(prefix) + " identifier"}
	}
	return v, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, cahiers.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
