// Command cahiersd serves the cahiers ledger over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/cahiers"
	audithook "github.com/xraph/cahiers/audit_hook"
	"github.com/xraph/cahiers/extension"
	"github.com/xraph/cahiers/httpapi"
	"github.com/xraph/cahiers/observability"
	"github.com/xraph/cahiers/report"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cahiersd stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	st, err := extension.OpenStore(cfg.Ledger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := append([]cahiers.Option{
		cahiers.WithLogger(logger),
		cahiers.WithPlugin(report.NewInvoiceRenderer()),
		cahiers.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		cahiers.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}, cfg.Ledger.LedgerOptions()...)
	ledger := cahiers.New(st, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledger.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Error("ledger stop failed", "error", err)
		}
	}()

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.New(ledger,
		httpapi.WithBasePath(cfg.Ledger.BasePath),
		httpapi.WithLogger(logger),
	).Router()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("cahiersd listening",
			"addr", cfg.Addr,
			"store", cfg.Ledger.StoreDriver,
			"base_path", cfg.Ledger.BasePath,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// auditLog writes audit events to the structured log.
func auditLog(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"metadata", ev.Metadata,
		)
		return nil
	})
}
