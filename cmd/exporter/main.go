package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/config"
	"github.com/nutanix-tools/darksite-metering/internal/inventory"
	"github.com/nutanix-tools/darksite-metering/internal/prism"
	"github.com/nutanix-tools/darksite-metering/internal/scheduler"
	"github.com/nutanix-tools/darksite-metering/internal/sink"
	"github.com/nutanix-tools/darksite-metering/pkg/log"
)

const gracefulShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := log.InitLog(log.ParseLevel(cfg.LogLevel), cfg.LogFile)
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	zap.S().Named("exporter").Info("starting metrics exporter")
	defer zap.S().Named("exporter").Info("metrics exporter stopped")

	client := prism.NewClient(prism.Config{
		Host:               cfg.Prism.Host,
		Port:               cfg.Prism.Port,
		Username:           cfg.Prism.Username,
		Password:           cfg.Prism.Password,
		InsecureSkipVerify: cfg.Prism.InsecureSkipVerify,
		Timeout:            cfg.Prism.Timeout,
	})
	aggregator := inventory.NewAggregator(client, cfg.Prism.PageSize)
	metricsSink := sink.NewMetricsSink()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	go func() {
		defer cancel()
		if err := serveMetrics(ctx, cfg.Exporter.Port); err != nil {
			zap.S().Named("exporter").Errorf("metrics server: %v", err)
		}
	}()

	scheduler.RunEvery(ctx, cfg.Exporter.ScrapeInterval, true, func(ctx context.Context) error {
		snapshot := aggregator.RunPass(ctx)
		sink.FanOut(snapshot, metricsSink)
		return nil
	})
}

func serveMetrics(ctx context.Context, port int) error {
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Named("exporter").Infof("serving /metrics on :%d", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
