package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/config"
	"github.com/nutanix-tools/darksite-metering/internal/pricing"
	"github.com/nutanix-tools/darksite-metering/pkg/log"
)

func main() {
	cfg, err := config.NewPricingService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := log.InitLog(log.ParseLevel(cfg.LogLevel), cfg.LogFile)
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	zap.S().Named("pricing").Infof("starting pricing service with %s", cfg.Pricing.File)
	defer zap.S().Named("pricing").Info("pricing service stopped")

	store := pricing.NewStore(afero.NewOsFs(), cfg.Pricing.File)
	if err := store.PublishMetrics(); err != nil {
		zap.S().Named("pricing").Fatalf("loading pricing file: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	go func() {
		if err := store.Watch(ctx); err != nil {
			zap.S().Named("pricing").Errorf("pricing file watcher: %v", err)
		}
	}()

	server := pricing.NewServer(store, cfg.Pricing.Address)
	if err := server.Run(ctx); err != nil {
		zap.S().Named("pricing").Fatalf("running pricing server: %v", err)
	}
}
