package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/scheduler"
	"github.com/nutanix-tools/darksite-metering/internal/sink"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Write one export file at the configured time every day",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, aggregator, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		zap.S().Named("export").Infof("scheduling daily export at %s", cfg.Export.Time)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		writer := sink.NewBillingWriter(afero.NewOsFs(), sink.BillingConfig{
			AccountID:           cfg.Export.AccountID,
			AppID:               cfg.Export.AppID,
			ExportDir:           cfg.Export.Dir,
			EmitZeroFileServers: cfg.Export.EmitZeroFileServers,
		})

		daily := scheduler.Daily{At: cfg.Export.Time, RunNow: cfg.Export.RunNow}
		return daily.Run(ctx, func(ctx context.Context) error {
			snapshot := aggregator.RunPass(ctx)
			sink.FanOut(snapshot, writer)
			return nil
		})
	},
}
