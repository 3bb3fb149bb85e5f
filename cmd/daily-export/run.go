package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/sink"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect one snapshot and write a single export file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, aggregator, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		writer := sink.NewBillingWriter(afero.NewOsFs(), sink.BillingConfig{
			AccountID:           cfg.Export.AccountID,
			AppID:               cfg.Export.AppID,
			ExportDir:           cfg.Export.Dir,
			EmitZeroFileServers: cfg.Export.EmitZeroFileServers,
		})

		snapshot := aggregator.RunPass(ctx)
		start, end := sink.PriorDay(snapshot.TakenAt)
		path, err := writer.WriteFile(snapshot, start, end, outputFile)
		if err != nil {
			zap.S().Named("export").Errorf("writing export: %v", err)
			return err
		}
		zap.S().Named("export").Infof("wrote export %s", path)
		return nil
	},
}
