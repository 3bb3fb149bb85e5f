package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nutanix-tools/darksite-metering/internal/config"
	"github.com/nutanix-tools/darksite-metering/internal/inventory"
	"github.com/nutanix-tools/darksite-metering/internal/prism"
	"github.com/nutanix-tools/darksite-metering/pkg/log"
)

var (
	outputFile string
)

var rootCmd = &cobra.Command{
	Use:   "daily-export",
	Short: "Export Nutanix inventory usage as billing TSV files",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)

	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the export to this path instead of the export directory")
}

// setup loads configuration, installs the global logger and builds the
// aggregator shared by the run and schedule commands.
func setup() (*config.Config, *inventory.Aggregator, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, err
	}

	logger := log.InitLog(log.ParseLevel(cfg.LogLevel), cfg.LogFile)
	undo := zap.ReplaceGlobals(logger)
	cleanup := func() {
		undo()
		_ = logger.Sync()
	}

	client := prism.NewClient(prism.Config{
		Host:               cfg.Prism.Host,
		Port:               cfg.Prism.Port,
		Username:           cfg.Prism.Username,
		Password:           cfg.Prism.Password,
		InsecureSkipVerify: cfg.Prism.InsecureSkipVerify,
		Timeout:            cfg.Prism.Timeout,
	})
	return cfg, inventory.NewAggregator(client, cfg.Prism.PageSize), cleanup, nil
}
