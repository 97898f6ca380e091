package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/config"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "advisoryctl",
	Short: "Operate the NYC traffic advisory pipeline from a terminal",
	Long:  "Runs the advisory pipeline locally, inspects the isolated region section of a page, and checks address geocoding against the configured service.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
