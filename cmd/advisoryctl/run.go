package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/observability"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/services"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once for the configured region",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runCfg := *cfg
		if runDryRun {
			runCfg.Storage.Bucket = ""
			runCfg.Firestore.Collection = ""
			runCfg.Workflow.ID = ""
		}

		parser, err := services.NewParser(ctx, &runCfg, logger, observability.NewMetrics())
		if err != nil {
			return fmt.Errorf("init parser: %w", err)
		}
		defer parser.Close()

		res, err := parser.Process(ctx, models.RunRequest{Trigger: models.TriggerCLI, DryRun: runDryRun})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if runDryRun {
			_, err = fmt.Fprintln(out, string(res.Body))
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Response())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the document instead of persisting it")
	rootCmd.AddCommand(runCmd)
}
