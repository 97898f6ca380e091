package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/fetcher"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/section"
)

var (
	sectionFile   string
	sectionAnchor string
)

var sectionCmd = &cobra.Command{
	Use:   "section",
	Short: "Print the isolated region section of the advisory page",
	RunE: func(cmd *cobra.Command, args []string) error {
		var page string
		if sectionFile != "" {
			b, err := os.ReadFile(sectionFile)
			if err != nil {
				return fmt.Errorf("read page: %w", err)
			}
			page = string(b)
		} else {
			f := fetcher.New(fetcher.Options{
				URL:       cfg.Source.URL,
				UserAgent: cfg.Source.UserAgent,
				Timeout:   cfg.Source.Timeout,
			})
			var err error
			if page, err = f.Fetch(cmd.Context()); err != nil {
				return err
			}
		}

		anchor := sectionAnchor
		if anchor == "" {
			anchor = cfg.Region
		}
		sec, err := section.Extract(page, anchor)
		if err != nil {
			return err
		}
		logger.Debug("Isolated section", "anchor", anchor, "tag", sec.Tag, "start", sec.Start, "end", sec.End)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sec.Text)
		return err
	},
}

func init() {
	sectionCmd.Flags().StringVar(&sectionFile, "file", "", "read the page from a local file instead of fetching it")
	sectionCmd.Flags().StringVar(&sectionAnchor, "anchor", "", "heading id to isolate (defaults to the configured region)")
	rootCmd.AddCommand(sectionCmd)
}
