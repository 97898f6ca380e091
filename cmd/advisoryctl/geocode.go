package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/geocode"
	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve one address with the configured geocoding service",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Geocoding.APIKey == "" {
			return fmt.Errorf("%w: GEOCODING_API_KEY is not set", models.ErrConfiguration)
		}
		client := geocode.NewClient(geocode.Options{
			APIKey:  cfg.Geocoding.APIKey,
			BaseURL: cfg.Geocoding.BaseURL,
			Timeout: cfg.Geocoding.Timeout,
		}, logger, nil)

		address := strings.Join(args, " ")
		coords, ok := client.Resolve(cmd.Context(), address)
		if !ok {
			return fmt.Errorf("%w: could not resolve %q", models.ErrGeocodeUnresolved, address)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"address": address,
			"lat":     coords.Lat,
			"lng":     coords.Lng,
		})
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
