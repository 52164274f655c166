// Package main is the itinerary command-line tool. It runs the same
// document pipeline as the API server, in process, against local files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkordes/itinerary/internal/config"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "itinerary",
		Short: "Build day-by-day travel itineraries from booking documents",
		Long: `itinerary reads hotel, flight and car-rental confirmations, extracts
their bookings and prints a day-by-day itinerary as markdown.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (defaults to $CONFIG_FILE)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	return config.LoadFile(configPath)
}
