package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prakashgbid/caia-sub003/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", config.GetUserConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("quality.threshold:            %v\n", cfg.Quality.Threshold)
		fmt.Printf("quality.max_rework_cycles:    %d\n", cfg.Quality.MaxReworkCycles)
		fmt.Printf("streams.concurrency:          %d\n", cfg.Streams.Concurrency)
		fmt.Printf("tracker.url:                  %s\n", cfg.Tracker.URL)
		fmt.Printf("tracker.batch_size:           %d\n", cfg.Tracker.BatchSize)
		fmt.Printf("tracker.concurrency:          %d\n", cfg.Tracker.Concurrency)
		fmt.Printf("tracker.rate_per_second:      %v\n", cfg.Tracker.RatePerSecond)
		fmt.Printf("tracker.rate_wait_timeout:    %s\n", cfg.Tracker.RateWaitTimeout)
		fmt.Printf("tracker.retry_attempts:       %d\n", cfg.Tracker.RetryAttempts)
		fmt.Printf("tracker.retry_base_delay:     %s\n", cfg.Tracker.RetryBaseDelay)
		fmt.Printf("tracker.breaker_threshold:    %d\n", cfg.Tracker.BreakerThreshold)
		fmt.Printf("tracker.breaker_cooldown:     %s\n", cfg.Tracker.BreakerCooldown)
		fmt.Printf("tracker.proceed_without_link: %v\n", cfg.Tracker.ProceedWithoutLink)
		fmt.Printf("storage.db_path:              %s\n", cfg.Storage.DBPath)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
