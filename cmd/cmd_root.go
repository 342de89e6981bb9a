// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/snapbite/snapbite/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath    string
	DbPath        string
	LogLevel      string
	TraceHTTP     bool
	TraceHTTPBody bool
}

var (
	rootOpts = &rootOptions{}
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "snapbite",
	Short: "restaurant discovery from screenshots",
	Long: `
snapbite turns screenshots of restaurant listings into a local, geolocated
list of places to eat. A vision model reads the screenshot, the address is
geocoded, and duplicates of places already saved are rejected.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load(rootOpts.ConfigPath, ".env")
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("db") {
			cfg.Database.Path = rootOpts.DbPath
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = rootOpts.LogLevel
		}

		setupLogging(cfg.Logging.Level)

		return nil
	},
}

func setupLogging(level string) {
	var writer log.Writer = &log.IOWriter{Writer: os.Stderr}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		writer = &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: true, EndWithMessage: true}
	}

	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: time.TimeOnly,
		Writer:     writer,
	}
}

var Version = "dev"

func userAgent() string {
	if cfg != nil && cfg.Geocoding.UserAgent != "" {
		return cfg.Geocoding.UserAgent
	}

	return fmt.Sprintf("snapbite/%s (+https://github.com/snapbite/snapbite)", Version)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", "", "Path to the TOML configuration file (default snapbite.toml)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.DbPath, "db", "", "Database file; .sqlite/.db use sqlite, anything else duckdb")
	rootCmd.PersistentFlags().StringVar(&rootOpts.LogLevel, "log-level", "info", "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&rootOpts.TraceHTTP, "trace-http", false, "Display HTTP requests-responses")
	rootCmd.PersistentFlags().BoolVar(&rootOpts.TraceHTTPBody, "trace-http-body", false, "Display HTTP requests-responses bodies")
}

func Execute(version string) {
	Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}
