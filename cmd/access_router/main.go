// Command access_router preprocesses OpenStreetMap extracts into routing
// graphs, computes origin-destination skims and serves path queries.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"access_router/pkg/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "access_router",
	Short: "Least-cost path trees, skims and accessibility on OSM networks",
	Long: `access_router builds mode-specific road graphs from OpenStreetMap,
computes origin-destination matrices of cost, time, distance and link
attributes in parallel, and serves matrix and path queries over HTTP.

Examples:
  access_router preprocess --input sg.osm.pbf --mode bike --output sg-bike.bin
  access_router skim --config job.yaml
  access_router serve --config job.yaml`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"YAML configuration file (defaults are used when absent)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log.level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log.format: text or json")

	rootCmd.AddCommand(preprocessCmd, skimCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(lc.Level))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
