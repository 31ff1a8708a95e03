package main

import (
	"fmt"
	"os"

	"github.com/newthinker/cyclewatch/internal/config"
	"github.com/newthinker/cyclewatch/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "cyclewatch",
	Short: "cyclewatch - market cycle indicator engine",
	Long: `cyclewatch compares an asset's price with its long-run rolling mean and a
multiplied band above it, flags accumulation and distribution regimes and
publishes daily reports with optional LLM advice.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// setup loads the configuration and builds a logger from it
func setup() (*config.Config, *zap.Logger, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithLevel(debug || cfg.Log.Development, level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
