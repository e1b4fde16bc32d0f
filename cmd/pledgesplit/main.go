// Package main is the pledgesplit command: it previews reward splits, serves
// the split API and verifies signed receipts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitfsorg/pledgesplit-go/config"
)

var (
	// Global flags
	verbose bool
	dataDir string
	envFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pledgesplit",
	Short: "Split issue pledge rewards between contributors",
	Long: `pledgesplit calculates how the pledges on an issue are shared out
between contributors after the platform fee.

Shares are written as name (equal part of what is left), name:400
(400 thousandths) or name:40%.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = newLogger(level, "")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "datadir", "", "Data directory (default ~/.pledgesplit)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to read PLEDGESPLIT_* settings from")

	rootCmd.AddCommand(calcCmd, serveCmd, configCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a production zap logger at level, also writing to file
// when it is set.
func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	return cfg.Build()
}

// loadConfig resolves settings from defaults, the config file, the
// environment and finally the --datadir flag. A missing config file is not
// an error.
func loadConfig() (config.Config, error) {
	dir := dataDir
	if dir == "" {
		dir = config.DefaultDataDir()
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	env, err := config.LoadEnv(envFile)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
