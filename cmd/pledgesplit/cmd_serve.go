package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/api"
	"github.com/bitfsorg/pledgesplit-go/archive"
	"github.com/bitfsorg/pledgesplit-go/config"
	"github.com/bitfsorg/pledgesplit-go/notify"
	"github.com/bitfsorg/pledgesplit-go/receipt"
	"github.com/bitfsorg/pledgesplit-go/rewards"
	"github.com/bitfsorg/pledgesplit-go/split"
	"github.com/bitfsorg/pledgesplit-go/store"
)

var (
	serveListen   string
	serveTrustXFF bool
	serveOrigins  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reward split API",
	Long: `Opens the pledge ledger in the data directory and serves the HTTP API
until interrupted. Splits are announced on Discord and Redis when configured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveTrustXFF, "trust-xff", false, "Rate limit by X-Forwarded-For (behind a proxy)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "Allowed CORS origins (default *)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.ListenAddr = serveListen
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if logger, err = newLogger(level, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, "pledgesplit.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	key, err := receipt.LoadSigningKey(cfg.SigningKey)
	if err != nil {
		return err
	}
	if cfg.SigningKey == "" {
		logger.Warn("no signing key configured, using an ephemeral key")
	}

	arc, err := archive.New(filepath.Join(cfg.DataDir, "receipts"))
	if err != nil {
		return err
	}

	notifier, closeNotifiers, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	svc, err := rewards.New(rewards.Options{
		Store:      st,
		SigningKey: key,
		Fee:        split.FeePolicy{BasisPoints: cfg.FeeBasisPoints},
		Currency:   cfg.Currency,
		Notifier:   notifier,
		Archive:    arc,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	server := api.New(svc, logger, api.Options{
		RateRPS:            cfg.RateRPS,
		RateBurst:          cfg.RateBurst,
		TrustXForwardedFor: serveTrustXFF,
		AllowedOrigins:     serveOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting pledgesplit",
		zap.String("datadir", cfg.DataDir),
		zap.String("signer", svc.PublicKey()),
		zap.Uint32("fee_bps", cfg.FeeBasisPoints),
	)
	return server.Serve(ctx, cfg.ListenAddr)
}

// buildNotifier assembles the configured notifiers. The log notifier is
// always present.
func buildNotifier(cfg config.Config) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}}
	closers := []func(){}

	if cfg.DiscordWebhookURL != "" {
		d, err := notify.NewDiscordNotifier(cfg.DiscordWebhookURL, nil)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, d)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		notifiers = append(notifiers, notify.NewRedisNotifier(rdb, cfg.RedisChannel))
	}

	return notifiers, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
