package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vangitty/wechaty2/internal/attachment"
	"github.com/vangitty/wechaty2/internal/bus"
	"github.com/vangitty/wechaty2/internal/config"
	"github.com/vangitty/wechaty2/internal/dispatch"
	"github.com/vangitty/wechaty2/internal/journal"
	"github.com/vangitty/wechaty2/internal/metrics"
	"github.com/vangitty/wechaty2/internal/router"
	"github.com/vangitty/wechaty2/internal/session"
	"github.com/vangitty/wechaty2/internal/storage"
)

var (
	version    = "0.2.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Secrets for ${VAR} config expansion may live in a local .env file.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "wechatbridge",
		Short: "wechatbridge: chat event relay to webhook and object storage",
		Long:  "wechatbridge connects to a chat puppet gateway, uploads attachments to S3-compatible storage, and forwards normalized message envelopes to a webhook.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.wechatbridge/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(starterConfig), 0o600); err != nil {
				return fmt.Errorf("cannot write config: %w", err)
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

const starterConfig = `general:
  botId: wechaty-bridge
  logLevel: info

gateway:
  url: ws://localhost:8788/events
  token: ${GATEWAY_TOKEN}

storage:
  endpoint: ${S3_ENDPOINT:-http://localhost:9000}
  accessKey: ${S3_ACCESS_KEY}
  secretKey: ${S3_SECRET_KEY}
  bucket: wechaty-files

webhook:
  url: ${WEBHOOK_URL}
`

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and relay events",
		RunE:  runBridge,
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.General.LogLevel)}))

	if cfg.Webhook.URL == "" {
		logger.Warn("webhook.url not configured, envelopes will be dropped after logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New(cfg.Pipeline.BusBuffer, logger)
	defer eventBus.Close()

	store, err := storage.NewMinioStore(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}
	uploader := storage.NewUploader(storage.UploaderConfig{
		Store:    store,
		Endpoint: cfg.Storage.Endpoint,
		Bucket:   cfg.Storage.Bucket,
		BotID:    cfg.General.BotID,
		Attempts: cfg.Storage.Attempts,
		Backoff:  time.Duration(cfg.Storage.BackoffSeconds) * time.Second,
		Logger:   logger,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		URL:      cfg.Webhook.URL,
		BotID:    cfg.General.BotID,
		Attempts: cfg.Webhook.Attempts,
		Backoff:  time.Duration(cfg.Webhook.BackoffSeconds) * time.Second,
		Client:   dispatch.SharedHTTPClient(time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second),
		Logger:   logger,
	})

	var recorder router.Recorder
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		recorder = j
	}

	eventRouter := router.New(router.Config{
		BotID:       cfg.General.BotID,
		Extractor:   attachment.NewExtractor(attachment.Config{TextFileQuirk: cfg.Pipeline.TextFileQuirk}),
		Uploader:    uploader,
		Deliverer:   dispatcher,
		Journal:     recorder,
		Logger:      logger,
		Concurrency: cfg.Pipeline.Concurrency,
	})

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics.Addr)
	}

	routerDone := make(chan struct{})
	go func() {
		eventRouter.Run(ctx, eventBus.Subscribe())
		close(routerDone)
	}()

	source := session.NewSource(session.SourceConfig{
		URL:    cfg.Gateway.URL,
		Token:  cfg.Gateway.Token,
		Bus:    eventBus,
		Logger: logger,
	})

	logger.Info("bridge starting", "bot_id", cfg.General.BotID, "gateway", cfg.Gateway.URL, "version", version)
	err = source.Run(ctx)

	stop()
	eventBus.Close()
	<-routerDone

	if errors.Is(err, context.Canceled) {
		logger.Info("bridge stopped")
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "err", err)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent pipeline outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				fmt.Println("journal disabled; no outcome history available")
				return nil
			}
			j, err := journal.Open(cfg.Journal.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded outcomes")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-9s %-8s %s", e.CreatedAt.Format(time.RFC3339), e.State, e.Kind, e.EventID)
				if e.ErrorKind != "" {
					line += "  [" + e.ErrorKind + "]"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(config.Sanitized(cfg))
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := config.Load(cfgPath); err != nil {
				return err
			}
			fmt.Printf("config ok: %s\n", cfgPath)
			return nil
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("wechatbridge", version)
		},
	}
}
