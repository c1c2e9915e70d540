package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelhost/internal/catalog"
	"modelhost/internal/common/fsutil"
	"modelhost/internal/config"
	"modelhost/internal/engine"
	"modelhost/internal/faststore"
	"modelhost/internal/httpapi"
	"modelhost/internal/manager"
	"modelhost/internal/structstore"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		stateDir    string
		cacheDir    string
		autoRestore bool
		logLevel    string
	)
	root := &cobra.Command{
		Use:           "modelhostd",
		Short:         "Local model lifecycle daemon: catalog, cache reconciliation, loading and generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			// Flags override file values when set explicitly.
			if cmd.Flags().Changed("addr") || cfg.Addr == "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("state-dir") || cfg.StateDir == "" {
				cfg.StateDir = stateDir
			}
			if cmd.Flags().Changed("cache-dir") || cfg.CacheDir == "" {
				cfg.CacheDir = cacheDir
			}
			if cmd.Flags().Changed("auto-restore") {
				cfg.AutoRestore = autoRestore
			}
			if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
				cfg.LogLevel = logLevel
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "Path to config file (.yaml/.json/.toml)")
	root.Flags().StringVar(&addr, "addr", envOr("MODELHOST_ADDR", ":8090"), "HTTP listen address")
	root.Flags().StringVar(&stateDir, "state-dir", "~/.modelhost", "Directory for durable state")
	root.Flags().StringVar(&cacheDir, "cache-dir", "~/.modelhost/cache", "Directory for materialized model weights")
	root.Flags().BoolVar(&autoRestore, "auto-restore", true, "Re-load the persisted active model at startup")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	stateDir, err := fsutil.ExpandHome(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	cacheDir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	if err := fsutil.EnsureDir(cacheDir); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}

	fast, err := faststore.Open(filepath.Join(stateDir, "state.json"))
	if err != nil {
		return fmt.Errorf("open fast store: %w", err)
	}

	partsPath := cfg.PartitionsDB
	if partsPath == "" {
		partsPath = filepath.Join(stateDir, "partitions.db")
	}
	parts, err := structstore.Open(partsPath)
	if err != nil {
		return fmt.Errorf("open partitions db: %w", err)
	}
	defer parts.Close()

	cat := catalog.Builtin()
	if len(cfg.ExtraModels) > 0 {
		cat = cat.WithExtra(cfg.ExtraModels)
	}

	eng := engine.New(engine.Config{
		CacheDir:   cacheDir,
		Catalog:    cat,
		Partitions: parts,
		Logger:     logger.With().Str("component", "engine").Logger(),
	})

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:    cat,
		Engine:     eng,
		FastStore:  fast,
		Partitions: parts,
		Logger:     logger.With().Str("component", "manager").Logger(),
	})
	defer mgr.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup reconcile heals the fast store before any client asks.
	if _, err := mgr.Reconcile(rootCtx); err != nil {
		logger.Warn().Err(err).Msg("startup reconcile failed")
	}
	if cfg.AutoRestore {
		mgr.AutoRestore(rootCtx)
	}
	go func() {
		if err := mgr.WatchCacheDir(rootCtx, cacheDir); err != nil && rootCtx.Err() == nil {
			logger.Warn().Err(err).Msg("cache dir watcher stopped")
		}
	}()

	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(rootCtx)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Content-Type", "X-Log-Level"})

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("cache_dir", cacheDir).Msg("modelhostd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-rootCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
