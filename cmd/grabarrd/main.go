package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"grabarr/internal/config"
	"grabarr/internal/daemon"
	"grabarr/internal/logging"
	"grabarr/internal/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "*.log", cfg.Logging.RetentionDays)

	reportPreflight(ctx, cfg, logger)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		os.Exit(1)
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		store.Close()
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("grabarrd shutting down")
}
