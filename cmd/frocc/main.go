package main

import (
	"fmt"
	"os"

	"github.com/keflavich/frocc/internal/cli"
	"github.com/keflavich/frocc/internal/config"
	"github.com/keflavich/frocc/internal/logging"
	"github.com/keflavich/frocc/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		// Runs still work without the database; only history is lost.
		logger.Warn("run database unavailable", "path", cfg.Paths.DatabasePath, "error", err)
		store = nil
	}
	defer store.Close()

	rootCmd := cli.NewRootCmd(cfg, logger, store)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
