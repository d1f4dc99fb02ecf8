package cli

import (
	"log/slog"

	"github.com/keflavich/frocc/internal/config"
	"github.com/keflavich/frocc/internal/storage"
)

// Version is the user-visible release string.
const Version = "0.2.0"

// Root wires CLI commands to configuration, logging and the run store.
type Root struct {
	cfg   *config.Config
	log   *slog.Logger
	store *storage.Store
}

// NewRoot constructs the CLI root.
func NewRoot(cfg *config.Config, logger *slog.Logger, store *storage.Store) *Root {
	return &Root{cfg: cfg, log: logger, store: store}
}

// pick returns flagValue unless it is empty, then the config fallback.
func pick(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}
