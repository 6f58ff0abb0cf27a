package cmd

import (
	"fmt"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/config"
	"github.com/ragpilot/ragpilot/internal/generate"
	"github.com/ragpilot/ragpilot/internal/log"
	"github.com/ragpilot/ragpilot/internal/session"
)

// app bundles the wired application dependencies for a command run.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	manager *session.Manager
}

// setup loads configuration and wires the client, orchestrator and
// session manager. persistState controls whether the active
// conversation is remembered across runs (the TUI wants this, one-shot
// commands don't).
func setup(persistState bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	backend, err := client.New(client.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger.With("component", "client"),
	})
	if err != nil {
		return nil, err
	}

	orchestrator, err := generate.New(backend, logger.With("component", "generate"))
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(session.Config{
		Store:        backend,
		Generator:    orchestrator,
		Logger:       logger.With("component", "session"),
		UserID:       cfg.UserID,
		HistoryLimit: cfg.HistoryLimit,
		PersistState: persistState,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, manager: manager}, nil
}
