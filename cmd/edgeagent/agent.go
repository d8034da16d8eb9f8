package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattjoyce/edgeagent/internal/config"
	"github.com/mattjoyce/edgeagent/internal/modules"
	"github.com/mattjoyce/edgeagent/internal/requests"
	"github.com/mattjoyce/edgeagent/internal/requests/handlers"
	"github.com/mattjoyce/edgeagent/internal/storage"
)

// agent is the wired request core shared by system start and request invoke.
type agent struct {
	db         *sql.DB
	runtime    *modules.CommandRuntime
	dispatcher *requests.Dispatcher
}

func (a *agent) Close() error {
	return a.db.Close()
}

// newAgent opens the state database and registers the built-in handlers.
func newAgent(ctx context.Context, cfg *config.Config, opts ...requests.Option) (*agent, error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", cfg.State.Path, err)
	}

	runtime := modules.NewCommandRuntime(cfg.RestartCommands())
	store := modules.NewStore(db)

	hs := []requests.Handler{
		handlers.Ping{},
		handlers.NewRestartModule(runtime, store),
		handlers.NewGetModules(runtime, store),
	}
	opts = append([]requests.Option{requests.WithMiddleware(requests.Traced())}, opts...)

	return &agent{
		db:         db,
		runtime:    runtime,
		dispatcher: requests.New(hs, cfg.Requests.Timeout, opts...),
	}, nil
}
