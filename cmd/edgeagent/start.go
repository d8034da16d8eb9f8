package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/edgeagent/internal/api"
	"github.com/mattjoyce/edgeagent/internal/auth"
	"github.com/mattjoyce/edgeagent/internal/config"
	"github.com/mattjoyce/edgeagent/internal/events"
	"github.com/mattjoyce/edgeagent/internal/lock"
	"github.com/mattjoyce/edgeagent/internal/log"
	"github.com/mattjoyce/edgeagent/internal/requests"
	"github.com/mattjoyce/edgeagent/internal/tracing"
	"golang.org/x/sync/errgroup"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	configPath, err := resolveConfigPath(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("edgeagent starting", "version", version, "config", cfg.SourcePath)

	integrity, err := config.VerifyIntegrity(cfg.SourcePath)
	if err != nil {
		logger.Error("config integrity check failed", "error", err)
		return 1
	}
	for _, w := range integrity.Warnings {
		logger.Warn("config integrity", "warning", w)
	}
	if !integrity.Passed {
		for _, e := range integrity.Errors {
			logger.Error("config integrity", "error", e)
		}
		return 1
	}

	pidLockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", pidLockPath, "error", err)
		return 1
	}
	defer func() { _ = pidLock.Release() }()
	logger.Info("acquired PID lock", "path", pidLockPath)

	shutdownTracing, err := tracing.Init(cfg.Service.Name, version, cfg.Tracing.Enabled, os.Stderr)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(256)
	a, err := newAgent(ctx, cfg, requests.WithPublisher(hub))
	if err != nil {
		logger.Error("failed to start request core", "error", err)
		return 1
	}
	defer func() { _ = a.Close() }()
	logger.Info("request core ready",
		"handlers", a.dispatcher.Handlers(),
		"modules", a.runtime.Modules(),
		"timeout", a.dispatcher.Timeout(),
	)

	var components []component
	if cfg.API.Enabled {
		components = append(components, newAPIComponent(cfg, a, hub))
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	} else {
		logger.Warn("API server disabled; requests can only be dispatched in-process")
	}

	logger.Info("edgeagent running (press Ctrl+C to stop)")

	// The deferred Close and Release run only once serve has returned, so
	// in-flight requests finish against an open database and a held lock.
	if err := serve(ctx, components...); err != nil {
		logger.Error("component failed", "error", err)
		return 1
	}

	logger.Info("edgeagent stopped")
	return 0
}

// component is a long-lived part of the running agent. run blocks until ctx
// is cancelled or the component fails, and returns only once it has drained.
type component struct {
	name string
	run  func(ctx context.Context) error
}

func newAPIComponent(cfg *config.Config, a *agent, hub *events.Hub) component {
	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	server := api.New(api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: tokens,
	}, a.dispatcher, hub, log.WithComponent("api"))

	return component{name: "api", run: server.Start}
}

// serve runs components until ctx is cancelled or one of them fails, then
// waits for every component to return. A failure cancels the others.
func serve(ctx context.Context, components ...component) error {
	g, gctx := errgroup.WithContext(ctx)
	// Holds serve open when no component is enabled.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	for _, c := range components {
		g.Go(func() error {
			if err := c.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
