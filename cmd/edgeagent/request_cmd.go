package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mattjoyce/edgeagent/internal/config"
	"github.com/mattjoyce/edgeagent/internal/log"
)

// runRequestInvoke dispatches one request against a locally built core and
// prints the status line followed by the payload, if any. The exit code is
// 0 only for a 200 response.
func runRequestInvoke(args []string) int {
	// Accept the request name before or after flags.
	var name string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration")
	payloadFlag := fs.String("payload", "", "Request payload (JSON); omitted means no payload")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if name == "" {
		name = fs.Arg(0)
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "Usage: edgeagent request invoke <name> [--payload JSON] [--config PATH]")
		return 1
	}

	var payload *string
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "payload" {
			payload = payloadFlag
		}
	})

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
	log.SetupTo(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx := context.Background()
	a, err := newAgent(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start request core: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	resp := a.dispatcher.ProcessRequest(ctx, name, payload)
	fmt.Printf("%d %s\n", resp.Status, http.StatusText(resp.Status))
	if resp.Payload != nil {
		fmt.Println(*resp.Payload)
	}
	if resp.Status != http.StatusOK {
		return 1
	}
	return 0
}
