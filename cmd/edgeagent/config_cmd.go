package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/edgeagent/internal/config"
)

// checkReport is the machine-readable output of config check.
type checkReport struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	Modules  int      `json:"modules"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func runConfigCheck(args []string) int {
	var configFlag, format string
	var strict bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configFlag, "config", "", "Path to configuration")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	configPath, err := resolveConfigPath(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	report := checkReport{Valid: true, Config: configPath, Errors: []string{}, Warnings: []string{}}
	cfg, err := config.Load(configPath)
	if err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.Config = cfg.SourcePath
		report.Modules = len(cfg.RestartCommands())

		integrity, err := config.VerifyIntegrity(cfg.SourcePath)
		if err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, err.Error())
		} else {
			report.Valid = integrity.Passed
			report.Errors = append(report.Errors, integrity.Errors...)
			report.Warnings = append(report.Warnings, integrity.Warnings...)
		}
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	default:
		printCheckReport(report)
	}

	if !report.Valid {
		return 1
	}
	if strict && len(report.Warnings) > 0 {
		return 2
	}
	return 0
}

func printCheckReport(r checkReport) {
	fmt.Printf("Config: %s\n", r.Config)
	for _, e := range r.Errors {
		fmt.Printf("  ERROR %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  WARN  %s\n", w)
	}
	if r.Valid {
		fmt.Printf("Configuration valid (%d enabled modules)\n", r.Modules)
		return
	}
	fmt.Println("Configuration invalid")
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to configuration")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	configPath, err := resolveConfigPath(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	// Refuse to authorize a config that would not start.
	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	manifest, err := config.Lock(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Successfully locked configuration: %s\n", manifest)
	return 0
}
