package main

import (
	"fmt"
	"os"

	"github.com/mattjoyce/edgeagent/internal/config"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "system":
		return runSystemNoun(rest)
	case "config":
		return runConfigNoun(rest)
	case "request":
		return runRequestNoun(rest)
	case "version":
		fmt.Printf("edgeagent version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

func printUsage(w *os.File) {
	fmt.Fprint(w, `edgeagent - named request dispatcher for edge devices

Usage:
  edgeagent <noun> <action> [flags]

Nouns:
  system    Agent lifecycle
  config    Configuration validation and integrity
  request   Named request dispatch

System Commands:
  system start                  Start the agent in the foreground

Config Commands:
  config check                  Validate syntax, settings and integrity
  config lock                   Authorize the current config (write .checksums)

Request Commands:
  request invoke <name>         Dispatch one request in-process and print the response

General:
  version                       Show version information
  help                          Show this help message

Use 'edgeagent <noun> help' for action-specific flags.
`)
}

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	switch action, actionArgs := args[0], args[1:]; action {
	case "start":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: edgeagent system start [--config PATH]")
			fmt.Println("Start the agent in the foreground.")
			return 0
		}
		return runStart(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	switch action, actionArgs := args[0], args[1:]; action {
	case "check":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: edgeagent config check [--config PATH] [--format human|json] [--strict]")
			fmt.Println("Validate configuration and verify it against .checksums.")
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: edgeagent config lock [--config PATH]")
			fmt.Println("Authorize the current configuration by regenerating .checksums.")
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runRequestNoun(args []string) int {
	if len(args) < 1 {
		printRequestNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printRequestNounHelp(os.Stdout)
		return 0
	}

	switch action, actionArgs := args[0], args[1:]; action {
	case "invoke":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: edgeagent request invoke <name> [--payload JSON] [--config PATH]")
			fmt.Println("Dispatch one request in-process and print its status and payload.")
			return 0
		}
		return runRequestInvoke(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown request action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: edgeagent system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: edgeagent config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func printRequestNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: edgeagent request <action> [flags]")
	fmt.Fprintln(w, "Actions: invoke")
}

// resolveConfigPath returns flagValue or the discovered config location.
func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	discovered, err := config.DiscoverConfigPath()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", discovered)
	return discovered, nil
}
