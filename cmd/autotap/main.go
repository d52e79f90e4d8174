package main

import (
	"fmt"
	"os"
	"runtime"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(dispatchSubcommand(os.Args[1:]))
}

func dispatchSubcommand(args []string) int {
	if len(args) == 0 {
		printHelp()
		return exitCodeUsage
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "run":
		return runCommand(runRunCommand, args[1:])
	case "logs":
		return runCommand(runLogsCommand, args[1:])
	case "config":
		return runCommand(runConfigCommand, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q (see 'autotap help')\n", args[0])
		return exitCodeUsage
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printHelp() {
	fmt.Println("autotap - timed click automation for web pages")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  autotap <command> [flags]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  run [--url URL] [--point x,y ...]  Open a page and click on a timer until the duration runs out")
	fmt.Println("  logs [-n N] [--session ID]         Show recent events from the JSONL logs")
	fmt.Println("  config [show|check|path]           Inspect the effective configuration")
	fmt.Println("  version                            Show version information")
	fmt.Println("  help                               Show this help")
	fmt.Println()
	fmt.Println("RUN FLAGS:")
	fmt.Println("  --config PATH      Load this YAML file instead of ~/.autotap and ./.autotap")
	fmt.Println("  --interval SECS    Seconds between clicks (default 1)")
	fmt.Println("  --duration SECS    Seconds the loop runs before stopping itself (default 60)")
	fmt.Println("  --mode MODE        single, multi or double")
	fmt.Println("  --highlight        Flash a marker at each click site")
	fmt.Println("  --driver NAME      chromedp or rod")
	fmt.Println("  --addr HOST:PORT   Serve the control API and /metrics")
	fmt.Println("  --watch            Re-apply --config when the file changes")
	fmt.Println("  --stay             Keep the page open after the loop expires")
	fmt.Println("  --no-start         Load the page but wait for POST /start")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  AUTOTAP_URL, AUTOTAP_DRIVER, AUTOTAP_HEADLESS, AUTOTAP_REMOTE_URL, AUTOTAP_EXEC_PATH,")
	fmt.Println("  AUTOTAP_LOG_DIR, AUTOTAP_LOG_LEVEL, AUTOTAP_METRICS_ADDR, AUTOTAP_SERVER_TOKEN")
}

func printVersion() {
	fmt.Printf("autotap %s\n", version)
	if commit != "unknown" {
		fmt.Printf("  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  Built:      %s\n", buildDate)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
