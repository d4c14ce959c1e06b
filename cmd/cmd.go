// Package cmd provides CLI commands for Voyago.
//
// Commands:
//   - serve: HTTP API server with the background refresh loop
//   - ask: one-shot question against the knowledge base
//   - refresh: rebuild the knowledge base from the content source
//   - stats: show knowledge base statistics
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the Voyago CLI application.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(os.Args[2:])
	case "ask":
		return runAsk(os.Args[2:])
	case "refresh":
		return runRefresh()
	case "stats":
		return runStats()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Voyago - AI travel assistant with a self-refreshing knowledge base")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  voyago serve [addr]     Start HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  voyago ask <question>   Ask a one-shot question")
	fmt.Println("  voyago refresh          Rebuild the knowledge base from the content source")
	fmt.Println("  voyago stats            Show knowledge base statistics")
	fmt.Println("  voyago --version        Show version information")
	fmt.Println("  voyago --help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Required for serve/ask/refresh: Gemini API key")
	fmt.Println("  VOYAGO_*                Optional: override any config setting,")
	fmt.Println("                          e.g. VOYAGO_STORE_BACKEND=file")
	fmt.Println()
	fmt.Println("Configuration file: ~/.voyago/config.yaml")
}
