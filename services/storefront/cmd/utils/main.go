package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/cmd/utils/internal/commands"
	"github.com/appetiteclub/storefront/services/storefront/internal/storage"
)

const (
	appName    = "storefront-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	// Shares the service namespace so both read the same storage settings.
	config, err := aqm.LoadConfig("STOREFRONT", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := aqm.NewLogger(logLevel)

	ctx := context.Background()

	backend, err := storage.FromProperties(ctx, config, logger)
	if err != nil {
		log.Fatalf("Cannot open client state storage: %v", err)
	}
	defer backend.Stop(ctx)

	switch command {
	case "reset-state":
		if err := commands.ResetState(ctx, backend.Store, logger); err != nil {
			log.Fatalf("Client state reset failed: %v", err)
		}
		logger.Info("Client state reset completed", "backend", backend.Name)

	case "show-state":
		if err := commands.ShowState(ctx, backend.Store, os.Stdout); err != nil {
			log.Fatalf("Cannot read client state: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Storefront utility commands

Usage:
  %s <command> [options]

Commands:
  reset-state  Delete the persisted cart, session and theme
  show-state   Print the persisted client state keys
  version      Print version information
  help         Show this help message

Environment Variables:
  STOREFRONT_STORAGE_BACKEND  mongo (default), postgres or memory
  STOREFRONT_DB_MONGO_URL     MongoDB connection URL
  STOREFRONT_DB_POSTGRES_URL  PostgreSQL connection URL

Examples:
  %s show-state
  STOREFRONT_STORAGE_BACKEND=postgres %s reset-state

`, appName, appName, appName, appName)
}
