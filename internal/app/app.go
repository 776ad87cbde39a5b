package app

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"marketfeed/internal/config"
	"marketfeed/internal/server"
)

const cfgPath = "./config/config.json"

func Start() error {
	var (
		port     = flag.Int("port", 8080, "Port number")
		simOnly  = flag.Bool("simulated", false, "Serve simulated data only, never call the exchange")
		helpFlag = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  marketfeed [--port <N>] [--simulated]\n")
		fmt.Fprintf(os.Stderr, "  marketfeed --help\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --port N     Port number\n")
		fmt.Fprintf(os.Stderr, "  --simulated  Serve simulated data only\n")
	}

	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0) // Exit cleanly when help is requested
	}

	slog.Info("Loading configuration...")
	config, err := config.GetConfig(cfgPath)
	if err != nil {
		slog.Error("failed to get config", "error", err)
		return fmt.Errorf("failed to get config: %w", err)
	}

	if *port > 0 {
		config.App.Port = *port
	}
	slog.Info("Configuration loaded", "port", config.App.Port)

	slog.Info("Creating application instance...")
	app := server.NewApp(config)

	slog.Info("Initializing application...")
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}

	if *simOnly {
		slog.Info("Running in simulated-only mode")
		app.ForceSimulation()
	}

	slog.Info("Starting server...")
	app.Run()

	slog.Info("Server stopped")
	return nil
}
