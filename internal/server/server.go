package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"marketfeed/internal/adapters/binance"
	v1 "marketfeed/internal/adapters/handler/http/v1"
	"marketfeed/internal/adapters/transport"
	"marketfeed/internal/config"
	"marketfeed/internal/core/domain"
	"marketfeed/internal/core/port"
	"marketfeed/internal/core/service/feed"
	"marketfeed/internal/core/service/health"
	"marketfeed/internal/core/service/livecache"
	"marketfeed/internal/core/service/simulation"
)

type App struct {
	cfg    *config.Config
	router *http.ServeMux

	// Adapters
	gateway port.ExchangeGateway
	stream  port.TradeStream

	// Services
	cache         port.LiveCache
	sim           port.Simulator
	priceFeed     port.PriceFeed
	healthService port.HealthService

	// For graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (app *App) Initialize() error {
	slog.Info("Initializing application...")
	app.router = http.NewServeMux()

	// Outbound HTTP client, proxied when configured
	timeout := time.Duration(app.cfg.Exchange.TimeoutSeconds) * time.Second
	httpClient, err := transport.NewHTTPClient(&app.cfg.Proxy, timeout)
	if err != nil {
		slog.Error("Transport setup failed", "error", err)
		return err
	}

	// Initialize services following hexagonal architecture

	// 1. Live cache holds the freshest price per symbol
	cache := livecache.New(app.cfg.Cache.SignificantChangeThreshold)
	app.cache = cache

	// 2. Simulation engine, seeded from real observations via the
	// cache snapshot whenever one exists
	sim := simulation.New(app.cfg.Simulation, simulation.WithSnapshot(cache.Snapshot))
	app.sim = sim

	// 3. Exchange adapters. The gateway seeds the simulation on every
	// successful REST fetch so simulated fallback stays plausible.
	app.gateway = binance.NewGateway(httpClient, app.cfg.Exchange.BaseURL, app.cfg.Exchange.APIKey, sim)
	app.stream = binance.NewStream(app.cfg.Exchange.WSURL, httpClient)

	// 4. Price feed facade (business logic layer)
	app.priceFeed = feed.New(cache, app.gateway, app.stream, sim)

	// 5. Create Health Service
	app.healthService = health.NewHealthService(app.priceFeed, cache, app.stream, app.gateway)

	// 6. Create Handlers (adapters layer)
	priceHandler := v1.NewPriceHandler(app.priceFeed)
	healthHandler := v1.NewHealthHandler(app.healthService)
	modeHandler := v1.NewModeHandler(app.priceFeed, cache, app.stream, app.cfg.Stream.Symbols, app.ctx)

	// 7. Set up main routes
	v1.SetMarketRoutes(app.router, priceHandler, healthHandler, modeHandler)

	// 8. Set up debug routes (ONLY for debugging - remove in production)
	v1.SetDebugRoutes(app.router, cache, sim)

	// 9. Start background trade streaming
	go app.startTradeStream()

	slog.Info("Application initialized successfully")
	return nil
}

func (app *App) Run() {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.App.Port),
		Handler: app.router,
	}

	slog.Info("Starting server", "port", app.cfg.App.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		return
	}
}

// Background task that keeps the live trade stream feeding the cache
func (app *App) startTradeStream() {
	slog.Info("Starting trade stream...", "symbols", app.cfg.Stream.Symbols)

	if len(app.cfg.Stream.Symbols) == 0 {
		slog.Warn("No stream symbols configured, serving REST and simulated data only")
		return
	}

	if err := app.priceFeed.StartStream(app.ctx, app.cfg.Stream.Symbols); err != nil {
		slog.Error("Failed to start trade stream", "error", err)
		return
	}

	// Surface notable moves in the logs
	app.priceFeed.SubscribeSignificant(port.SymbolAll, func(change domain.SignificantChange) {
		slog.Info("Significant price move",
			"symbol", change.Symbol,
			"price", change.Price,
			"previous", change.PreviousPrice,
			"change_percent", fmt.Sprintf("%.2f", change.ChangePercent),
		)
	})

	slog.Info("Trade stream started successfully")
}

// ForceSimulation pins the feed to simulated answers and keeps the
// trade stream off
func (app *App) ForceSimulation() {
	if app.priceFeed != nil {
		app.priceFeed.ForceSimulation(true)
		if err := app.priceFeed.StopStream(); err != nil {
			slog.Error("Failed to stop trade stream", "error", err)
		}
	}
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	slog.Info("Shutting down application...")

	// Cancel context to stop all goroutines
	app.cancel()

	// Stop the trade stream
	if app.priceFeed != nil {
		if err := app.priceFeed.StopStream(); err != nil {
			slog.Error("Failed to stop trade stream", "error", err)
		}
	}

	slog.Info("Application shutdown complete")
	return nil
}
