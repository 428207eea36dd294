package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"webhookrecv/internal/api"
	"webhookrecv/internal/api/handlers"
	"webhookrecv/internal/banner"
	"webhookrecv/internal/capture"
	"webhookrecv/internal/config"
	"webhookrecv/internal/display"
	"webhookrecv/internal/enrichment"
	"webhookrecv/internal/ingestion"
	"webhookrecv/internal/logging"
	"webhookrecv/internal/metrics"
	"webhookrecv/internal/parser/webhook"
	"webhookrecv/internal/realtime"

	"github.com/pterm/pterm"
)

func main() {
	// Default logger until LOG_LEVEL is known
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)

	// Print banner
	banner.Print()

	// Load configuration from .env, environment variables and flags
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.WithCaller().Fatal("Failed to load configuration", logger.Args("error", err))
	}

	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		pterm.DefaultLogger.WithCaller().Fatal("Failed to open log file",
			pterm.DefaultLogger.Args("path", cfg.LogFile, "error", err))
	}
	defer logCloser.Close()

	logger.Debug("Configuration loaded",
		logger.Args(
			"address", cfg.Address(),
			"max_history", cfg.History.MaxHistory,
			"save_path", cfg.History.SavePath,
			"load_path", cfg.History.LoadPath,
			"geoip_enabled", cfg.GeoIP.Enabled,
		))

	// Initialize GeoIP enricher (optional - the console works without it)
	var geoIP *enrichment.GeoIPEnricher
	if cfg.GeoIP.Enabled {
		geoIP, err = enrichment.NewGeoIPEnricher(cfg.GeoIP.CityDBPath, cfg.GeoIP.ASNDBPath, cfg.GeoIP.CacheSize, logger)
		if err != nil {
			logger.Warn("GeoIP enricher initialization failed, continuing without GeoIP", logger.Args("error", err))
		} else if geoIP.IsEnabled() {
			logger.Info("GeoIP enrichment enabled")
		}
	}

	recorder := metrics.NewRecorder()

	// History store, restored from a snapshot when requested
	store := capture.NewStore(cfg.History.MaxHistory, logger)
	if cfg.History.LoadPath != "" {
		n, err := store.LoadFromFile(cfg.History.LoadPath)
		recorder.ObserveSnapshot("load", err)
		if err != nil {
			logger.WithCaller().Fatal("Failed to load history", logger.Args("path", cfg.History.LoadPath, "error", err))
		}
		recorder.SetHistorySize(store.Len())
		logger.Info("History restored", logger.Args("path", cfg.History.LoadPath, "requests", n))
	}

	var forced webhook.Provider
	if cfg.History.ForceParser != "" {
		// validated by config.Load
		forced, _ = webhook.ParseProvider(cfg.History.ForceParser)
	}

	feed := realtime.NewFeed(logger)
	receiver := ingestion.NewReceiver(store, ingestion.Options{
		ForceProvider: forced,
		Display:       display.NewConsole(geoIP),
		Metrics:       recorder,
		Feed:          feed,
	}, logger)

	// Initialize web server
	level := logging.ParseLevel(cfg.LogLevel)
	webServer := api.NewServer(&api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Production:     cfg.Server.Production,
		TrustedProxies: cfg.Server.TrustedProxies,
		RequestLogging: level <= pterm.LogLevelDebug,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	}, api.Handlers{
		Webhook:  handlers.NewWebhookHandler(receiver, cfg.Server.MaxBodyBytes, logger),
		History:  handlers.NewHistoryHandler(store, recorder, cfg.History.SavePath, logger),
		Realtime: handlers.NewRealtimeHandler(feed, logger),
		Metrics:  recorder.Handler(),
	}, logger)

	// Start web server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- webServer.Run()
	}()

	banner.PrintEndpoints(pterm.Sprintf("http://localhost:%d", cfg.Server.Port))

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		if err != nil {
			logger.WithCaller().Error("Web server error", logger.Args("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithCaller().Error("Web server shutdown error", logger.Args("error", err))
	} else {
		logger.Info("Web server stopped successfully")
	}

	if cfg.History.SavePath != "" {
		err := store.SaveToFile(cfg.History.SavePath)
		recorder.ObserveSnapshot("save", err)
		if err != nil {
			logger.WithCaller().Error("Failed to save history on exit",
				logger.Args("path", cfg.History.SavePath, "error", err))
		}
	}

	geoIP.Close()

	logger.Info("Webhook receiver stopped", logger.Args("stats", receiver.GetStats()))
}
