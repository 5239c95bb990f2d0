package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/api"
	"github.com/isdelr/sitepulse/internal/auth"
	"github.com/isdelr/sitepulse/internal/config"
	"github.com/isdelr/sitepulse/internal/database"
	"github.com/isdelr/sitepulse/internal/logger"
	"github.com/isdelr/sitepulse/internal/metrics"
	"github.com/isdelr/sitepulse/internal/monitoring"
	"github.com/isdelr/sitepulse/internal/services"
	"github.com/isdelr/sitepulse/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up monitors
	tel := services.NewTelemetry(cfg.NotificationDismiss, cfg.TelemetryOptions()...)
	monitors := tel.Monitors()

	operatorService := services.NewOperatorService(db)
	if cfg.AdminEmail != "" {
		if err := operatorService.EnsureOperator(cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("Failed to provision admin operator")
		}
	}
	authenticator := auth.New(cfg.JWTSecret, cfg.TokenTTL)
	if !authenticator.Enabled() {
		log.Warn().Msg("JWT_SECRET is not set, operator routes are open")
	}

	// Mirror recorded events into SQLite
	var eventService services.EventServiceProvider
	var mirror *services.EventService
	var stopMirror func()
	if cfg.MirrorEnabled {
		mirror = services.NewEventService(db, cfg.MirrorLimit)
		stopMirror = mirror.Mirror(monitors)
		go mirror.Run()
		eventService = mirror
	}

	// Set up WebSocket Hub and snapshot publisher
	hub := websocket.NewHub()
	go hub.Run()

	publisher := websocket.NewPublisher(hub, cfg.SnapshotDebounce)
	sources := make([]metrics.SnapshotSource, 0, len(monitors))
	sweepables := make([]monitoring.Sweepable, 0, len(monitors))
	for _, m := range monitors {
		publisher.Watch(m)
		sources = append(sources, m)
		sweepables = append(sweepables, m)
	}
	collector := metrics.NewCollector(sources)
	registry := metrics.NewRegistry(collector)

	// Set up and run the retention sweeper
	sweeper := monitoring.NewRetentionSweeper(cfg.SweepSchedule, sweepables)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweeper")
	}

	// Set up and run the background host sampler
	hostSampler := monitoring.NewHostSampler(tel.Performance, tel.Logs, cfg.HostSampleInterval)
	go hostSampler.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Telemetry:      tel,
		Events:         eventService,
		Operators:      operatorService,
		Auth:           authenticator,
		Hub:            hub,
		Publisher:      publisher,
		Gatherer:       registry,
		Observer:       collector,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.SecureCookies,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	hostSampler.Stop()
	sweeper.Stop(5 * time.Second)
	publisher.Close()
	if mirror != nil {
		stopMirror()
		mirror.Stop(5 * time.Second)
	}
	hub.Stop()
	tel.Close()

	log.Info().Msg("Server exiting")
}
