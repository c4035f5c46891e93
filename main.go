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

	"github.com/Emmanuel1440/task-manager-api/internal/api"
	"github.com/Emmanuel1440/task-manager-api/internal/auth"
	"github.com/Emmanuel1440/task-manager-api/internal/config"
	"github.com/Emmanuel1440/task-manager-api/internal/database"
	"github.com/Emmanuel1440/task-manager-api/internal/logger"
	"github.com/Emmanuel1440/task-manager-api/internal/monitoring"
	"github.com/Emmanuel1440/task-manager-api/internal/services"
	"github.com/Emmanuel1440/task-manager-api/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, eventService)
	taskService := services.NewTaskService(db, eventService)

	// Set up and run the background sweeper
	sweeper := monitoring.NewSweeper(taskService, eventService, cfg.SweepInterval)
	go sweeper.Run()

	// Set up router
	router := api.NewRouter(cfg.CORSOrigin, tokens, hub, userService, taskService, eventService)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
