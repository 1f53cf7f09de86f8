package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"memory-portal/internal/api"
	"memory-portal/internal/avatar"
	"memory-portal/internal/config"
	"memory-portal/internal/db"
	"memory-portal/internal/persona"
	"memory-portal/internal/profile"
	"memory-portal/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zl, _ := zap.NewProduction()
		zl.Fatal("failed to load config", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.Server.Debug {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.Database.Path))
	}
	defer database.Close()

	personaService, err := persona.New(
		cfg.LLM.BaseURL,
		cfg.LLM.Token,
		cfg.LLM.Model,
		database,
		logger,
		cfg.LLM.MaxContextTokens,
	)
	if err != nil {
		logger.Fatal("failed to initialize persona service", zap.Error(err))
	}

	talkClient, err := avatar.NewClient(
		cfg.Avatar.BaseURL,
		cfg.Avatar.APIKey,
		avatar.WithVoice(cfg.Avatar.VoiceID),
	)
	if err != nil {
		logger.Fatal("failed to initialize avatar client", zap.Error(err))
	}

	// Polling outlives individual requests; it stops with this context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := avatar.NewRegistry()
	orchestrator := avatar.NewOrchestrator(
		ctx,
		talkClient,
		registry,
		database,
		logger,
		cfg.Avatar.PollInterval,
		cfg.Avatar.MaxAttempts,
	)

	profiles := profile.New(database, logger)
	chat := session.New(database, personaService, profiles, orchestrator, logger)

	handler := api.NewHandler(database, chat, profiles, orchestrator, registry, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
	}))
	handler.Register(e.Group("/api"))

	go func() {
		logger.Info("starting server", zap.String("address", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Stop outstanding polling loops before the process exits.
	cancel()
	orchestrator.Wait()
}
