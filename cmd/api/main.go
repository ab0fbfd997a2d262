package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justsurfingit/jobsync/internal/auth"
	"github.com/justsurfingit/jobsync/internal/config"
	"github.com/justsurfingit/jobsync/internal/database"
	"github.com/justsurfingit/jobsync/internal/handlers"
	"github.com/justsurfingit/jobsync/internal/logger"
	"github.com/justsurfingit/jobsync/internal/services"
)

func main() {
	// 1. Configuration (.env is loaded by config.Load)
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	appLog := logger.New(cfg.Log)
	defer appLog.Sync()

	// 2. Database Connection
	db, err := database.Connect(cfg.Database, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	store := database.NewGateway(db)

	// 3. Core Services
	jobService := services.NewJobService(store, appLog)
	mergeService := services.NewMergeService(store, appLog)
	userService := services.NewUserService(store, appLog, cfg.Mail.Domain)
	matcherService := services.NewMatcherService(store)

	var extractor services.Extractor
	if cfg.AI.Enabled {
		llmService, err := services.NewLLMService(context.Background(), cfg.AI)
		if err != nil {
			appLog.WithError(err).Fatal("Failed to create Gemini client")
		}
		extractor = llmService
	} else {
		appLog.Warn("AI extraction disabled, inbound emails will only be stored")
	}
	emailService := services.NewEmailService(store, extractor, matcherService, userService, cfg.Mail, cfg.AI, appLog)

	// 4. Identity
	var verifier auth.TokenVerifier = auth.GoogleVerifier{Audience: cfg.Auth.GoogleClientID}
	if cfg.Auth.DevSubject != "" {
		appLog.WithField("subject", cfg.Auth.DevSubject).Warn("token verification bypassed")
		verifier = auth.DevVerifier{Subject: cfg.Auth.DevSubject}
	}

	// 5. Router & Server
	router := handlers.NewRouter(cfg, handlers.Services{
		Jobs:     jobService,
		Merges:   mergeService,
		Users:    userService,
		Emails:   emailService,
		Verifier: verifier,
	}, appLog)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.WithFields(logger.Fields{"port": cfg.Server.Port, "mode": cfg.Server.Mode}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.WithError(err).Error("Server forced to shutdown")
	}

	// Let queued email extractions finish; each is bounded by its own timeout.
	emailService.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	appLog.Info("Server exited")
}
