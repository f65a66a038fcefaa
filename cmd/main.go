package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kubeasy-dev/kubeasy-backend/internal/catalog"
	redisclient "github.com/kubeasy-dev/kubeasy-backend/internal/clients/redis"
	"github.com/kubeasy-dev/kubeasy-backend/internal/db"
	"github.com/kubeasy-dev/kubeasy-backend/internal/handlers"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/middleware"
	"github.com/kubeasy-dev/kubeasy-backend/internal/observability"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/server"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
	"github.com/kubeasy-dev/kubeasy-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Env
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	catalogDir := utils.GetEnv("CHALLENGE_CATALOG_DIR", "./challenges", log)
	allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "kubeasy-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Challenge catalog
	challenges, err := catalog.Load(catalogDir, log)
	if err != nil {
		log.Fatal("Challenge catalog load failed", "error", err)
	}

	// Redis (optional: without it the demo flow degrades and realtime stays
	// in-process)
	var (
		sessionStore redisclient.SessionStore
		eventQueue   redisclient.EventQueue
		bus          redisclient.Bus
	)
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		if sessionStore, err = redisclient.NewSessionStore(log); err != nil {
			log.Fatal("Redis session store init failed", "error", err)
		}
		if eventQueue, err = redisclient.NewEventQueue(log); err != nil {
			log.Fatal("Redis event queue init failed", "error", err)
		}
		if bus, err = redisclient.NewBus(log); err != nil {
			log.Fatal("Redis realtime bus init failed", "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set; demo sessions disabled, realtime is single-instance")
	}

	// Realtime
	hub := realtime.NewHub(log)
	var emitter services.Emitter = &services.HubEmitter{Hub: hub}
	if bus != nil {
		if err := bus.StartForwarder(ctx, hub.Broadcast); err != nil {
			log.Fatal("Realtime bus forwarder failed", "error", err)
		}
		emitter = &services.BusEmitter{Bus: bus, Log: log}
	}

	// Repos
	userRepo := repos.NewUserRepo(thePG, log)
	apiTokenRepo := repos.NewApiTokenRepo(thePG, log)
	progressRepo := repos.NewProgressRepo(thePG, log)
	completionRepo := repos.NewCompletionRepo(thePG, log)
	xpRepo := repos.NewXpRepo(thePG, log)
	onboardingRepo := repos.NewOnboardingRepo(thePG, log)
	conversionRepo := repos.NewDemoConversionRepo(thePG, log)

	// Services
	tokenService := services.NewTokenService(thePG, log, userRepo, apiTokenRepo, jwtSecretKey)
	progressNotifier := services.NewProgressNotifier(emitter)
	onboardingNotifier := services.NewOnboardingNotifier(emitter)
	demoNotifier := services.NewDemoNotifier(log, eventQueue)
	progressService := services.NewProgressService(thePG, log, challenges, progressRepo, completionRepo, xpRepo, progressNotifier)
	onboardingService := services.NewOnboardingService(thePG, log, onboardingRepo, apiTokenRepo, progressRepo, completionRepo, onboardingNotifier)
	demoService := services.NewDemoService(log, sessionStore, challenges, conversionRepo, demoNotifier)

	// Handlers + middleware
	challengeHandler := handlers.NewChallengeHandler(log, progressService)
	onboardingHandler := handlers.NewOnboardingHandler(log, onboardingService)
	demoHandler := handlers.NewDemoHandler(log, demoService)
	streamHandler := handlers.NewStreamHandler(log, hub, eventQueue, demoService)
	authMiddleware := middleware.NewAuthMiddleware(log, tokenService)

	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:      allowOrigins,
		AuthMiddleware:    authMiddleware,
		ChallengeHandler:  challengeHandler,
		OnboardingHandler: onboardingHandler,
		DemoHandler:       demoHandler,
		StreamHandler:     streamHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
	if bus != nil {
		_ = bus.Close()
	}
	if eventQueue != nil {
		_ = eventQueue.Close()
	}
	if sessionStore != nil {
		_ = sessionStore.Close()
	}
	if otelShutdown != nil {
		_ = otelShutdown(shutdownCtx)
	}
}
