package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/config"
	"github.com/fieldledger/fieldledger/internal/database"
	"github.com/fieldledger/fieldledger/internal/handlers"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	entityRepo := repositories.NewPostgresEntityRepository(postgresPool)
	syncLogRepo := repositories.NewPostgresSyncLogRepository(postgresPool)
	workspaceRepo := repositories.NewPostgresWorkspaceRepository(postgresPool)
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// Services
	pushService := services.NewPushService(entityRepo, syncLogRepo, logger)
	pullService := services.NewPullService(entityRepo, syncLogRepo, logger)
	tokenService := services.NewTokenService(cfg.JWTSecret)

	router := handlers.NewRouter(handlers.Deps{
		Pusher:     pushService,
		Puller:     pullService,
		Tokens:     tokenService,
		Workspaces: workspaceRepo,
		Devices:    deviceRepo,
		Presence:   presenceRepo,
		Logger:     logger,
	})

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
