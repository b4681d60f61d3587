// Command device runs the device-side sync engine headless: local store,
// sync client and lifecycle scheduler against a running server. The mobile
// app embeds the same packages; this binary exists for development and manual
// testing.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/scheduler"
	"github.com/fieldledger/fieldledger/internal/store"
	"github.com/fieldledger/fieldledger/internal/syncclient"
)

func main() {
	godotenv.Load()

	apiURL := getEnv("API_URL", "http://localhost:8080")
	statePath := getEnv("STATE_FILE", "fieldledger.db")
	token := os.Getenv("DEVICE_TOKEN")
	userID := os.Getenv("USER_ID")
	workspaceID := os.Getenv("WORKSPACE_ID")
	deviceID := os.Getenv("DEVICE_ID")
	if token == "" || userID == "" || workspaceID == "" || deviceID == "" {
		log.Fatal("DEVICE_TOKEN, USER_ID, WORKSPACE_ID and DEVICE_ID are required")
	}

	logger := logrus.New()

	st, err := store.Open(statePath, logger)
	if err != nil {
		log.Fatalf("Failed to open state file: %v", err)
	}
	defer st.Close()

	backend := syncclient.NewHTTPBackend(apiURL, func(ctx context.Context) (string, error) {
		return token, nil
	}, nil)

	client := syncclient.NewClient(st, backend, deviceID, logger)
	client.SetSession(userID, workspaceID)

	sched := scheduler.New(client, scheduler.Config{
		Interval: getDuration("SYNC_INTERVAL", 5*time.Minute),
		Cooldown: getDuration("SYNC_COOLDOWN", 30*time.Second),
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	sched.Stop()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
