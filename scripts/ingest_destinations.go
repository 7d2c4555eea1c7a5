package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appLogger "github.com/FACorreiaa/go-itinerary-rag/app/logger"
	"github.com/FACorreiaa/go-itinerary-rag/config"
	"github.com/FACorreiaa/go-itinerary-rag/internal/container"
)

// Loads the destinations dataset into the vector store:
//
//	go run ./scripts
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := appLogger.New(cfg.Mode, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		logger.Error("Failed to build application container", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Close()

	if !c.WaitForDB(ctx) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	report, err := c.IngestService.Run(ctx)
	if err != nil {
		logger.Error("Ingestion failed", slog.Any("error", err))
		c.Close()
		os.Exit(1)
	}

	logger.Info("Destinations ingested",
		slog.String("run_id", report.RunID),
		slog.Int("documents", report.Documents),
		slog.Int("batches", report.Batches),
		slog.String("table", cfg.VectorStore.Table))
}
