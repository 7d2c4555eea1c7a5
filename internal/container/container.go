package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-itinerary-rag/app/db"
	"github.com/FACorreiaa/go-itinerary-rag/config"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/dataset"
	generativeAI "github.com/FACorreiaa/go-itinerary-rag/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/ingest"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/itinerary"
	vectorIndex "github.com/FACorreiaa/go-itinerary-rag/internal/api/vector_index"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/weather"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	Datasets         *dataset.RepositoryImpl
	Gateway          *vectorIndex.GatewayImpl
	IngestService    *ingest.ServiceImpl
	ItineraryService *itinerary.ServiceImpl
	ItineraryHandler *itinerary.Handler
}

// NewContainer connects to Postgres, applies migrations and wires the
// itinerary pipeline.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	c, err := newContainer(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func newContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*Container, error) {
	aiClient, err := generativeAI.NewAIClient(ctx, generativeAI.ClientConfig{
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Dimension:      cfg.VectorStore.Dimension,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", slog.Any("error", err))
		return nil, err
	}

	vectorRepo, err := vectorIndex.NewRepository(pool, cfg.VectorStore.Table, cfg.VectorStore.Dimension, logger)
	if err != nil {
		logger.Error("Failed to initialize vector repository", slog.Any("error", err))
		return nil, err
	}
	gateway := vectorIndex.NewGateway(vectorRepo, aiClient, aiClient, vectorIndex.GatewayOptions{
		EmbedBatchSize:   cfg.VectorStore.EmbedBatchSize,
		EmbedWorkers:     cfg.VectorStore.EmbedWorkers,
		RetrievalTimeout: cfg.Retrieval.Timeout,
	}, logger)

	datasets := dataset.NewRepository(cfg.Dataset.Path, cfg.Dataset.CacheTTL, logger)

	var weatherProvider weather.Provider
	if cfg.Weather.Enabled && cfg.Weather.APIKey != "" {
		weatherProvider = weather.NewClient(weather.ClientConfig{
			BaseURL:  cfg.Weather.BaseURL,
			APIKey:   cfg.Weather.APIKey,
			Timeout:  cfg.Weather.Timeout,
			CacheTTL: cfg.Weather.CacheTTL,
		}, logger)
	} else if cfg.Weather.Enabled {
		logger.Warn("VISUAL_CROSSING_API_KEY is not set, itineraries will be generated without weather")
	}
	weatherService := weather.NewService(weatherProvider, cfg.Weather.Enabled, logger)

	itineraryService := itinerary.NewService(gateway, datasets, weatherService, cfg.Retrieval.TopK,
		itinerary.ExponentialRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.InitialInterval, cfg.Retry.MaxInterval, cfg.Retry.Jitter),
		logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		Datasets:         datasets,
		Gateway:          gateway,
		IngestService:    ingest.NewService(datasets, gateway, cfg.VectorStore.IngestBatchSize, logger),
		ItineraryService: itineraryService,
		ItineraryHandler: itinerary.NewHandler(itineraryService, logger),
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
