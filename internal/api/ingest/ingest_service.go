package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-rag/internal/api/dataset"
	vectorIndex "github.com/FACorreiaa/go-itinerary-rag/internal/api/vector_index"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service loads the destinations dataset into the vector store.
type Service interface {
	Run(ctx context.Context) (*types.IngestReport, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	records   dataset.Repository
	gateway   vectorIndex.Gateway
	batchSize int
}

func NewService(records dataset.Repository, gateway vectorIndex.Gateway, batchSize int, logger *slog.Logger) *ServiceImpl {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &ServiceImpl{
		logger:    logger,
		records:   records,
		gateway:   gateway,
		batchSize: batchSize,
	}
}

// Run reads every record, validates and renders all of them, then hands the
// documents to the gateway. Nothing is written if any record is malformed.
func (s *ServiceImpl) Run(ctx context.Context) (*types.IngestReport, error) {
	ctx, span := otel.Tracer("IngestService").Start(ctx, "Run", trace.WithAttributes(
		attribute.Int("batch_size", s.batchSize),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "Run"))
	start := time.Now()

	records, err := s.records.All(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset unavailable")
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	l.InfoContext(ctx, "Dataset read", slog.Int("records", len(records)))

	docs, err := BuildDocuments(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed record")
		return nil, err
	}

	report, err := s.gateway.Ingest(ctx, docs, s.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return report, err
	}

	l.InfoContext(ctx, "Ingestion completed",
		slog.String("run_id", report.RunID),
		slog.Int("documents", report.Documents),
		slog.Int("batches", report.Batches),
		slog.Duration("elapsed", time.Since(start)))
	span.SetStatus(codes.Ok, "ingested")
	return report, nil
}
