package vectorIndex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-rag/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	EnsureTable(ctx context.Context) error
	StartIngestRun(ctx context.Context, batchSize int) (uuid.UUID, error)
	FinishIngestRun(ctx context.Context, runID uuid.UUID, documents int, runErr error) error
	UpsertDocuments(ctx context.Context, runID uuid.UUID, docs []types.IndexedDocument, embeddings [][]float32) error
	SearchSimilar(ctx context.Context, embedding []float32, filter types.RetrievalFilter, topK int) ([]types.SourceNode, error)
}

type RepositoryImpl struct {
	logger    *slog.Logger
	pgpool    DB
	table     string
	dimension int
}

func NewRepository(pgpool DB, table string, dimension int, logger *slog.Logger) (*RepositoryImpl, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	return &RepositoryImpl{
		logger:    logger,
		pgpool:    pgpool,
		table:     table,
		dimension: dimension,
	}, nil
}

func (r *RepositoryImpl) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

// EnsureTable creates the embeddings table and its indexes if missing.
func (r *RepositoryImpl) EnsureTable(ctx context.Context) error {
	ctx, span := otel.Tracer("VectorIndexRepository").Start(ctx, "EnsureTable", trace.WithAttributes(
		attribute.String("db.table", r.table),
	))
	defer span.End()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id            TEXT PRIMARY KEY,
            content       TEXT        NOT NULL,
            metadata      JSONB       NOT NULL,
            embedding     VECTOR(%d)  NOT NULL,
            ingest_run_id UUID        REFERENCES ingest_runs(id) ON DELETE SET NULL,
            updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
        )`, r.ident(), r.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{r.table + "_embedding_idx"}.Sanitize(), r.ident()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((metadata->'complete_address'->>'country'))`,
			pgx.Identifier{r.table + "_country_idx"}.Sanitize(), r.ident()),
	}
	for _, stmt := range statements {
		if _, err := r.pgpool.Exec(ctx, stmt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ensure table failed")
			return fmt.Errorf("failed to ensure vector table %s: %w", r.table, err)
		}
	}
	span.SetStatus(codes.Ok, "vector table ready")
	return nil
}

func (r *RepositoryImpl) StartIngestRun(ctx context.Context, batchSize int) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO ingest_runs (table_name, batch_size) VALUES ($1, $2) RETURNING id`,
		r.table, batchSize,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start ingest run: %w", err)
	}
	return id, nil
}

func (r *RepositoryImpl) FinishIngestRun(ctx context.Context, runID uuid.UUID, documents int, runErr error) error {
	status := "completed"
	var errText *string
	if runErr != nil {
		status = "failed"
		msg := runErr.Error()
		errText = &msg
	}
	_, err := r.pgpool.Exec(ctx,
		`UPDATE ingest_runs SET status = $2, documents = $3, error = $4, finished_at = now() WHERE id = $1`,
		runID, status, documents, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run %s: %w", runID, err)
	}
	return nil
}

// UpsertDocuments copies one batch into a temp table and merges it, so a
// re-run replaces rows instead of failing on duplicate ids.
func (r *RepositoryImpl) UpsertDocuments(ctx context.Context, runID uuid.UUID, docs []types.IndexedDocument, embeddings [][]float32) error {
	ctx, span := otel.Tracer("VectorIndexRepository").Start(ctx, "UpsertDocuments", trace.WithAttributes(
		attribute.Int("documents.count", len(docs)),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "UpsertDocuments"))

	if len(docs) != len(embeddings) {
		err := fmt.Errorf("got %d documents and %d embeddings", len(docs), len(embeddings))
		span.RecordError(err)
		return err
	}

	rows := make([][]any, len(docs))
	for i, doc := range docs {
		if len(embeddings[i]) != r.dimension {
			err := fmt.Errorf("document %s: embedding dimension %d, want %d", doc.ID, len(embeddings[i]), r.dimension)
			span.RecordError(err)
			return err
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("document %s: marshal metadata: %w", doc.ID, err)
		}
		rows[i] = []any{string(doc.ID), doc.Text, meta, pgvector.NewVector(embeddings[i]), runID}
	}

	start := time.Now()
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			l.WarnContext(ctx, "Rollback failed", slog.Any("error", rbErr))
		}
	}()

	staging := pgx.Identifier{r.table + "_staging"}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE TEMP TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`,
		staging.Sanitize(), r.ident())); err != nil {
		r.recordDBError(ctx, span, err)
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, staging,
		[]string{"id", "content", "metadata", "embedding", "ingest_run_id"},
		pgx.CopyFromRows(rows))
	if err != nil {
		r.recordDBError(ctx, span, err)
		return fmt.Errorf("failed to copy documents: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, content, metadata, embedding, ingest_run_id)
        SELECT id, content, metadata, embedding, ingest_run_id FROM %s
        ON CONFLICT (id) DO UPDATE SET
            content = EXCLUDED.content,
            metadata = EXCLUDED.metadata,
            embedding = EXCLUDED.embedding,
            ingest_run_id = EXCLUDED.ingest_run_id,
            updated_at = now()`, r.ident(), staging.Sanitize())); err != nil {
		r.recordDBError(ctx, span, err)
		return fmt.Errorf("failed to merge documents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.recordDBError(ctx, span, err)
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	committed = true

	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	l.DebugContext(ctx, "Documents upserted", slog.Int64("rows", copied))
	span.SetStatus(codes.Ok, "documents upserted")
	return nil
}

// SearchSimilar returns the topK nearest documents by cosine distance within
// one country. Score is cosine similarity.
func (r *RepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, filter types.RetrievalFilter, topK int) ([]types.SourceNode, error) {
	ctx, span := otel.Tracer("VectorIndexRepository").Start(ctx, "SearchSimilar", trace.WithAttributes(
		attribute.Int("embedding.dimension", len(embedding)),
		attribute.String("filter.country", string(filter.Country)),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	if len(embedding) != r.dimension {
		err := fmt.Errorf("query embedding dimension %d, want %d", len(embedding), r.dimension)
		span.RecordError(err)
		return nil, err
	}

	query := fmt.Sprintf(`
        SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
        FROM %s
        WHERE metadata->'complete_address'->>'country' = $2
        ORDER BY embedding <=> $1
        LIMIT $3`, r.ident())

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, pgvector.NewVector(embedding), string(filter.Country), topK)
	if err != nil {
		r.recordDBError(ctx, span, err)
		return nil, fmt.Errorf("failed to search similar documents: %w", err)
	}
	defer rows.Close()

	var nodes []types.SourceNode
	for rows.Next() {
		var (
			id      string
			content string
			meta    []byte
			score   float64
		)
		if err := rows.Scan(&id, &content, &meta, &score); err != nil {
			r.recordDBError(ctx, span, err)
			return nil, fmt.Errorf("failed to scan similar document: %w", err)
		}
		node := types.SourceNode{ID: types.CID(id), Text: content, Score: score}
		if err := json.Unmarshal(meta, &node.Metadata); err != nil {
			return nil, fmt.Errorf("document %s: decode metadata: %w", id, err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		r.recordDBError(ctx, span, err)
		return nil, fmt.Errorf("error iterating similar documents: %w", err)
	}

	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("results.count", len(nodes)))
	span.SetStatus(codes.Ok, "similar documents found")
	return nodes, nil
}

func (r *RepositoryImpl) recordDBError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
}
