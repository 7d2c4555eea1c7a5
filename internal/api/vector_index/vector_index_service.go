package vectorIndex

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-itinerary-rag/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-itinerary-rag/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Gateway = (*GatewayImpl)(nil)

var citationPattern = regexp.MustCompile(`\[id:\s*([^\]\s]+)\s*\]`)

const answerInstruction = `Answer using only the destinations in the context below.
Each destination starts with a marker such as [id:123]. Whenever you mention a destination, cite it with its marker exactly as written.`

// Gateway owns the vector store: bulk ingestion and retrieval followed by
// generation, either one-shot or conditioned on a chat transcript.
type Gateway interface {
	Ingest(ctx context.Context, docs []types.IndexedDocument, batchSize int) (*types.IngestReport, error)
	Retrieve(ctx context.Context, query string, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error)
	ChatRetrieve(ctx context.Context, query string, transcript []types.ChatMessage, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error)
}

type GatewayOptions struct {
	EmbedBatchSize   int
	EmbedWorkers     int
	RetrievalTimeout time.Duration
}

type GatewayImpl struct {
	logger    *slog.Logger
	repo      Repository
	embedder  generativeAI.Embedder
	generator generativeAI.Generator
	opts      GatewayOptions
}

func NewGateway(repo Repository, embedder generativeAI.Embedder, generator generativeAI.Generator, opts GatewayOptions, logger *slog.Logger) *GatewayImpl {
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 100
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 4
	}
	return &GatewayImpl{
		logger:    logger,
		repo:      repo,
		embedder:  embedder,
		generator: generator,
		opts:      opts,
	}
}

// Ingest embeds and stores docs in batches of batchSize. Any failing batch
// fails the whole run and the run row records the error.
func (g *GatewayImpl) Ingest(ctx context.Context, docs []types.IndexedDocument, batchSize int) (*types.IngestReport, error) {
	ctx, span := otel.Tracer("VectorIndexGateway").Start(ctx, "Ingest", trace.WithAttributes(
		attribute.Int("documents.count", len(docs)),
		attribute.Int("batch_size", batchSize),
	))
	defer span.End()
	l := g.logger.With(slog.String("method", "Ingest"))

	if batchSize <= 0 {
		batchSize = 1000
	}

	if err := g.repo.EnsureTable(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure table failed")
		return nil, err
	}
	runID, err := g.repo.StartIngestRun(ctx, batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start ingest run failed")
		return nil, err
	}
	l = l.With(slog.String("run_id", runID.String()))

	report := &types.IngestReport{RunID: runID.String()}
	var runErr error
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		embeddings, err := g.embedDocuments(ctx, batch)
		if err != nil {
			runErr = fmt.Errorf("batch %d: %w", report.Batches, err)
			break
		}
		if err := g.repo.UpsertDocuments(ctx, runID, batch, embeddings); err != nil {
			runErr = fmt.Errorf("batch %d: %w", report.Batches, err)
			break
		}
		report.Batches++
		report.Documents += len(batch)
		metrics.Get().IngestedDocumentsTotal.Add(ctx, int64(len(batch)))
		l.InfoContext(ctx, "Batch ingested", slog.Int("batch", report.Batches), slog.Int("documents", report.Documents))
	}

	if err := g.repo.FinishIngestRun(ctx, runID, report.Documents, runErr); err != nil {
		l.ErrorContext(ctx, "Failed to record ingest run result", slog.Any("error", err))
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "ingest failed")
		return report, fmt.Errorf("ingest run %s failed: %w", runID, runErr)
	}

	span.SetStatus(codes.Ok, "ingest completed")
	return report, nil
}

// embedDocuments embeds a batch in parallel chunks, keeping input order.
func (g *GatewayImpl) embedDocuments(ctx context.Context, docs []types.IndexedDocument) ([][]float32, error) {
	out := make([][]float32, len(docs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.EmbedWorkers)

	for start := 0; start < len(docs); start += g.opts.EmbedBatchSize {
		end := min(start+g.opts.EmbedBatchSize, len(docs))
		eg.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, d.Text)
			}
			vectors, err := g.embedder.EmbedTexts(egCtx, texts, generativeAI.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, end, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed documents %d-%d: got %d vectors", start, end, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GatewayImpl) Retrieve(ctx context.Context, query string, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error) {
	ctx, span := otel.Tracer("VectorIndexGateway").Start(ctx, "Retrieve", trace.WithAttributes(
		attribute.String("filter.country", string(filter.Country)),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	resp, err := g.retrieveAndGenerate(ctx, query, []types.ChatMessage{{Role: types.RoleUser, Content: query}}, filter, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "retrieved")
	return resp, nil
}

// ChatRetrieve retrieves with the latest query and answers with the whole
// transcript as conversation history.
func (g *GatewayImpl) ChatRetrieve(ctx context.Context, query string, transcript []types.ChatMessage, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error) {
	ctx, span := otel.Tracer("VectorIndexGateway").Start(ctx, "ChatRetrieve", trace.WithAttributes(
		attribute.String("filter.country", string(filter.Country)),
		attribute.Int("top_k", topK),
		attribute.Int("transcript.length", len(transcript)),
	))
	defer span.End()

	resp, err := g.retrieveAndGenerate(ctx, query, transcript, filter, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat retrieve failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "retrieved")
	return resp, nil
}

func (g *GatewayImpl) retrieveAndGenerate(ctx context.Context, query string, messages []types.ChatMessage, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error) {
	l := g.logger.With(slog.String("method", "retrieveAndGenerate"), slog.String("country", string(filter.Country)))

	if !filter.Country.Valid() {
		return nil, types.Permanent(fmt.Errorf("%w: %q", types.ErrInvalidCountry, filter.Country))
	}
	if topK <= 0 {
		topK = 2
	}
	if g.opts.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RetrievalTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.Get().RetrievalDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("country", string(filter.Country))))
	}()

	vectors, err := g.embedder.EmbedTexts(ctx, []string{query}, generativeAI.TaskRetrievalQuery)
	if err != nil {
		return nil, retrievalFailure("embed query", err)
	}
	if len(vectors) != 1 {
		return nil, retrievalFailure("embed query", fmt.Errorf("got %d vectors", len(vectors)))
	}

	nodes, err := g.repo.SearchSimilar(ctx, vectors[0], filter, topK)
	if err != nil {
		return nil, retrievalFailure("search", err)
	}
	l.DebugContext(ctx, "Retrieved source nodes", slog.Int("count", len(nodes)))

	answer, err := g.generator.Generate(ctx, buildContextInstruction(nodes), messages)
	if err != nil {
		return nil, retrievalFailure("generate", err)
	}

	citations, dropped := parseCitations(answer, nodes)
	if dropped > 0 {
		l.WarnContext(ctx, "Ignored citations outside the retrieved documents", slog.Int("dropped", dropped))
	}

	return &types.RetrievalResponse{
		Response:    answer,
		Citations:   citations,
		SourceNodes: nodes,
	}, nil
}

func retrievalFailure(stage string, err error) error {
	return types.Transient(fmt.Errorf("%w: %s: %w", types.ErrRetrievalFailure, stage, err))
}

func buildContextInstruction(nodes []types.SourceNode) string {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nContext information is below.\n---------------------\n")
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[id:%s]\n%s", n.ID, n.Text)
	}
	b.WriteString("\n---------------------")
	return b.String()
}

// parseCitations extracts [id:...] markers that point at retrieved nodes.
// Markers for anything else are counted as dropped.
func parseCitations(answer string, nodes []types.SourceNode) ([]types.Citation, int) {
	known := make(map[types.CID]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}

	var (
		citations []types.Citation
		dropped   int
	)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		id := types.CID(m[1])
		if _, ok := known[id]; !ok {
			dropped++
			continue
		}
		citations = append(citations, types.Citation{Marker: m[0], ID: id})
	}
	return citations, dropped
}
