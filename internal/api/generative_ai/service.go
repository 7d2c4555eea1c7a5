package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var (
	_ Generator = (*AIClient)(nil)
	_ Embedder  = (*AIClient)(nil)
)

// Generator produces an answer from a system instruction and a transcript.
type Generator interface {
	Generate(ctx context.Context, system string, messages []types.ChatMessage) (string, error)
}

// Embedder turns texts into fixed size vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	Dimension() int
}

type ClientConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Dimension      int
	Temperature    float32
	MaxTokens      int32
	Timeout        time.Duration
	// BaseURL overrides the Gemini endpoint, used by tests.
	BaseURL string
}

type AIClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	dimension      int
	temperature    float32
	maxTokens      int32
	timeout        time.Duration
	logger         *slog.Logger
}

func NewAIClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	if cfg.APIKey == "" {
		err := errors.New("GOOGLE_GEMINI_API_KEY is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	span.SetStatus(codes.Ok, "Gemini client created")
	return &AIClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      cfg.Dimension,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        cfg.Timeout,
		logger:         logger,
	}, nil
}

func (ai *AIClient) Dimension() int { return ai.dimension }

// Generate sends the transcript as a single request. System messages are
// folded into the system instruction and assistant turns become model turns.
func (ai *AIClient) Generate(ctx context.Context, system string, messages []types.ChatMessage) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("model", ai.model),
		attribute.Int("messages.count", len(messages)),
	))
	defer span.End()

	instruction, contents := toContents(system, messages)
	if len(contents) == 0 {
		err := errors.New("no user content to send")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(ai.temperature),
		MaxOutputTokens: ai.maxTokens,
	}
	if instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}

	if ai.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := ai.client.Models.GenerateContent(ctx, ai.model, contents, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "GenerateContent failed")
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		err := errors.New("gemini returned an empty answer")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	ai.logger.DebugContext(ctx, "Generated answer",
		slog.String("model", ai.model),
		slog.Int("chars", len(text)),
		slog.Duration("latency", time.Since(start)))
	span.SetStatus(codes.Ok, "Content generated")
	return text, nil
}

// EmbedTexts embeds texts in one request and checks every vector has the
// configured dimension.
func (ai *AIClient) EmbedTexts(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "EmbedTexts", trace.WithAttributes(
		attribute.String("model", ai.embeddingModel),
		attribute.Int("texts.count", len(texts)),
		attribute.String("task_type", taskType),
	))
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	if ai.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.timeout)
		defer cancel()
	}

	resp, err := ai.client.Models.EmbedContent(ctx, ai.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(int32(ai.dimension)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "EmbedContent failed")
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		err := fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != ai.dimension {
			err := fmt.Errorf("embedding %d has dimension %d, want %d", i, embeddingLen(e), ai.dimension)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		vectors[i] = e.Values
	}
	span.SetStatus(codes.Ok, "Texts embedded")
	return vectors, nil
}

func embeddingLen(e *genai.ContentEmbedding) int {
	if e == nil {
		return 0
	}
	return len(e.Values)
}
