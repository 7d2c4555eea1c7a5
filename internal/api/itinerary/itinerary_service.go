package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-rag/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/dataset"
	vectorIndex "github.com/FACorreiaa/go-itinerary-rag/internal/api/vector_index"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/weather"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

const (
	modeItinerary = "itinerary"
	modeChat      = "chat"
)

// Service runs the itinerary pipelines. Neither method returns an error: once
// every attempt failed the result carries the failure payload instead.
type Service interface {
	GenerateItinerary(ctx context.Context, req types.ItineraryRequest) *types.ItineraryResult
	Chat(ctx context.Context, req types.ChatItineraryRequest) *types.ItineraryResult
}

// RetryPolicy bounds the pipeline attempts. NewBackOff is called once per
// request because backoff state is not safe to share.
type RetryPolicy struct {
	MaxAttempts uint
	NewBackOff  func() backoff.BackOff
}

// ExponentialRetryPolicy waits initial, 2*initial, ... capped at maxInterval,
// each wait randomized by +/- jitter.
func ExponentialRetryPolicy(maxAttempts uint, initial, maxInterval time.Duration, jitter float64) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			if initial > 0 {
				b.InitialInterval = initial
			}
			if maxInterval > 0 {
				b.MaxInterval = maxInterval
			}
			b.RandomizationFactor = jitter
			return b
		},
	}
}

type ServiceImpl struct {
	logger  *slog.Logger
	gateway vectorIndex.Gateway
	records dataset.Repository
	weather weather.Service
	topK    int
	retry   RetryPolicy
}

func NewService(gateway vectorIndex.Gateway, records dataset.Repository, weatherService weather.Service,
	topK int, retry RetryPolicy, logger *slog.Logger) *ServiceImpl {
	if topK <= 0 {
		topK = 2
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 4
	}
	if retry.NewBackOff == nil {
		retry.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	}
	return &ServiceImpl{
		logger:  logger,
		gateway: gateway,
		records: records,
		weather: weatherService,
		topK:    topK,
		retry:   retry,
	}
}

func (s *ServiceImpl) GenerateItinerary(ctx context.Context, req types.ItineraryRequest) *types.ItineraryResult {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "GenerateItinerary", trace.WithAttributes(
		attribute.String("country", string(req.Country)),
		attribute.String("date", req.Date),
		attribute.Bool("weather.requested", req.HasCoordinates()),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "GenerateItinerary"), slog.String("country", string(req.Country)))

	return s.withRetry(ctx, span, l, modeItinerary, func() (*types.ItineraryResult, error) {
		return s.runItinerary(ctx, l, req)
	})
}

func (s *ServiceImpl) Chat(ctx context.Context, req types.ChatItineraryRequest) *types.ItineraryResult {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.String("country", string(req.Country)),
		attribute.Int("history.length", len(req.History)),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "Chat"), slog.String("country", string(req.Country)))

	return s.withRetry(ctx, span, l, modeChat, func() (*types.ItineraryResult, error) {
		return s.runChat(ctx, req)
	})
}

// withRetry re-runs the whole pipeline until it succeeds, fails permanently
// or runs out of attempts.
func (s *ServiceImpl) withRetry(ctx context.Context, span trace.Span, l *slog.Logger, mode string,
	run func() (*types.ItineraryResult, error)) *types.ItineraryResult {
	start := time.Now()
	modeAttr := attribute.String("mode", mode)
	attempt := 0

	result, err := backoff.Retry(ctx, func() (*types.ItineraryResult, error) {
		attempt++
		metrics.Get().PipelineAttemptsTotal.Add(ctx, 1, metric.WithAttributes(modeAttr))
		res, err := run()
		if err == nil {
			return res, nil
		}
		transient := types.IsTransient(err)
		l.WarnContext(ctx, "Pipeline attempt failed",
			slog.Int("attempt", attempt),
			slog.Bool("transient", transient),
			slog.Any("error", err))
		if !transient {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(s.retry.NewBackOff()),
		backoff.WithMaxTries(s.retry.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
	)

	outcome := "success"
	if err != nil {
		outcome = "failed"
		result = types.NewFailedItineraryResult(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "all attempts failed")
		l.ErrorContext(ctx, "Pipeline failed", slog.Int("attempts", attempt), slog.Any("error", err))
	} else {
		span.SetStatus(codes.Ok, "itinerary generated")
		l.InfoContext(ctx, "Pipeline succeeded",
			slog.Int("attempts", attempt),
			slog.Int("destinations", len(result.Metadata)),
			slog.Bool("weather", result.Weather != nil))
	}

	span.SetAttributes(attribute.Int("attempts", attempt), attribute.String("outcome", outcome))
	attrs := metric.WithAttributes(modeAttr, attribute.String("outcome", outcome))
	metrics.Get().ItineraryRequestsTotal.Add(ctx, 1, attrs)
	metrics.Get().PipelineDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	return result
}

func (s *ServiceImpl) runItinerary(ctx context.Context, l *slog.Logger, req types.ItineraryRequest) (*types.ItineraryResult, error) {
	filter, err := types.NewRetrievalFilter(string(req.Country))
	if err != nil {
		return nil, types.Permanent(err)
	}

	var summary *types.WeatherSummary
	if req.HasCoordinates() && s.weather != nil {
		summary = s.weather.WindowSummary(ctx, *req.Lat, *req.Lng, req.TripParams)
		if summary == nil {
			l.DebugContext(ctx, "Generating without weather context")
		}
	}

	prompt, err := BuildItineraryPrompt(req.TripParams, weather.Summarize(summary))
	if err != nil {
		return nil, types.Permanent(err)
	}

	resp, err := s.gateway.Retrieve(ctx, prompt, filter, s.topK)
	if err != nil {
		return nil, err
	}

	records, err := s.reconcile(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &types.ItineraryResult{
		Response: resp.Response,
		Metadata: records,
		Weather:  summary,
	}, nil
}

func (s *ServiceImpl) runChat(ctx context.Context, req types.ChatItineraryRequest) (*types.ItineraryResult, error) {
	filter, err := types.NewRetrievalFilter(string(req.Country))
	if err != nil {
		return nil, types.Permanent(err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.Permanent(fmt.Errorf("%w: query is required", types.ErrInvalidRequest))
	}
	for i, m := range req.History {
		if err := m.Validate(); err != nil {
			return nil, types.Permanent(fmt.Errorf("%w: histories[%d]: %v", types.ErrInvalidRequest, i, err))
		}
	}

	system, err := BuildChatSystemPrompt(req.TripParams)
	if err != nil {
		return nil, types.Permanent(err)
	}
	transcript := types.NewChatTranscript(system, req.History, req.Query)

	resp, err := s.gateway.ChatRetrieve(ctx, req.Query, transcript, filter, s.topK)
	if err != nil {
		return nil, err
	}

	records, err := s.reconcile(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &types.ItineraryResult{
		Response: resp.Response,
		Metadata: records,
	}, nil
}

// reconcile resolves cited and retrieved ids back to full dataset records.
func (s *ServiceImpl) reconcile(ctx context.Context, resp *types.RetrievalResponse) ([]types.DestinationRecord, error) {
	records, err := s.records.FindByIDs(ctx, resp.ReferencedIDs())
	if err != nil {
		if errors.Is(err, types.ErrDataUnavailable) {
			return nil, types.Permanent(err)
		}
		return nil, fmt.Errorf("resolve destinations: %w", err)
	}
	if records == nil {
		records = []types.DestinationRecord{}
	}
	return records, nil
}
