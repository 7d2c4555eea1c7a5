package weather

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-itinerary-rag/app/observability/metrics"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service provides optional weather context for an itinerary. It never fails
// the caller: any problem yields a nil summary.
type Service interface {
	Fetch(ctx context.Context, lat, lng float64, params types.TripParams) []types.WeatherSample
	WindowSummary(ctx context.Context, lat, lng float64, params types.TripParams) *types.WeatherSummary
}

type ServiceImpl struct {
	logger   *slog.Logger
	provider Provider
	enabled  bool
}

func NewService(provider Provider, enabled bool, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		provider: provider,
		enabled:  enabled && provider != nil,
	}
}

// Fetch returns the forecast samples inside the trip window. Failures are
// logged and yield an empty slice.
func (s *ServiceImpl) Fetch(ctx context.Context, lat, lng float64, params types.TripParams) []types.WeatherSample {
	if !s.enabled {
		return nil
	}
	l := s.logger.With(slog.String("method", "Fetch"), slog.String("date", params.Date))

	start, err := types.ParseTimeLabel(params.StartTime)
	if err != nil {
		s.fallback(ctx, l, "invalid_window", err)
		return nil
	}
	end, err := types.ParseTimeLabel(params.EndTime)
	if err != nil {
		s.fallback(ctx, l, "invalid_window", err)
		return nil
	}

	samples, err := s.provider.HourlyForecast(ctx, lat, lng, params.Date)
	if err != nil {
		s.fallback(ctx, l, "fetch_failed", err)
		return nil
	}
	return FilterWindow(samples, start, end)
}

func (s *ServiceImpl) WindowSummary(ctx context.Context, lat, lng float64, params types.TripParams) *types.WeatherSummary {
	if !s.enabled {
		return nil
	}
	summary := Aggregate(s.Fetch(ctx, lat, lng, params))
	if summary == nil {
		s.logger.DebugContext(ctx, "No weather samples in trip window", slog.String("date", params.Date))
	}
	return summary
}

func (s *ServiceImpl) fallback(ctx context.Context, l *slog.Logger, reason string, err error) {
	l.WarnContext(ctx, "Continuing without weather context", slog.String("reason", reason), slog.Any("error", err))
	metrics.Get().WeatherFallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
