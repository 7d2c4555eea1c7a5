package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

var _ Provider = (*Client)(nil)

// Provider returns the hourly forecast of one day at a location.
type Provider interface {
	HourlyForecast(ctx context.Context, lat, lng float64, date string) ([]types.WeatherSample, error)
}

type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client talks to the Visual Crossing timeline API. Forecasts are cached per
// location and date.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *cache.Cache
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

type timelineResponse struct {
	Days []struct {
		Hours []struct {
			Datetime   string  `json:"datetime"`
			Temp       float64 `json:"temp"`
			FeelsLike  float64 `json:"feelslike"`
			PrecipProb float64 `json:"precipprob"`
			Conditions string  `json:"conditions"`
			CloudCover float64 `json:"cloudcover"`
			UVIndex    float64 `json:"uvindex"`
		} `json:"hours"`
	} `json:"days"`
}

func (c *Client) forecastURL(lat, lng float64, date string) string {
	loc := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("include", "hours")
	q.Set("unitGroup", "us")
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, loc, url.PathEscape(date), q.Encode())
}

func (c *Client) HourlyForecast(ctx context.Context, lat, lng float64, date string) ([]types.WeatherSample, error) {
	ctx, span := otel.Tracer("WeatherClient").Start(ctx, "HourlyForecast", trace.WithAttributes(
		attribute.Float64("location.lat", lat),
		attribute.Float64("location.lng", lng),
		attribute.String("date", date),
	))
	defer span.End()

	cacheKey := fmt.Sprintf("%f:%f:%s", lat, lng, date)
	if cached, found := c.cache.Get(cacheKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.WeatherSample), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL(lat, lng, date), nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: build request: %v", types.ErrWeatherFetch, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("%w: %v", types.ErrWeatherFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", types.ErrWeatherFetch, resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return nil, err
	}

	var payload timelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("%w: decode: %v", types.ErrWeatherFetch, err)
	}

	// Only the requested day; later days repeat the same hour labels.
	var samples []types.WeatherSample
	if len(payload.Days) > 0 {
		for _, h := range payload.Days[0].Hours {
			label, err := types.ParseTimeLabel(h.Datetime)
			if err != nil {
				c.logger.DebugContext(ctx, "Skipping hour with unreadable time", slog.String("datetime", h.Datetime))
				continue
			}
			samples = append(samples, types.WeatherSample{
				Time:       label,
				Temp:       h.Temp,
				FeelsLike:  h.FeelsLike,
				PrecipProb: h.PrecipProb,
				Conditions: h.Conditions,
				CloudCover: h.CloudCover,
				UVIndex:    h.UVIndex,
			})
		}
	}

	c.cache.SetDefault(cacheKey, samples)
	span.SetAttributes(attribute.Int("samples.count", len(samples)))
	span.SetStatus(codes.Ok, "forecast fetched")
	return samples, nil
}
