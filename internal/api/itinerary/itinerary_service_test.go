package itinerary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-rag/internal/api/dataset"
	"github.com/FACorreiaa/go-itinerary-rag/internal/api/weather"
	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Ingest(ctx context.Context, docs []types.IndexedDocument, batchSize int) (*types.IngestReport, error) {
	args := m.Called(ctx, docs, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.IngestReport), args.Error(1)
}

func (m *MockGateway) Retrieve(ctx context.Context, query string, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error) {
	args := m.Called(ctx, query, filter, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RetrievalResponse), args.Error(1)
}

func (m *MockGateway) ChatRetrieve(ctx context.Context, query string, transcript []types.ChatMessage, filter types.RetrievalFilter, topK int) (*types.RetrievalResponse, error) {
	args := m.Called(ctx, query, transcript, filter, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RetrievalResponse), args.Error(1)
}

type stubProvider struct {
	samples []types.WeatherSample
}

func (s *stubProvider) HourlyForecast(context.Context, float64, float64, string) ([]types.WeatherSample, error) {
	return s.samples, nil
}

const japanDataset = `[
  {"cid": "111", "title": "Senso-ji", "address": "Asakusa, Tokyo", "complete_address": {"country": "Japan"},
   "categories": ["Temple"], "review_count": 1, "review_rating": 4.5, "open_hours": {}, "latitude": 35.71, "longtitude": 139.79},
  {"cid": "222", "title": "Tsukiji Outer Market", "address": "Tsukiji, Tokyo", "complete_address": {"country": "Japan"},
   "categories": ["Market"], "review_count": 2, "review_rating": 4.3, "open_hours": {}, "latitude": 35.66, "longtitude": 139.77},
  {"cid": "333", "title": "Meiji Jingu", "address": "Shibuya, Tokyo", "complete_address": {"country": "Japan"},
   "categories": ["Shrine"], "review_count": 3, "review_rating": 4.6, "open_hours": {}, "latitude": 35.67, "longtitude": 139.69},
  {"cid": "444", "title": "Gyeongbokgung", "address": "Seoul", "complete_address": {"country": "South Korea"},
   "categories": ["Palace"], "review_count": 4, "review_rating": 4.6, "open_hours": {}, "latitude": 37.57, "longtitude": 126.97}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDataset(t *testing.T) *dataset.RepositoryImpl {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.json")
	require.NoError(t, os.WriteFile(path, []byte(japanDataset), 0o600))
	return dataset.NewRepository(path, 0, discardLogger())
}

func japanResponse() *types.RetrievalResponse {
	return &types.RetrievalResponse{
		Response:  "09:00 Senso-ji [id:111]. 12:00 lunch at Tsukiji [id:222].",
		Citations: []types.Citation{{Marker: "[id:111]", ID: "111"}, {Marker: "[id:222]", ID: "222"}},
		SourceNodes: []types.SourceNode{
			{ID: "111"}, {ID: "222"}, {ID: "333"},
		},
	}
}

func tokyoRequest() types.ItineraryRequest {
	return types.ItineraryRequest{TripParams: tokyoParams()}
}

func recordIDs(records []types.DestinationRecord) []types.CID {
	ids := make([]types.CID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.CID)
	}
	return ids
}

func TestServiceImpl_GenerateItinerary_Retries(t *testing.T) {
	ctx := context.Background()
	filter := types.RetrievalFilter{Country: types.CountryJapan}

	t.Run("always failing retrieval stops after four attempts", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())

		retrievalErr := types.Transient(fmt.Errorf("%w: 503", types.ErrRetrievalFailure))
		gw.On("Retrieve", mock.Anything, mock.Anything, filter, 2).Return(nil, retrievalErr)

		result := svc.GenerateItinerary(ctx, tokyoRequest())
		require.True(t, result.Failed())
		assert.Equal(t, "An error occurred. Please try again later.", result.Response)
		assert.Contains(t, result.Error, "503")
		assert.Empty(t, result.Metadata)
		gw.AssertNumberOfCalls(t, "Retrieve", 4)
	})

	t.Run("success on the second attempt", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())

		gw.On("Retrieve", mock.Anything, mock.Anything, filter, 2).Return(nil, errors.New("rate limited")).Once()
		gw.On("Retrieve", mock.Anything, mock.Anything, filter, 2).Return(japanResponse(), nil).Once()

		result := svc.GenerateItinerary(ctx, tokyoRequest())
		require.False(t, result.Failed())
		assert.Equal(t, japanResponse().Response, result.Response)
		assert.Equal(t, []types.CID{"111", "222", "333"}, recordIDs(result.Metadata))
		gw.AssertNumberOfCalls(t, "Retrieve", 2)
	})

	t.Run("invalid country is not retried", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())

		req := tokyoRequest()
		req.Country = "Atlantis"
		result := svc.GenerateItinerary(ctx, req)
		require.True(t, result.Failed())
		assert.Contains(t, result.Error, "unsupported country")
		gw.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing dataset is not retried", func(t *testing.T) {
		gw := new(MockGateway)
		missing := dataset.NewRepository(filepath.Join(t.TempDir(), "absent.json"), 0, discardLogger())
		svc := NewService(gw, missing, nil, 2, RetryPolicy{}, discardLogger())

		gw.On("Retrieve", mock.Anything, mock.Anything, filter, 2).Return(japanResponse(), nil)

		result := svc.GenerateItinerary(ctx, tokyoRequest())
		require.True(t, result.Failed())
		assert.Contains(t, result.Error, types.ErrDataUnavailable.Error())
		gw.AssertNumberOfCalls(t, "Retrieve", 1)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())
		cctx, cancel := context.WithCancel(ctx)

		gw.On("Retrieve", mock.Anything, mock.Anything, filter, 2).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, errors.New("timeout"))

		result := svc.GenerateItinerary(cctx, tokyoRequest())
		require.True(t, result.Failed())
		gw.AssertNumberOfCalls(t, "Retrieve", 1)
	})
}

func TestServiceImpl_GenerateItinerary_TokyoWithWeather(t *testing.T) {
	gw := new(MockGateway)
	provider := &stubProvider{samples: []types.WeatherSample{
		{Time: "09:00", Temp: 80, FeelsLike: 82, PrecipProb: 10, Conditions: "Clear", CloudCover: 10, UVIndex: 6},
		{Time: "12:00", Temp: 86, FeelsLike: 90, PrecipProb: 20, Conditions: "Clear", CloudCover: 20, UVIndex: 9},
		{Time: "15:00", Temp: 83, FeelsLike: 85, PrecipProb: 60, Conditions: "Rain", CloudCover: 80, UVIndex: 4},
		{Time: "20:00", Temp: 75, FeelsLike: 75, PrecipProb: 0, Conditions: "Overcast", CloudCover: 100, UVIndex: 0},
	}}
	weatherService := weather.NewService(provider, true, discardLogger())
	svc := NewService(gw, writeDataset(t), weatherService, 5, RetryPolicy{}, discardLogger())

	var prompt string
	gw.On("Retrieve", mock.Anything, mock.Anything, types.RetrievalFilter{Country: types.CountryJapan}, 5).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return(japanResponse(), nil).Once()

	lat, lng := 35.6938, 139.7034
	req := tokyoRequest()
	req.Lat, req.Lng = &lat, &lng

	result := svc.GenerateItinerary(context.Background(), req)
	require.False(t, result.Failed())

	require.NotNil(t, result.Weather)
	assert.Equal(t, "Clear", result.Weather.PredominantConditions)
	assert.Equal(t, 60.0, result.Weather.MaxPrecipProb)
	assert.Equal(t, 9.0, result.Weather.MaxUVIndex)

	assert.Contains(t, prompt, "Predominant conditions: Clear.")
	assert.Contains(t, prompt, "with a maximum of 60%")
	assert.True(t, strings.HasPrefix(prompt, "You are a travel itinerary planner."))

	require.Len(t, result.Metadata, 3)
	for _, rec := range result.Metadata {
		assert.Equal(t, "Japan", rec.Country())
	}
	gw.AssertExpectations(t)
}

func TestServiceImpl_Chat(t *testing.T) {
	ctx := context.Background()
	filter := types.RetrievalFilter{Country: types.CountryJapan}
	history := []types.ChatMessage{
		{Role: types.RoleUser, Content: "Plan my day in Tokyo"},
		{Role: types.RoleAssistant, Content: "Start at Senso-ji"},
	}

	t.Run("transcript is system, history, query", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())

		var transcript []types.ChatMessage
		gw.On("ChatRetrieve", mock.Anything, "Add a market for lunch", mock.Anything, filter, 2).
			Run(func(args mock.Arguments) { transcript = args.Get(2).([]types.ChatMessage) }).
			Return(&types.RetrievalResponse{
				Response:    "Lunch at Tsukiji [id:222]",
				Citations:   []types.Citation{{Marker: "[id:222]", ID: "222"}},
				SourceNodes: []types.SourceNode{{ID: "222"}, {ID: "111"}},
			}, nil).Once()

		result := svc.Chat(ctx, types.ChatItineraryRequest{
			TripParams: tokyoParams(),
			History:    history,
			Query:      "Add a market for lunch",
		})
		require.False(t, result.Failed())
		assert.Nil(t, result.Weather)
		assert.Equal(t, []types.CID{"111", "222"}, recordIDs(result.Metadata))

		require.Len(t, transcript, 4)
		assert.Equal(t, types.RoleSystem, transcript[0].Role)
		assert.True(t, strings.HasPrefix(transcript[0].Content, "You are a travel itinerary planner."))
		assert.Equal(t, history[0], transcript[1])
		assert.Equal(t, history[1], transcript[2])
		assert.Equal(t, types.ChatMessage{Role: types.RoleUser, Content: "Add a market for lunch"}, transcript[3])
		assert.Len(t, history, 2)
	})

	t.Run("same retry policy", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{MaxAttempts: 3}, discardLogger())

		gw.On("ChatRetrieve", mock.Anything, mock.Anything, mock.Anything, filter, 2).Return(nil, errors.New("overloaded"))

		result := svc.Chat(ctx, types.ChatItineraryRequest{TripParams: tokyoParams(), Query: "more"})
		require.True(t, result.Failed())
		gw.AssertNumberOfCalls(t, "ChatRetrieve", 3)
	})

	t.Run("empty query is rejected once", func(t *testing.T) {
		gw := new(MockGateway)
		svc := NewService(gw, writeDataset(t), nil, 2, RetryPolicy{}, discardLogger())

		result := svc.Chat(ctx, types.ChatItineraryRequest{TripParams: tokyoParams(), Query: "  "})
		require.True(t, result.Failed())
		assert.Contains(t, result.Error, "query is required")
		gw.AssertNotCalled(t, "ChatRetrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExponentialRetryPolicy(t *testing.T) {
	policy := ExponentialRetryPolicy(4, 0, 0, 0)
	assert.Equal(t, uint(4), policy.MaxAttempts)
	first := policy.NewBackOff()
	second := policy.NewBackOff()
	assert.NotSame(t, first, second)
	assert.Positive(t, first.NextBackOff())
}
