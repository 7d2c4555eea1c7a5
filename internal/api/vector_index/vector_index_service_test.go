package vectorIndex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) EnsureTable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRepository) StartIngestRun(ctx context.Context, batchSize int) (uuid.UUID, error) {
	args := m.Called(ctx, batchSize)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) FinishIngestRun(ctx context.Context, runID uuid.UUID, documents int, runErr error) error {
	return m.Called(ctx, runID, documents, runErr).Error(0)
}

func (m *MockRepository) UpsertDocuments(ctx context.Context, runID uuid.UUID, docs []types.IndexedDocument, embeddings [][]float32) error {
	return m.Called(ctx, runID, docs, embeddings).Error(0)
}

func (m *MockRepository) SearchSimilar(ctx context.Context, embedding []float32, filter types.RetrievalFilter, topK int) ([]types.SourceNode, error) {
	args := m.Called(ctx, embedding, filter, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.SourceNode), args.Error(1)
}

// stubEmbedder returns a constant vector per text and records batch sizes.
type stubEmbedder struct {
	mu      sync.Mutex
	dim     int
	err     error
	batches []int
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string, _ string) ([][]float32, error) {
	s.mu.Lock()
	s.batches = append(s.batches, len(texts))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

type stubGenerator struct {
	answer   string
	err      error
	system   string
	messages []types.ChatMessage
}

func (s *stubGenerator) Generate(_ context.Context, system string, messages []types.ChatMessage) (string, error) {
	s.system = system
	s.messages = messages
	return s.answer, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func japanNodes() []types.SourceNode {
	return []types.SourceNode{
		{ID: "111", Text: "Title: Senso-ji", Metadata: types.DocumentMetadata{ID: "111", Title: "Senso-ji"}},
		{ID: "333", Text: "Title: Meiji Jingu", Metadata: types.DocumentMetadata{ID: "333", Title: "Meiji Jingu"}},
	}
}

func TestGatewayImpl_Retrieve(t *testing.T) {
	ctx := context.Background()
	filter := types.RetrievalFilter{Country: types.CountryJapan}

	t.Run("answer with citations", func(t *testing.T) {
		repo := new(MockRepository)
		gen := &stubGenerator{answer: "09:00 Senso-ji [id:111], then Meiji Jingu [id: 333] and Kyoto [id:999]."}
		gw := NewGateway(repo, &stubEmbedder{dim: 4}, gen, GatewayOptions{}, discardLogger())

		repo.On("SearchSimilar", mock.Anything, make([]float32, 4), filter, 2).Return(japanNodes(), nil).Once()

		resp, err := gw.Retrieve(ctx, "plan Tokyo", filter, 2)
		require.NoError(t, err)
		assert.Equal(t, gen.answer, resp.Response)
		require.Len(t, resp.Citations, 2)
		assert.Equal(t, types.CID("111"), resp.Citations[0].ID)
		assert.Equal(t, types.CID("333"), resp.Citations[1].ID)
		assert.Len(t, resp.SourceNodes, 2)

		assert.Contains(t, gen.system, "[id:111]\nTitle: Senso-ji")
		require.Len(t, gen.messages, 1)
		assert.Equal(t, types.RoleUser, gen.messages[0].Role)
		repo.AssertExpectations(t)
	})

	t.Run("search failure is transient", func(t *testing.T) {
		repo := new(MockRepository)
		gw := NewGateway(repo, &stubEmbedder{dim: 4}, &stubGenerator{}, GatewayOptions{}, discardLogger())
		repo.On("SearchSimilar", mock.Anything, mock.Anything, filter, 2).Return(nil, errors.New("db down")).Once()

		_, err := gw.Retrieve(ctx, "plan Tokyo", filter, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrRetrievalFailure)
		assert.True(t, types.IsTransient(err))
	})

	t.Run("generation failure is transient", func(t *testing.T) {
		repo := new(MockRepository)
		gw := NewGateway(repo, &stubEmbedder{dim: 4}, &stubGenerator{err: errors.New("429")}, GatewayOptions{}, discardLogger())
		repo.On("SearchSimilar", mock.Anything, mock.Anything, filter, 2).Return(japanNodes(), nil).Once()

		_, err := gw.Retrieve(ctx, "plan Tokyo", filter, 2)
		assert.ErrorIs(t, err, types.ErrRetrievalFailure)
		assert.True(t, types.IsTransient(err))
	})

	t.Run("invalid country is permanent", func(t *testing.T) {
		repo := new(MockRepository)
		gw := NewGateway(repo, &stubEmbedder{dim: 4}, &stubGenerator{}, GatewayOptions{}, discardLogger())

		_, err := gw.Retrieve(ctx, "plan", types.RetrievalFilter{Country: "Atlantis"}, 2)
		assert.ErrorIs(t, err, types.ErrInvalidCountry)
		assert.False(t, types.IsTransient(err))
		repo.AssertNotCalled(t, "SearchSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGatewayImpl_ChatRetrieve(t *testing.T) {
	repo := new(MockRepository)
	gen := &stubGenerator{answer: "Add lunch at [id:333]"}
	gw := NewGateway(repo, &stubEmbedder{dim: 4}, gen, GatewayOptions{}, discardLogger())
	filter := types.RetrievalFilter{Country: types.CountryJapan}

	repo.On("SearchSimilar", mock.Anything, mock.Anything, filter, 3).Return(japanNodes(), nil).Once()

	transcript := types.NewChatTranscript("system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "Plan Tokyo"},
		{Role: types.RoleAssistant, Content: "Senso-ji first"},
	}, "Add lunch")

	resp, err := gw.ChatRetrieve(context.Background(), "Add lunch", transcript, filter, 3)
	require.NoError(t, err)
	assert.Equal(t, []types.CID{"333", "111"}, resp.ReferencedIDs())
	assert.Equal(t, transcript, gen.messages)
}

func TestGatewayImpl_Ingest(t *testing.T) {
	ctx := context.Background()
	runID := uuid.New()
	docs := make([]types.IndexedDocument, 5)
	for i := range docs {
		docs[i] = types.IndexedDocument{ID: types.CID(strings.Repeat("x", i+1)), Text: "doc"}
	}

	t.Run("batches and records the run", func(t *testing.T) {
		repo := new(MockRepository)
		emb := &stubEmbedder{dim: 4}
		gw := NewGateway(repo, emb, &stubGenerator{}, GatewayOptions{EmbedBatchSize: 1, EmbedWorkers: 2}, discardLogger())

		repo.On("EnsureTable", mock.Anything).Return(nil).Once()
		repo.On("StartIngestRun", mock.Anything, 2).Return(runID, nil).Once()
		repo.On("UpsertDocuments", mock.Anything, runID, mock.Anything, mock.Anything).Return(nil).Times(3)
		repo.On("FinishIngestRun", mock.Anything, runID, 5, nil).Return(nil).Once()

		report, err := gw.Ingest(ctx, docs, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, report.Documents)
		assert.Equal(t, 3, report.Batches)
		assert.Equal(t, runID.String(), report.RunID)
		assert.Len(t, emb.batches, 5)
		repo.AssertExpectations(t)
	})

	t.Run("embedding failure fails the run", func(t *testing.T) {
		repo := new(MockRepository)
		gw := NewGateway(repo, &stubEmbedder{dim: 4, err: errors.New("quota")}, &stubGenerator{}, GatewayOptions{}, discardLogger())

		repo.On("EnsureTable", mock.Anything).Return(nil).Once()
		repo.On("StartIngestRun", mock.Anything, 1000).Return(runID, nil).Once()
		repo.On("FinishIngestRun", mock.Anything, runID, 0, mock.MatchedBy(func(err error) bool { return err != nil })).Return(nil).Once()

		_, err := gw.Ingest(ctx, docs, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota")
		repo.AssertNotCalled(t, "UpsertDocuments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})
}

func TestParseCitations(t *testing.T) {
	citations, dropped := parseCitations("See [id:111] and [id:111] and [id:42]", japanNodes())
	assert.Equal(t, 1, dropped)
	require.Len(t, citations, 2)
	assert.Equal(t, "[id:111]", citations[0].Marker)
}
