package generativeAI

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

func TestToContents(t *testing.T) {
	instruction, contents := toContents("plan trips", []types.ChatMessage{
		{Role: types.RoleSystem, Content: "be brief"},
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi"},
		{Role: types.RoleUser, Content: "plan Tokyo"},
	})

	assert.Equal(t, "plan trips\n\nbe brief", instruction)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "plan Tokyo", contents[2].Parts[0].Text)
}

// fakeGemini answers generateContent and batchEmbedContents calls.
func fakeGemini(t *testing.T, dim int, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := map[string]any{}
		_ = json.Unmarshal(body, &req)
		if captured != nil {
			*captured = req
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Visit [id:111]"}]}}]}`))
		case strings.HasSuffix(r.URL.Path, ":batchEmbedContents"):
			n := 0
			if reqs, ok := req["requests"].([]any); ok {
				n = len(reqs)
			}
			embeddings := make([]map[string]any, n)
			for i := range embeddings {
				embeddings[i] = map[string]any{"values": make([]float32, dim)}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(t *testing.T, baseURL string, dim int) *AIClient {
	t.Helper()
	client, err := NewAIClient(context.Background(), ClientConfig{
		APIKey:         "test-key",
		Model:          "gemini-2.0-flash",
		EmbeddingModel: "text-embedding-004",
		Dimension:      dim,
		Temperature:    0.2,
		Timeout:        5 * time.Second,
		BaseURL:        baseURL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func TestAIClient_Generate(t *testing.T) {
	var captured map[string]any
	srv := fakeGemini(t, 768, &captured)
	defer srv.Close()

	client := newTestClient(t, srv.URL, 768)
	answer, err := client.Generate(context.Background(), "You are a travel itinerary planner.", []types.ChatMessage{
		{Role: types.RoleUser, Content: "Plan Tokyo"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Visit [id:111]", answer)
	assert.Contains(t, captured, "systemInstruction")
}

func TestAIClient_EmbedTexts(t *testing.T) {
	t.Run("matching dimension", func(t *testing.T) {
		srv := fakeGemini(t, 768, nil)
		defer srv.Close()

		client := newTestClient(t, srv.URL, 768)
		vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b"}, TaskRetrievalDocument)
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Len(t, vectors[0], 768)
	})

	t.Run("wrong dimension rejected", func(t *testing.T) {
		srv := fakeGemini(t, 3, nil)
		defer srv.Close()

		client := newTestClient(t, srv.URL, 768)
		_, err := client.EmbedTexts(context.Background(), []string{"a"}, TaskRetrievalQuery)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension 3")
	})
}

func TestNewAIClient_MissingKey(t *testing.T) {
	_, err := NewAIClient(context.Background(), ClientConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
