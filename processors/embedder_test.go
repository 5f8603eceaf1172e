package processors

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

func testEmbedderConfig(baseURL string) *config.Config {
	return &config.Config{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		EmbeddingModel: "text-embedding-3-small",
		ChatModel:      "gpt-4o-mini",
		EmbeddingDim:   3,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIEmbedderPlacesVectorsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// Respond out of order; the adapter must place by index.
		resp := map[string]interface{}{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 1, "embedding": []float32{4, 5, 6}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 2, 3}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(testEmbedderConfig(srv.URL), discardLogger())
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 2, 3}, vecs[0])
	assert.Equal(t, []float32{4, 5, 6}, vecs[1])
}

func TestOpenAIEmbedderRejectsEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(testEmbedderConfig("http://127.0.0.1:0"), discardLogger())
	_, err := e.Embed(context.Background(), nil)
	var embeddingErr *core.EmbeddingError
	require.ErrorAs(t, err, &embeddingErr)
}

func TestOpenAIEmbedderFailsOnMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{1, 2, 3}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(testEmbedderConfig(srv.URL), discardLogger())
	_, err := e.Embed(context.Background(), []string{"first", "second"})
	var embeddingErr *core.EmbeddingError
	require.ErrorAs(t, err, &embeddingErr)
	assert.Contains(t, err.Error(), "no embedding returned")
}

func TestOpenAIEmbedderToleratesDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{1, 2, 3, 4, 5}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	// Expected dim is 3, the service returns 5: warn, don't fail.
	e := NewOpenAIEmbedder(testEmbedderConfig(srv.URL), discardLogger())
	vecs, err := e.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 5)
}
