package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

// OpenAIEmbedder implements Embedder on an OpenAI-compatible embeddings
// endpoint. The whole batch goes out in one request; vectors are placed by
// the response index, so input order never depends on response order.
type OpenAIEmbedder struct {
	cli    *openai.Client
	model  string
	dim    int
	logger *slog.Logger
}

func NewOpenAIEmbedder(cfg *config.Config, logger *slog.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		cli:    newOpenAIClient(cfg),
		model:  cfg.EmbeddingModel,
		dim:    cfg.EmbeddingDim,
		logger: logger,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &core.EmbeddingError{Err: errors.New("no texts to embed")}
	}
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, vec := range out {
		if vec == nil {
			return nil, &core.EmbeddingError{Err: fmt.Errorf("no embedding returned for input %d", i)}
		}
		if len(vec) != e.dim {
			// Lenient on purpose: the embedding service may be
			// reconfigured independently of this code.
			e.logger.Warn("embedding dimension mismatch",
				"expected", e.dim, "got", len(vec), "input", i)
		}
	}
	return out, nil
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
