package processors

import (
	"context"
	"strings"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

const (
	searchDefaultTopK = 3
	searchMaxTopK     = 50
)

type SearchParams struct {
	Collection string
	Namespace  string
	Question   string
	TopK       int
	SkipEnsure bool
}

// Search embeds the question and runs a namespaced similarity query.
// Matches come back exactly as ranked by the store, score descending; no
// post-filtering happens here.
func (p *Pipelines) Search(ctx context.Context, params SearchParams) ([]core.Match, error) {
	if strings.TrimSpace(params.Question) == "" {
		return nil, core.Validationf("question", "must not be empty")
	}
	if err := p.ensureReady(ctx, params.Collection, params.SkipEnsure); err != nil {
		return nil, err
	}

	vectors, err := p.Embedder.Embed(ctx, []string{params.Question})
	if err != nil {
		return nil, err
	}
	topK := clampTopK(params.TopK, searchDefaultTopK, searchMaxTopK)
	return p.Store.Query(ctx, params.Collection, params.Namespace, vectors[0], topK)
}
