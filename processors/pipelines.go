package processors

import (
	"context"
	"log/slog"

	"github.com/EyalShechtman/open-ai-video-understanding/storage"
)

// probePhrase is the fixed text embedded for the manifest vector and for the
// overview pipeline's broad-coverage query. Sharing one phrase keeps the
// manifest reachable by the same query that lists frames.
const probePhrase = "video frames overview"

// Embedder converts texts to fixed-dimension vectors, one per input text,
// order preserved.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator sends ordered multimodal content to a generative model and
// returns the answer text.
type Generator interface {
	Generate(ctx context.Context, parts []ContentPart) (string, error)
}

// Ensurer guarantees a collection exists and is ready before use.
type Ensurer interface {
	EnsureReady(ctx context.Context, name string) error
}

// ImageLoader resolves a frame path to raw image bytes. It belongs to the
// excluded asset-handling collaborator; failures must not escape a single
// frame's context.
type ImageLoader interface {
	Load(ctx context.Context, path string) (data []byte, mime string, err error)
}

// Pipelines wires the retrieval-augmented orchestration flows: ingest,
// search, analyze, overview. Images is optional; when nil, analyze runs
// text-only.
type Pipelines struct {
	Store     storage.VectorStore
	Ensure    Ensurer
	Embedder  Embedder
	Generator Generator
	Images    ImageLoader
	Logger    *slog.Logger
}

func NewPipelines(store storage.VectorStore, ensure Ensurer, emb Embedder, gen Generator, images ImageLoader, logger *slog.Logger) *Pipelines {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipelines{
		Store:     store,
		Ensure:    ensure,
		Embedder:  emb,
		Generator: gen,
		Images:    images,
		Logger:    logger,
	}
}

func (p *Pipelines) ensureReady(ctx context.Context, collection string, skip bool) error {
	if skip {
		// Explicit trust boundary: the caller asserts the collection
		// already exists.
		return nil
	}
	return p.Ensure.EnsureReady(ctx, collection)
}

func clampTopK(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}
