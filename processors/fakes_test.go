package processors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
	"github.com/EyalShechtman/open-ai-video-understanding/storage"
)

// fakeVectorStore keeps upserted records in memory (overwrite-by-ID, like
// the real stores) and returns scripted query/fetch results.
type fakeVectorStore struct {
	mu      sync.Mutex
	records map[string]core.Record

	upsertCalls    int
	lastCollection string
	lastNamespace  string

	queryResult []core.Match
	queryErr    error
	queryCalls  int
	lastTopK    int

	fetchResult map[string]core.Record
	fetchErr    error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: map[string]core.Record{}}
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int) error {
	return nil
}
func (f *fakeVectorStore) DescribeReady(ctx context.Context, name string) (bool, error) {
	return true, nil
}
func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	return nil, nil
}
func (f *fakeVectorStore) DeleteCollection(ctx context.Context, name string) error { return nil }

func (f *fakeVectorStore) Upsert(ctx context.Context, collection, namespace string, records []core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastCollection = collection
	f.lastNamespace = namespace
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, collection, namespace string, vector []float32, topK int) ([]core.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	f.lastCollection = collection
	f.lastNamespace = namespace
	f.lastTopK = topK
	return f.queryResult, f.queryErr
}

func (f *fakeVectorStore) Fetch(ctx context.Context, collection, namespace string, ids []string) (map[string]core.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.fetchResult != nil {
		return f.fetchResult, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]core.Record{}
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (f *fakeVectorStore) ListNamespaces(ctx context.Context, collection string) ([]string, error) {
	return nil, nil
}
func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for id := range f.records {
		out = append(out, id)
	}
	return out
}

// fakeEmbedder returns a deterministic vector per text and can be scripted
// to fail for specific texts.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	errOn map[string]error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()
	if len(texts) == 0 {
		return nil, &core.EmbeddingError{Err: errors.New("no texts to embed")}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err, ok := f.errOn[text]; ok {
			return nil, &core.EmbeddingError{Err: err}
		}
		out[i] = []float32{float32(len(text)), float32(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEnsurer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEnsurer) EnsureReady(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.err
}

func (f *fakeEnsurer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGenerator struct {
	answer   string
	err      error
	gotParts []ContentPart
}

func (f *fakeGenerator) Generate(ctx context.Context, parts []ContentPart) (string, error) {
	f.gotParts = parts
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeImageLoader struct {
	images map[string][]byte
}

func (f *fakeImageLoader) Load(ctx context.Context, path string) ([]byte, string, error) {
	data, ok := f.images[path]
	if !ok {
		return nil, "", fmt.Errorf("no such image: %s", path)
	}
	return data, "image/jpeg", nil
}

func newTestPipelines(store *fakeVectorStore, ensure *fakeEnsurer, emb *fakeEmbedder, gen *fakeGenerator, images ImageLoader) *Pipelines {
	return NewPipelines(store, ensure, emb, gen, images, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func frameMatch(id string, score, ts float64) core.Match {
	return core.Match{
		ID:    id,
		Score: score,
		Metadata: core.Metadata{Role: core.RoleFrame, Frame: &core.FrameMeta{
			FrameID:     id,
			Timestamp:   ts,
			Description: "desc " + id,
			Path:        "data/" + id + ".jpg",
		}},
	}
}
