package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

// CollectionInfo describes one collection known to the store.
type CollectionInfo struct {
	Name string `json:"name"`
}

// VectorStore is a thin capability over an external vector database. A
// collection holds one or more namespaces; namespaces are a partition key
// by convention, not a separate resource. Implementations translate
// core.Metadata to their native shape at this boundary and nowhere else.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dim int) error
	// DescribeReady reports whether the collection is queryable. A
	// not-yet-visible collection may return an error; the provisioning
	// poll loop treats that the same as not ready.
	DescribeReady(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error

	Upsert(ctx context.Context, collection, namespace string, records []core.Record) error
	Query(ctx context.Context, collection, namespace string, vector []float32, topK int) ([]core.Match, error)
	Fetch(ctx context.Context, collection, namespace string, ids []string) (map[string]core.Record, error)
	ListNamespaces(ctx context.Context, collection string) ([]string, error)

	Close() error
}

// NewStore builds the backend selected by cfg.Store.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (VectorStore, error) {
	switch cfg.Store {
	case "", "milvus":
		return NewMilvusStore(ctx, cfg, logger)
	case "pgvector":
		return NewPgVectorStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Store)
	}
}
