package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

const (
	fieldID        = "id"
	fieldNamespace = "namespace"
	fieldMetadata  = "metadata"
	fieldVector    = "vector"

	// Milvus has no distinct-values query; namespace listing scans scalar
	// rows up to this bound and dedupes client-side.
	namespaceScanLimit = 16384
)

// MilvusStore implements VectorStore on a Milvus cluster. One collection per
// sanitized index name; namespaces are a scalar field scoped by filter
// expressions. Metadata travels as a JSON field and is converted to the
// typed union here, at the adapter boundary.
type MilvusStore struct {
	mc     client.Client
	logger *slog.Logger
}

func NewMilvusStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*MilvusStore, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.MilvusAddr,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		APIKey:   cfg.MilvusAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return &MilvusStore{mc: mc, logger: logger}, nil
}

func (s *MilvusStore) CreateCollection(ctx context.Context, name string, dim int) error {
	schema := entity.NewSchema().WithName(name)
	schema.WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512).WithIsPrimaryKey(true))
	schema.WithField(entity.NewField().WithName(fieldNamespace).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName(fieldMetadata).WithDataType(entity.FieldTypeJSON))
	schema.WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))

	if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
		return &core.StoreError{Op: "create-collection", Err: err}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return &core.StoreError{Op: "create-collection", Err: fmt.Errorf("new hnsw index: %w", err)}
	}
	if err := s.mc.CreateIndex(ctx, name, fieldVector, idx, false, client.WithIndexName("idx_vector")); err != nil {
		return &core.StoreError{Op: "create-collection", Err: fmt.Errorf("create index: %w", err)}
	}
	// Load asynchronously; readiness is observed through DescribeReady.
	if err := s.mc.LoadCollection(ctx, name, true); err != nil {
		return &core.StoreError{Op: "create-collection", Err: fmt.Errorf("load collection: %w", err)}
	}
	return nil
}

func (s *MilvusStore) DescribeReady(ctx context.Context, name string) (bool, error) {
	state, err := s.mc.GetLoadState(ctx, name, nil)
	if err != nil {
		return false, &core.StoreError{Op: "describe", Err: err}
	}
	return state == entity.LoadStateLoaded, nil
}

func (s *MilvusStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	cols, err := s.mc.ListCollections(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "list-collections", Err: err}
	}
	out := make([]CollectionInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, CollectionInfo{Name: c.Name})
	}
	return out, nil
}

func (s *MilvusStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.mc.DropCollection(ctx, name); err != nil {
		return &core.StoreError{Op: "delete-collection", Err: err}
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, collection, namespace string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Values)
	ids := make([]string, 0, len(records))
	namespaces := make([]string, 0, len(records))
	metas := make([][]byte, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r.Metadata.Flatten())
		if err != nil {
			return &core.StoreError{Op: "upsert", Err: fmt.Errorf("encode metadata for %s: %w", r.ID, err)}
		}
		ids = append(ids, r.ID)
		namespaces = append(namespaces, namespace)
		metas = append(metas, raw)
		vectors = append(vectors, r.Values)
	}

	_, err := s.mc.Upsert(ctx, collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldNamespace, namespaces),
		entity.NewColumnJSONBytes(fieldMetadata, metas),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
	)
	if err != nil {
		return &core.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *MilvusStore) Query(ctx context.Context, collection, namespace string, vector []float32, topK int) ([]core.Match, error) {
	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}
	expr := fmt.Sprintf("%s == \"%s\"", fieldNamespace, escapeExpr(namespace))
	res, err := s.mc.Search(ctx, collection, []string{}, expr, []string{fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)}, fieldVector, entity.COSINE, topK, sp)
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}

	var matches []core.Match
	for _, r := range res {
		idCol, _ := r.IDs.(*entity.ColumnVarChar)
		metaCol, _ := r.Fields.GetColumn(fieldMetadata).(*entity.ColumnJSONBytes)
		for i := 0; i < r.ResultCount; i++ {
			m := core.Match{Score: float64(r.Scores[i])}
			if idCol != nil && i < len(idCol.Data()) {
				m.ID = idCol.Data()[i]
			}
			if metaCol != nil && i < len(metaCol.Data()) {
				m.Metadata = decodeMetadata(metaCol.Data()[i], s.logger)
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func (s *MilvusStore) Fetch(ctx context.Context, collection, namespace string, ids []string) (map[string]core.Record, error) {
	if len(ids) == 0 {
		return map[string]core.Record{}, nil
	}
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, fmt.Sprintf("\"%s\"", escapeExpr(id)))
	}
	expr := fmt.Sprintf("%s == \"%s\" && %s in [%s]",
		fieldNamespace, escapeExpr(namespace), fieldID, strings.Join(quoted, ", "))
	rs, err := s.mc.Query(ctx, collection, nil, expr, []string{fieldID, fieldMetadata})
	if err != nil {
		return nil, &core.StoreError{Op: "fetch", Err: err}
	}

	idCol, _ := rs.GetColumn(fieldID).(*entity.ColumnVarChar)
	metaCol, _ := rs.GetColumn(fieldMetadata).(*entity.ColumnJSONBytes)
	out := map[string]core.Record{}
	if idCol == nil {
		return out, nil
	}
	for i, id := range idCol.Data() {
		rec := core.Record{ID: id}
		if metaCol != nil && i < len(metaCol.Data()) {
			rec.Metadata = decodeMetadata(metaCol.Data()[i], s.logger)
		}
		out[id] = rec
	}
	return out, nil
}

func (s *MilvusStore) ListNamespaces(ctx context.Context, collection string) ([]string, error) {
	expr := fmt.Sprintf("%s != \"\"", fieldNamespace)
	rs, err := s.mc.Query(ctx, collection, nil, expr, []string{fieldNamespace},
		client.WithLimit(namespaceScanLimit))
	if err != nil {
		return nil, &core.StoreError{Op: "list-namespaces", Err: err}
	}
	nsCol, _ := rs.GetColumn(fieldNamespace).(*entity.ColumnVarChar)
	if nsCol == nil {
		return nil, nil
	}
	seen := map[string]bool{}
	var out []string
	for _, ns := range nsCol.Data() {
		if !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	return out, nil
}

func (s *MilvusStore) Close() error {
	return s.mc.Close()
}

func decodeMetadata(raw []byte, logger *slog.Logger) core.Metadata {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Warn("undecodable record metadata", "error", err)
		return core.Metadata{}
	}
	return core.MetadataFromMap(m)
}

func escapeExpr(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
