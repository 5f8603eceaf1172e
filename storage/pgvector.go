package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

// registryTable tracks which tables belong to this service so that
// ListCollections does not have to guess from pg_tables.
const registryTable = "rag_collections"

// PgVectorStore implements VectorStore on Postgres with the pgvector
// extension. One table per collection, cosine distance search, namespace as
// an indexed column. Tables are queryable the moment they exist, so
// DescribeReady reduces to a registry lookup.
type PgVectorStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPgVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgVectorStore{pool: pool, logger: logger}
	if err := s.ensureRegistry(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureRegistry(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, registryTable)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create registry table: %w", err)
	}
	return nil
}

// tableFor maps a collection name to a table identifier. Collection names
// are already sanitized to [a-z0-9-], so swapping dashes for underscores is
// injective and yields a valid unquoted identifier.
func tableFor(collection string) string {
	return "rag_c_" + strings.ReplaceAll(collection, "-", "_")
}

func (s *PgVectorStore) CreateCollection(ctx context.Context, name string, dim int) error {
	table := tableFor(name)
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			metadata JSONB NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, table, dim)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return &core.StoreError{Op: "create-collection", Err: err}
	}
	nsIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_ns_idx ON %s(namespace);", table, table)
	if _, err := s.pool.Exec(ctx, nsIndex); err != nil {
		return &core.StoreError{Op: "create-collection", Err: err}
	}
	register := fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", registryTable)
	if _, err := s.pool.Exec(ctx, register, name); err != nil {
		return &core.StoreError{Op: "create-collection", Err: err}
	}
	return nil
}

func (s *PgVectorStore) DescribeReady(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)", registryTable)
	if err := s.pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, &core.StoreError{Op: "describe", Err: err}
	}
	return exists, nil
}

func (s *PgVectorStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	query := fmt.Sprintf("SELECT name FROM %s ORDER BY name", registryTable)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &core.StoreError{Op: "list-collections", Err: err}
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &core.StoreError{Op: "list-collections", Err: err}
		}
		out = append(out, CollectionInfo{Name: name})
	}
	return out, rows.Err()
}

func (s *PgVectorStore) DeleteCollection(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableFor(name))); err != nil {
		return &core.StoreError{Op: "delete-collection", Err: err}
	}
	unregister := fmt.Sprintf("DELETE FROM %s WHERE name = $1", registryTable)
	if _, err := s.pool.Exec(ctx, unregister, name); err != nil {
		return &core.StoreError{Op: "delete-collection", Err: err}
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, collection, namespace string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	table := tableFor(collection)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			namespace = EXCLUDED.namespace,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, table)

	// One batch round trip; the store gives no cross-record ordering
	// guarantee, only overwrite-by-ID.
	batch := &pgx.Batch{}
	for _, r := range records {
		raw, err := json.Marshal(r.Metadata.Flatten())
		if err != nil {
			return &core.StoreError{Op: "upsert", Err: fmt.Errorf("encode metadata for %s: %w", r.ID, err)}
		}
		batch.Queue(query, r.ID, namespace, raw, pgvector.NewVector(r.Values))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return &core.StoreError{Op: "upsert", Err: err}
		}
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, collection, namespace string, vector []float32, topK int) ([]core.Match, error) {
	table := tableFor(collection)
	query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, table)
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), namespace, topK)
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var matches []core.Match
	for rows.Next() {
		var (
			id    string
			raw   []byte
			score float64
		)
		if err := rows.Scan(&id, &raw, &score); err != nil {
			return nil, &core.StoreError{Op: "query", Err: err}
		}
		matches = append(matches, core.Match{
			ID:       id,
			Score:    score,
			Metadata: decodeMetadata(raw, s.logger),
		})
	}
	return matches, rows.Err()
}

func (s *PgVectorStore) Fetch(ctx context.Context, collection, namespace string, ids []string) (map[string]core.Record, error) {
	out := map[string]core.Record{}
	if len(ids) == 0 {
		return out, nil
	}
	table := tableFor(collection)
	query := fmt.Sprintf(`
		SELECT id, metadata FROM %s
		WHERE namespace = $1 AND id = ANY($2)
	`, table)
	rows, err := s.pool.Query(ctx, query, namespace, ids)
	if err != nil {
		return nil, &core.StoreError{Op: "fetch", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &core.StoreError{Op: "fetch", Err: err}
		}
		out[id] = core.Record{ID: id, Metadata: decodeMetadata(raw, s.logger)}
	}
	return out, rows.Err()
}

func (s *PgVectorStore) ListNamespaces(ctx context.Context, collection string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT namespace FROM %s ORDER BY namespace", tableFor(collection))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &core.StoreError{Op: "list-namespaces", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, &core.StoreError{Op: "list-namespaces", Err: err}
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
