package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/apexline/paddock/internal/models"
)

// Metric is the similarity metric a collection is created with. It is
// fixed for the lifetime of the collection: the search operator and the
// index opclass must agree.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dot_product"
	MetricEuclidean  Metric = "euclidean"
)

// Operator returns the pgvector distance operator for the metric.
func (m Metric) Operator() string {
	switch m {
	case MetricCosine:
		return "<=>"
	case MetricEuclidean:
		return "<->"
	default:
		return "<#>"
	}
}

// OpClass returns the index operator class matching Operator.
func (m Metric) OpClass() string {
	switch m {
	case MetricCosine:
		return "vector_cosine_ops"
	case MetricEuclidean:
		return "vector_l2_ops"
	default:
		return "vector_ip_ops"
	}
}

func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
		return true
	}
	return false
}

type VectorStoreConfig struct {
	ConnString string
	Collection string
	VectorDim  int
	Metric     Metric
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "f1_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.Metric == "" {
		config.Metric = MetricDotProduct
	}
	if !config.Metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", config.Metric)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.createCollection(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

// createCollection sets up the collection table and index. It is
// idempotent: an existing collection with the same dimension is left
// untouched, a dimension mismatch is an error.
func (vs *VectorStore) createCollection(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			text TEXT NOT NULL,
			embedding vector(%d)
		)`, vs.config.Collection, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// IF NOT EXISTS hides a pre-existing table with the wrong width, so
	// read the declared dimension back and compare.
	var dim int
	err = vs.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		vs.config.Collection).Scan(&dim)
	if err != nil {
		return fmt.Errorf("failed to read collection dimension: %w", err)
	}
	if dim != vs.config.VectorDim {
		return fmt.Errorf("collection %s has dimension %d, configured %d",
			vs.config.Collection, dim, vs.config.VectorDim)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding %s)
		WITH (lists = 100)`,
		vs.config.Collection, vs.config.Collection, vs.config.Metric.OpClass())

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// FindExact returns the record whose text equals text byte-for-byte, or
// nil when no such record exists. This is the dedup check; it is not
// atomic with Insert. Text is normalized with SanitizeUTF8 exactly as
// Insert normalizes it, so the lookup key always matches the stored text.
func (vs *VectorStore) FindExact(ctx context.Context, text string) (*models.VectorRecord, error) {
	query := fmt.Sprintf(`SELECT id, text FROM %s WHERE text = $1 LIMIT 1`, vs.config.Collection)

	var rec models.VectorRecord
	err := vs.pool.QueryRow(ctx, query, SanitizeUTF8(text)).Scan(&rec.ID, &rec.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up text: %w", err)
	}
	return &rec, nil
}

func (vs *VectorStore) Insert(ctx context.Context, rec models.VectorRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if len(rec.Vector) != vs.config.VectorDim {
		return "", fmt.Errorf("vector dimension %d does not match collection dimension %d",
			len(rec.Vector), vs.config.VectorDim)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, text, embedding) VALUES ($1, $2, $3)`, vs.config.Collection)
	_, err := vs.pool.Exec(ctx, query, rec.ID, SanitizeUTF8(rec.Text), pgvector.NewVector(rec.Vector))
	if err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return rec.ID, nil
}

// NearestNeighbors returns up to limit records ordered by distance to
// vector under the collection's metric.
func (vs *VectorStore) NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	op := vs.config.Metric.Operator()
	query := fmt.Sprintf(`
		SELECT id, text, embedding %s $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`,
		op, vs.config.Collection)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Text, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// SanitizeUTF8 drops invalid byte sequences so text can be sent to
// Postgres, which rejects non-UTF-8 parameters. Ingestion applies it to a
// chunk before the dedup lookup; FindExact and Insert apply it again so
// the dedup key and the stored text agree no matter who calls them.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
