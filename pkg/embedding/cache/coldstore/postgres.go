package coldstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/scentmatch/embedcache/pkg/embedding/cache"
	"github.com/scentmatch/embedcache/pkg/observability"
)

const defaultTable = "embedding_cache_cold"

// PostgresStore persists cold entries in a relational table with one
// nullable delimited-text vector column per supported dimension.
// Expired rows are invisible to Get and reclaimed by DeleteExpired.
type PostgresStore struct {
	db     *sqlx.DB
	table  string
	dims   []int
	logger observability.Logger
}

// NewPostgresStore creates a cold store over the given database for
// the supported dimensions.
func NewPostgresStore(db *sqlx.DB, dims []int, logger observability.Logger) *PostgresStore {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	sorted := make([]int, len(dims))
	copy(sorted, dims)
	sort.Ints(sorted)
	return &PostgresStore{
		db:     db,
		table:  defaultTable,
		dims:   sorted,
		logger: logger.WithPrefix("coldstore.postgres"),
	}
}

// Schema returns the DDL for the cold-row table, for provisioning.
func (s *PostgresStore) Schema() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", s.table)
	b.WriteString("    cache_key TEXT PRIMARY KEY,\n")
	for _, dim := range s.dims {
		fmt.Fprintf(&b, "    %s TEXT,\n", vectorColumn(dim))
	}
	b.WriteString("    tier TEXT NOT NULL DEFAULT 'cold',\n")
	b.WriteString("    access_count BIGINT NOT NULL DEFAULT 0,\n")
	b.WriteString("    last_accessed_at TIMESTAMPTZ NOT NULL,\n")
	b.WriteString("    priority_score DOUBLE PRECISION NOT NULL,\n")
	b.WriteString("    expires_at TIMESTAMPTZ NOT NULL\n")
	b.WriteString(");")
	return b.String()
}

// Put upserts the row, replacing vectors and statistics.
func (s *PostgresStore) Put(ctx context.Context, entry *cache.ColdEntry) error {
	columns := []string{"cache_key"}
	args := []interface{}{string(entry.Key)}
	for _, dim := range s.dims {
		columns = append(columns, vectorColumn(dim))
		if vec, ok := entry.Embeddings[dim]; ok {
			args = append(args, serializeVector(vec))
		} else {
			args = append(args, nil)
		}
	}
	columns = append(columns, "tier", "access_count", "last_accessed_at", "priority_score", "expires_at")
	args = append(args, string(cache.TierCold), entry.AccessCount, entry.LastAccessed, entry.PriorityScore, entry.ExpiresAt)

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(columns)-1)
	for _, col := range columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (cache_key) DO UPDATE SET %s",
		s.table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres put: %w", err)
	}
	return nil
}

// Get returns the row, or cache.ErrColdMiss when absent or expired.
func (s *PostgresStore) Get(ctx context.Context, key cache.CacheKey) (*cache.ColdEntry, error) {
	columns := make([]string, 0, len(s.dims)+4)
	for _, dim := range s.dims {
		columns = append(columns, vectorColumn(dim))
	}
	columns = append(columns, "access_count", "last_accessed_at", "priority_score", "expires_at")

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE cache_key = $1 AND expires_at > NOW()",
		strings.Join(columns, ", "), s.table,
	)

	vectors := make([]sql.NullString, len(s.dims))
	var (
		accessCount  int64
		lastAccessed time.Time
		priority     float64
		expiresAt    time.Time
	)
	dest := make([]interface{}, 0, len(columns))
	for i := range vectors {
		dest = append(dest, &vectors[i])
	}
	dest = append(dest, &accessCount, &lastAccessed, &priority, &expiresAt)

	if err := s.db.QueryRowContext(ctx, query, string(key)).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrColdMiss
		}
		return nil, fmt.Errorf("postgres get: %w", err)
	}

	embeddings := make(cache.EmbeddingSet)
	for i, dim := range s.dims {
		if !vectors[i].Valid || vectors[i].String == "" {
			continue
		}
		vec, err := parseVector(vectors[i].String, dim)
		if err != nil {
			return nil, err
		}
		embeddings[dim] = vec
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: row holds no vectors", cache.ErrSerialization)
	}

	return &cache.ColdEntry{
		Key:           key,
		Embeddings:    embeddings,
		AccessCount:   accessCount,
		LastAccessed:  lastAccessed,
		PriorityScore: priority,
		ExpiresAt:     expiresAt,
	}, nil
}

// Delete removes the row. Absent keys are not an error.
func (s *PostgresStore) Delete(ctx context.Context, key cache.CacheKey) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = $1", s.table)
	if _, err := s.db.ExecContext(ctx, query, string(key)); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

// BumpAccess increments access_count and refreshes last_accessed_at
// without rewriting the vectors.
func (s *PostgresStore) BumpAccess(ctx context.Context, key cache.CacheKey) error {
	query := fmt.Sprintf(
		"UPDATE %s SET access_count = access_count + 1, last_accessed_at = NOW() WHERE cache_key = $1",
		s.table,
	)
	if _, err := s.db.ExecContext(ctx, query, string(key)); err != nil {
		return fmt.Errorf("postgres bump access: %w", err)
	}
	return nil
}

// DeleteExpired purges rows past their expiry, implementing the
// cache's ColdSweeper interface.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= NOW()", s.table)
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres delete expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func vectorColumn(dim int) string {
	return fmt.Sprintf("vector_%d", dim)
}

// serializeVector renders a vector as a comma-delimited numeric
// string.
func serializeVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

// parseVector reverses serializeVector, validating the declared
// dimension. Malformed data maps to cache.ErrSerialization.
func parseVector(raw string, dim int) ([]float32, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != dim {
		return nil, fmt.Errorf("%w: expected %d coordinates, found %d", cache.ErrSerialization, dim, len(parts))
	}
	vec := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: coordinate %d: %v", cache.ErrSerialization, i, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
