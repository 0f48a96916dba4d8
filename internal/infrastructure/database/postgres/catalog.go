package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ShardRecord describes one registered shard: its identity, the object
// storage key holding its index directory archive, and how many molecules
// it covers. cmd/pharma-indexd writes these records when a shard is
// published; the search pipeline does not read the catalog.
type ShardRecord struct {
	DBID          uint32
	NumDBs        uint32
	IndexObjectKey string
	MoleculeCount int64
	Published     bool
}

// CatalogRepository records and queries shard registration state in
// PostgreSQL. It is the collaborator behind the shard catalog interface
// named in the external interfaces section: which shards exist and where
// their index files live. It keeps one row per shard; individual
// point-type-triple tables are not recorded.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository wraps an established connection pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// RegisterShard inserts or updates a shard's catalog entry. Called by the
// indexing daemon once a shard's index files have been uploaded to object
// storage.
func (r *CatalogRepository) RegisterShard(ctx context.Context, rec ShardRecord) error {
	const q = `
		INSERT INTO shard_catalog (db_id, num_dbs, index_object_key, molecule_count, published)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (db_id) DO UPDATE SET
			num_dbs = EXCLUDED.num_dbs,
			index_object_key = EXCLUDED.index_object_key,
			molecule_count = EXCLUDED.molecule_count,
			published = EXCLUDED.published
	`
	_, err := r.pool.Exec(ctx, q, rec.DBID, rec.NumDBs, rec.IndexObjectKey, rec.MoleculeCount, rec.Published)
	if err != nil {
		return fmt.Errorf("postgres: register shard %d: %w", rec.DBID, err)
	}
	return nil
}

// MarkPublished sets a shard's published flag and reports an error if the
// shard is not registered. The shard.published watcher in cmd/pharma-indexd
// does not call it: it registers shards with Published already set.
func (r *CatalogRepository) MarkPublished(ctx context.Context, dbID uint32, published bool) error {
	const q = `UPDATE shard_catalog SET published = $2 WHERE db_id = $1`
	tag, err := r.pool.Exec(ctx, q, dbID, published)
	if err != nil {
		return fmt.Errorf("postgres: mark shard %d published=%v: %w", dbID, published, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: shard %d not found in catalog", dbID)
	}
	return nil
}

// ListPublished returns every shard currently marked published, in ascending
// db_id order.
func (r *CatalogRepository) ListPublished(ctx context.Context) ([]ShardRecord, error) {
	const q = `
		SELECT db_id, num_dbs, index_object_key, molecule_count, published
		FROM shard_catalog
		WHERE published
		ORDER BY db_id
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list published shards: %w", err)
	}
	defer rows.Close()

	var out []ShardRecord
	for rows.Next() {
		var rec ShardRecord
		if err := rows.Scan(&rec.DBID, &rec.NumDBs, &rec.IndexObjectKey, &rec.MoleculeCount, &rec.Published); err != nil {
			return nil, fmt.Errorf("postgres: scan shard row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate shard rows: %w", err)
	}
	return out, nil
}

// Get fetches a single shard's catalog entry. Returns pgx.ErrNoRows if the
// shard is not registered.
func (r *CatalogRepository) Get(ctx context.Context, dbID uint32) (ShardRecord, error) {
	const q = `
		SELECT db_id, num_dbs, index_object_key, molecule_count, published
		FROM shard_catalog
		WHERE db_id = $1
	`
	var rec ShardRecord
	err := r.pool.QueryRow(ctx, q, dbID).Scan(&rec.DBID, &rec.NumDBs, &rec.IndexObjectKey, &rec.MoleculeCount, &rec.Published)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ShardRecord{}, err
		}
		return ShardRecord{}, fmt.Errorf("postgres: get shard %d: %w", dbID, err)
	}
	return rec, nil
}
