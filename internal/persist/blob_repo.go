package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/resman/internal/data"
)

// BlobRow is one stored resource.
type BlobRow struct {
	Path      string
	Data      []byte
	Digest    []byte
	UpdatedAt time.Time
}

type BlobRepo struct {
	db *DB
}

func NewBlobRepo(db *DB) *BlobRepo {
	return &BlobRepo{db: db}
}

// Get returns nil, nil when path is not stored.
func (r *BlobRepo) Get(ctx context.Context, path string) (*BlobRow, error) {
	row := &BlobRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT path, data, digest, updated_at FROM resources WHERE path = $1`, path,
	).Scan(&row.Path, &row.Data, &row.Digest, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Put stores b under its path, replacing any previous content.
func (r *BlobRepo) Put(ctx context.Context, b *data.Blob) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO resources (path, data, digest, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (path) DO UPDATE
		 SET data = EXCLUDED.data, digest = EXCLUDED.digest, updated_at = now()`,
		b.Path, b.Data, b.Sum[:],
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", b.Path, err)
	}
	return nil
}

// PutAll stores every blob in a single transaction.
func (r *BlobRepo) PutAll(ctx context.Context, blobs []*data.Blob) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("put begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range blobs {
		batch.Queue(
			`INSERT INTO resources (path, data, digest, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (path) DO UPDATE
			 SET data = EXCLUDED.data, digest = EXCLUDED.digest, updated_at = now()`,
			b.Path, b.Data, b.Sum[:],
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("put batch: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete reports whether a row was removed.
func (r *BlobRepo) Delete(ctx context.Context, path string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM resources WHERE path = $1`, path)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Paths lists stored paths in order.
func (r *BlobRepo) Paths(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT path FROM resources ORDER BY path`)
	if err != nil {
		return nil, err
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	return paths, nil
}
