package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresStore keeps documents in a single JSONB table, see migrations/.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, owner_id, unique_key, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.Collection, doc.ID, doc.OwnerID, nullable(doc.UniqueKey), []byte(doc.Data), doc.CreatedAt, doc.UpdatedAt)
	return translate(err)
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT collection, id, owner_id, unique_key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	return scanDocument(row)
}

func (s *PostgresStore) GetByKey(ctx context.Context, collection, key string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT collection, id, owner_id, unique_key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND unique_key = $2
	`, collection, key)
	return scanDocument(row)
}

func (s *PostgresStore) Update(ctx context.Context, doc Document, expected time.Time) error {
	var expectedAt *time.Time
	if !expected.IsZero() {
		expectedAt = &expected
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET owner_id = $3, unique_key = $4, data = $5, updated_at = $6
		WHERE collection = $1 AND id = $2 AND ($7::timestamptz IS NULL OR updated_at = $7)
	`, doc.Collection, doc.ID, doc.OwnerID, nullable(doc.UniqueKey), []byte(doc.Data), doc.UpdatedAt, expectedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, doc.Collection, doc.ID); err != nil {
		return err
	}
	return ErrConflict
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// maxListPage caps a List without a Limit.
const maxListPage = 1000

func (s *PostgresStore) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = maxListPage
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT collection, id, owner_id, unique_key, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND ($2 = '' OR owner_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, collection, filter.OwnerID, limit, offset)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE collection = $1`, collection).Scan(&count)
	return count, translate(err)
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var key *string
	var data []byte
	err := row.Scan(&doc.Collection, &doc.ID, &doc.OwnerID, &key, &data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, translate(err)
	}
	if key != nil {
		doc.UniqueKey = *key
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
