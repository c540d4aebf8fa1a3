// Package postgres stores every collection in a single jsonb documents table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salonpos/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	position BIGINT NOT NULL,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_position_idx ON documents (collection, position);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAll(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body
		FROM documents
		WHERE collection = $1
		ORDER BY position, id
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]store.Document, 0, 64)
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Body); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) LoadOne(ctx context.Context, collection string, id string) (store.Document, error) {
	doc := store.Document{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT body
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&doc.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}
	return doc, nil
}

// ReplaceAll rewrites the collection inside one serializable transaction so a
// concurrent reader never sees half of a save.
func (s *Store) ReplaceAll(ctx context.Context, collection string, docs []store.Document) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, position, body, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (collection, id)
			DO UPDATE SET position = EXCLUDED.position, body = EXCLUDED.body, updated_at = now()
		`, collection, doc.ID, i, string(doc.Body)); err != nil {
			return classify(err)
		}
		ids = append(ids, doc.ID)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND NOT (id = ANY($2))
	`, collection, ids); err != nil {
		return classify(err)
	}

	return tx.Commit()
}

func (s *Store) Put(ctx context.Context, collection string, doc store.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, position, body, updated_at)
		VALUES (
			$1, $2,
			COALESCE((SELECT MAX(position) + 1 FROM documents WHERE collection = $1), 0),
			$3, now()
		)
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, collection, doc.ID, string(doc.Body))
	return classify(err)
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

var errMalformedBody = errors.New("document body is not valid json")

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return fmt.Errorf("%w: %s", errMalformedBody, pgErr.Message)
	}
	return err
}
