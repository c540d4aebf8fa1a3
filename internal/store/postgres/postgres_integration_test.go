package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"salonpos/backend/internal/store"
)

func TestReplaceAllRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("SALONPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SALONPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	collection := fmt.Sprintf("it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, collection)
	})

	first := []store.Document{
		{ID: "b", Body: []byte(`{"n":1}`)},
		{ID: "a", Body: []byte(`{"n":2}`)},
		{ID: "c", Body: []byte(`{"n":3}`)},
	}
	if err := s.ReplaceAll(ctx, collection, first); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if err := s.ReplaceAll(ctx, collection, first[:2]); err != nil {
		t.Fatalf("replace all again: %v", err)
	}

	docs, err := s.LoadAll(ctx, collection)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].ID != "a" {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	if err := s.Put(ctx, collection, store.Document{ID: "d", Body: []byte(`{"n":4}`)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	docs, _ = s.LoadAll(ctx, collection)
	if len(docs) != 3 || docs[2].ID != "d" {
		t.Fatalf("expected put to append, got %+v", docs)
	}

	if err := s.Delete(ctx, collection, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadOne(ctx, collection, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, collection, store.Document{ID: "bad", Body: []byte(`{`)}); !errors.Is(err, errMalformedBody) {
		t.Fatalf("expected malformed body error, got %v", err)
	}
}
