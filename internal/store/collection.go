package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Record is anything that can be stored in a Collection.
type Record interface {
	DocumentID() string
}

// Collection is a typed view over one backend collection.
type Collection[T Record] struct {
	name    string
	backend Backend
}

func NewCollection[T Record](backend Backend, name string) *Collection[T] {
	return &Collection[T]{name: name, backend: backend}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// Load never fails: a backend error yields an empty slice and a log line, and
// documents that do not decode are skipped.
func (c *Collection[T]) Load(ctx context.Context) []T {
	docs, err := c.backend.LoadAll(ctx, c.name)
	if err != nil {
		log.Printf("[store] WARN: load %s failed, using empty collection: %v", c.name, err)
		return []T{}
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Body, &item); err != nil {
			log.Printf("[store] WARN: skipping malformed %s document id=%s: %v", c.name, doc.ID, err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	doc, err := c.backend.LoadOne(ctx, c.name, id)
	if err != nil {
		return item, err
	}
	if err := json.Unmarshal(doc.Body, &item); err != nil {
		return item, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return item, nil
}

// Save replaces the whole collection with items, in order.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := encode(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}
		docs = append(docs, doc)
	}
	return c.backend.ReplaceAll(ctx, c.name, docs)
}

func (c *Collection[T]) Put(ctx context.Context, item T) error {
	doc, err := encode(item)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	return c.backend.Put(ctx, c.name, doc)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, c.name, id)
}

func encode[T Record](item T) (Document, error) {
	id := item.DocumentID()
	if id == "" {
		return Document{}, errors.New("document id is empty")
	}
	body, err := json.Marshal(item)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Body: body}, nil
}

// Singleton is a collection holding exactly one document under a fixed id.
type Singleton[T Record] struct {
	coll     *Collection[T]
	id       string
	fallback func() T
}

func NewSingleton[T Record](backend Backend, name string, id string, fallback func() T) *Singleton[T] {
	return &Singleton[T]{coll: NewCollection[T](backend, name), id: id, fallback: fallback}
}

// Get returns the stored document, or the fallback when it is absent or
// unreadable.
func (s *Singleton[T]) Get(ctx context.Context) T {
	item, err := s.coll.Get(ctx, s.id)
	if err == nil {
		return item
	}
	if !errors.Is(err, ErrNotFound) {
		log.Printf("[store] WARN: load %s/%s failed, using default: %v", s.coll.name, s.id, err)
	}
	return s.fallback()
}

func (s *Singleton[T]) Set(ctx context.Context, item T) error {
	if got := item.DocumentID(); got != s.id {
		return fmt.Errorf("%s only stores id %q, got %q", s.coll.name, s.id, got)
	}
	return s.coll.Put(ctx, item)
}
