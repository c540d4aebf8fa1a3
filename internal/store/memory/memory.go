// Package memory is an in-process document backend used for development and
// tests. Nothing survives a restart.
package memory

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string][]store.Document
}

func New() *Store {
	return &Store{collections: make(map[string][]store.Document)}
}

// NewSeeded returns a store preloaded with a small salon catalog and staff so
// that a fresh dev server has something to sell.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	products := []domain.Product{
		seedProduct("prd-shampoo", "Shampoo Keratina 500ml", "SH-500", "cuidado", 24, "4.20", "9.50"),
		seedProduct("prd-acond", "Acondicionador Argan 500ml", "AC-500", "cuidado", 18, "4.80", "10.00"),
		seedProduct("prd-tinte-5", "Tinte Castaño Claro 5.0", "TN-50", "color", 30, "3.10", "7.90"),
		seedProduct("prd-tinte-9", "Tinte Rubio Muy Claro 9.0", "TN-90", "color", 12, "3.10", "7.90"),
		seedProduct("prd-oxidante", "Oxidante 20 vol 1L", "OX-20", "color", 10, "2.40", "5.50"),
		seedProduct("svc-corte", "Corte de cabello", "SV-CORTE", "servicio", 9999, "0", "12.00"),
		seedProduct("svc-peinado", "Peinado", "SV-PEIN", "servicio", 9999, "0", "15.00"),
	}
	staff := []domain.Staff{
		{ID: "stf-ana", Name: "Ana", Sales: []domain.StaffSale{}},
		{ID: "stf-lucia", Name: "Lucía", Sales: []domain.StaffSale{}},
	}

	if err := seed(ctx, s, store.CollectionProducts, products); err != nil {
		log.Fatalf("[memory-store] failed to seed products: %v", err)
	}
	if err := seed(ctx, s, store.CollectionStaff, staff); err != nil {
		log.Fatalf("[memory-store] failed to seed staff: %v", err)
	}
	if err := seed(ctx, s, store.CollectionCashRegister, []domain.CashRegister{{
		ID:           domain.CashRegisterID,
		Amount:       decimal.Zero,
		LastModified: domain.FormatTimestamp(time.Now()),
	}}); err != nil {
		log.Fatalf("[memory-store] failed to seed cash register: %v", err)
	}
	return s
}

func seedProduct(id, name, code, category string, qty int, cost, base string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      name,
		Code:      code,
		Category:  category,
		Quantity:  qty,
		CostPrice: decimal.RequireFromString(cost),
		BasePrice: decimal.RequireFromString(base),
	}
}

func seed[T store.Record](ctx context.Context, s *Store, collection string, items []T) error {
	docs := make([]store.Document, 0, len(items))
	for _, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return err
		}
		docs = append(docs, store.Document{ID: item.DocumentID(), Body: body})
	}
	return s.ReplaceAll(ctx, collection, docs)
}

func (s *Store) LoadAll(_ context.Context, collection string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	out := make([]store.Document, len(docs))
	for i, doc := range docs {
		out[i] = clone(doc)
	}
	return out, nil
}

func (s *Store) LoadOne(_ context.Context, collection string, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if doc.ID == id {
			return clone(doc), nil
		}
	}
	return store.Document{}, store.ErrNotFound
}

func (s *Store) ReplaceAll(_ context.Context, collection string, docs []store.Document) error {
	next := make([]store.Document, 0, len(docs))
	seen := make(map[string]int, len(docs))
	for _, doc := range docs {
		if i, ok := seen[doc.ID]; ok {
			next[i] = clone(doc)
			continue
		}
		seen[doc.ID] = len(next)
		next = append(next, clone(doc))
	}

	s.mu.Lock()
	s.collections[collection] = next
	s.mu.Unlock()
	return nil
}

func (s *Store) Put(_ context.Context, collection string, doc store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = clone(doc)
			return nil
		}
	}
	s.collections[collection] = append(docs, clone(doc))
	return nil
}

func (s *Store) Delete(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == id {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) Close() error {
	return nil
}

func clone(doc store.Document) store.Document {
	body := make([]byte, len(doc.Body))
	copy(body, doc.Body)
	return store.Document{ID: doc.ID, Body: body}
}
