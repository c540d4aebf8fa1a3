// Package store persists domain records as JSON documents grouped in named
// collections. Backends only move opaque documents; Collection does the typing.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

const (
	CollectionSales        = "sales"
	CollectionProducts     = "products"
	CollectionStaff        = "staff"
	CollectionClients      = "clients"
	CollectionExpenses     = "expenses"
	CollectionCredits      = "credits"
	CollectionCashRegister = "cash_register"
	CollectionAuditLogs    = "audit_logs"
	CollectionUsers        = "users"
)

// Document is one stored record. Body is the JSON encoding of the record.
type Document struct {
	ID   string
	Body []byte
}

// Backend is a per-collection document store. LoadAll returns documents in the
// order they were last written by ReplaceAll (Put appends new ids at the end).
type Backend interface {
	LoadAll(ctx context.Context, collection string) ([]Document, error)
	LoadOne(ctx context.Context, collection string, id string) (Document, error)
	// ReplaceAll upserts docs and deletes every other document of the
	// collection. Repeating the same call leaves the same state.
	ReplaceAll(ctx context.Context, collection string, docs []Document) error
	Put(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection string, id string) error
	Close() error
}
