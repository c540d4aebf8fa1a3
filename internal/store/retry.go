package store

import (
	"context"
	"errors"
	"log"
	"time"
)

// Retrying wraps a backend so that every call is attempted up to attempts
// times, sleeping baseDelay, 2*baseDelay, 4*baseDelay... in between.
// ErrNotFound and context errors are returned immediately.
func Retrying(backend Backend, attempts int, baseDelay time.Duration) Backend {
	if attempts < 1 {
		attempts = 1
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &retryBackend{next: backend, attempts: attempts, baseDelay: baseDelay}
}

type retryBackend struct {
	next      Backend
	attempts  int
	baseDelay time.Duration
}

func (r *retryBackend) LoadAll(ctx context.Context, collection string) ([]Document, error) {
	var docs []Document
	err := r.do(ctx, "load "+collection, func() error {
		var err error
		docs, err = r.next.LoadAll(ctx, collection)
		return err
	})
	return docs, err
}

func (r *retryBackend) LoadOne(ctx context.Context, collection string, id string) (Document, error) {
	var doc Document
	err := r.do(ctx, "load "+collection+"/"+id, func() error {
		var err error
		doc, err = r.next.LoadOne(ctx, collection, id)
		return err
	})
	return doc, err
}

func (r *retryBackend) ReplaceAll(ctx context.Context, collection string, docs []Document) error {
	return r.do(ctx, "save "+collection, func() error {
		return r.next.ReplaceAll(ctx, collection, docs)
	})
}

func (r *retryBackend) Put(ctx context.Context, collection string, doc Document) error {
	return r.do(ctx, "put "+collection+"/"+doc.ID, func() error {
		return r.next.Put(ctx, collection, doc)
	})
}

func (r *retryBackend) Delete(ctx context.Context, collection string, id string) error {
	return r.do(ctx, "delete "+collection+"/"+id, func() error {
		return r.next.Delete(ctx, collection, id)
	})
}

func (r *retryBackend) Close() error {
	return r.next.Close()
}

func (r *retryBackend) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay << (attempt - 1)
			log.Printf("[store] WARN: %s attempt %d/%d failed, retrying in %s: %v", op, attempt, r.attempts, delay, err)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
