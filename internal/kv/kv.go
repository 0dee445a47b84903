// Package kv is the client for the household's key-value document store.
// Every value is a JSON document carrying a version stamp; writes are
// compare-and-swap on that stamp, which is what lets the ledger serialize
// concurrent read-modify-write cycles without a relational transaction.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no document exists under the key.
	ErrNotFound = errors.New("kv: document not found")

	// ErrVersionConflict is returned when a Put or Delete loses the CAS:
	// the stored version no longer matches the expected one.
	ErrVersionConflict = errors.New("kv: version conflict")
)

// Document is one stored JSON value plus its optimistic-concurrency token.
type Document struct {
	Key     string
	Value   json.RawMessage
	Version int64
}

// Store is the document store contract. Put with expectedVersion 0 creates
// the document and fails with ErrVersionConflict if it already exists; any
// other expectedVersion must match the stored version exactly.
type Store interface {
	Get(ctx context.Context, key string) (Document, error)
	Put(ctx context.Context, key string, value json.RawMessage, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, key string, expectedVersion int64) error
	List(ctx context.Context, prefix string) ([]Document, error)
	Close() error
}
