// Package docstore defines the keyed-document contract the game core consumes:
// get/set/update/delete plus watch-for-changes and field-equals queries.
// Updates take a transform so every mutation is an atomic read-modify-write;
// there is no whole-document last-write-wins path.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store closed")
)

// Snapshot is the full document state delivered to a watcher at a point in
// time. Exists is false exactly once, when the document is deleted.
type Snapshot struct {
	ID     string
	Data   []byte
	Exists bool
}

// Document pairs an id with its current contents, as returned by Query.
type Document struct {
	ID   string
	Data []byte
}

// Transform produces the next document contents from the current ones. It
// runs under the store's write isolation for that document; returning an
// error aborts the update and leaves the document unchanged.
type Transform func(current []byte) ([]byte, error)

type Store interface {
	// Create stores data under a fresh store-assigned id.
	Create(ctx context.Context, collection string, data []byte) (string, error)

	// Get returns the current contents, or ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)

	// Update atomically replaces the document with transform(current) and
	// returns the new contents. ErrNotFound if the document is missing.
	Update(ctx context.Context, collection, id string, transform Transform) ([]byte, error)

	// Delete removes the document. Deleting a missing document is an error.
	Delete(ctx context.Context, collection, id string) error

	// Watch subscribes to a document. The current snapshot is delivered
	// immediately (Exists false if the document does not exist yet), then
	// one snapshot per subsequent write, then a final Exists=false on
	// delete. The returned stop function releases the subscription.
	Watch(ctx context.Context, collection, id string) (<-chan Snapshot, func(), error)

	// Query returns all documents whose top-level string field equals value.
	Query(ctx context.Context, collection, field, value string) ([]Document, error)
}
