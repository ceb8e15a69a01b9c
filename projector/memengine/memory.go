// Package memengine provides an in-memory projector.DocumentStore.
//
// It applies operations with the reference semantics of projector.Operation.Apply
// and is meant for tests, replays and local development.
package memengine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

var ErrBulkRejected = errors.New("bulk request rejected")

type documentKey struct {
	index string
	id    string
}

type storedDocument struct {
	routing  string
	document projector.Document
}

// DocumentStore is a thread-safe in-memory document store.
// A Bulk call is applied atomically: either all operations are applied or none.
type DocumentStore struct {
	mu            sync.RWMutex
	documents     map[documentKey]storedDocument
	failNextBulks int
	failWith      error
	bulkCalls     int
}

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[documentKey]storedDocument)}
}

// Bulk applies all operations in order.
func (s *DocumentStore) Bulk(ctx context.Context, operations []projector.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bulkCalls++

	if s.failNextBulks > 0 {
		s.failNextBulks--
		return errors.Join(ErrBulkRejected, s.failWith)
	}

	next := make(map[documentKey]storedDocument, len(s.documents))
	for key, stored := range s.documents {
		next[key] = stored
	}

	for _, op := range operations {
		applyOperation(next, op)
	}

	s.documents = next

	return nil
}

func applyOperation(documents map[documentKey]storedDocument, op projector.Operation) {
	key := documentKey{index: op.Index, id: op.ID}
	stored, exists := documents[key]

	// a routed delete only addresses the document stored under the same routing key
	if op.Kind == projector.OpDelete && exists && op.Routing != "" && stored.routing != op.Routing {
		return
	}

	next, keep := op.Apply(stored.document, exists)
	if !keep {
		delete(documents, key)
		return
	}

	routing := stored.routing
	if !exists || op.Routing != "" {
		routing = op.Routing
	}

	documents[key] = storedDocument{routing: routing, document: next}
}

// Get returns a copy of the stored document.
func (s *DocumentStore) Get(index, id string) (projector.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.documents[documentKey{index: index, id: id}]
	if !ok {
		return nil, false
	}

	return stored.document.Clone(), true
}

// Routing returns the routing key the document is stored under.
func (s *DocumentStore) Routing(index, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.documents[documentKey{index: index, id: id}]

	return stored.routing, ok
}

// IDs returns the sorted ids of all documents of an index.
func (s *DocumentStore) IDs(index string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for key := range s.documents {
		if key.index == index {
			ids = append(ids, key.id)
		}
	}

	sort.Strings(ids)

	return ids
}

// Count returns the number of documents of an index.
func (s *DocumentStore) Count(index string) int {
	return len(s.IDs(index))
}

// FailNextBulks makes the next n Bulk calls fail with cause, without applying anything.
func (s *DocumentStore) FailNextBulks(n int, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNextBulks = n
	s.failWith = cause
}

// BulkCalls returns the number of Bulk calls so far, including failed ones.
func (s *DocumentStore) BulkCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bulkCalls
}

var _ projector.DocumentStore = (*DocumentStore)(nil)
