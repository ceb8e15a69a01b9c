package projector

import (
	"context"
	"errors"
)

// DocumentStore executes a batch of write operations as one bulk request.
// A returned error fails the whole batch; retrying the same batch must be safe.
type DocumentStore interface {
	Bulk(ctx context.Context, operations []Operation) error
}

// BatchRequest accumulates the write operations of one processing window.
// It is not safe for concurrent use.
type BatchRequest struct {
	store      DocumentStore
	operations []Operation
}

// NewBatchRequest creates an empty BatchRequest that executes against store.
func NewBatchRequest(store DocumentStore) *BatchRequest {
	return &BatchRequest{
		store:      store,
		operations: make([]Operation, 0),
	}
}

// Add creates or overwrites a document.
func (b *BatchRequest) Add(index, id string, document Document) *BatchRequest {
	return b.AddWithRouting(index, id, document, "")
}

// AddWithRouting creates or overwrites a document stored under a routing key.
func (b *BatchRequest) AddWithRouting(index, id string, document Document, routing string) *BatchRequest {
	b.operations = append(b.operations, Operation{
		Kind:     OpInsert,
		Index:    index,
		ID:       id,
		Routing:  routing,
		Document: document,
	})

	return b
}

// Upsert creates the document if absent, otherwise merges fields into the stored document.
func (b *BatchRequest) Upsert(index, id string, document Document, fields Document) *BatchRequest {
	return b.UpsertWithRouting(index, id, document, fields, "")
}

// UpsertWithRouting is Upsert for documents stored under a routing key.
func (b *BatchRequest) UpsertWithRouting(index, id string, document Document, fields Document, routing string) *BatchRequest {
	b.operations = append(b.operations, Operation{
		Kind:     OpUpsert,
		Index:    index,
		ID:       id,
		Routing:  routing,
		Document: document,
		Fields:   fields,
	})

	return b
}

// UpsertWithPositionGuard creates the document if absent. If present, guard.Fields are always merged,
// guard.GuardedFields only if the stored position is lower than guard.Position.
func (b *BatchRequest) UpsertWithPositionGuard(index, id string, document Document, guard PositionGuard) *BatchRequest {
	return b.UpsertWithPositionGuardAndRouting(index, id, document, guard, "")
}

// UpsertWithPositionGuardAndRouting is UpsertWithPositionGuard for documents stored under a routing key.
func (b *BatchRequest) UpsertWithPositionGuardAndRouting(
	index, id string,
	document Document,
	guard PositionGuard,
	routing string,
) *BatchRequest {

	b.operations = append(b.operations, Operation{
		Kind:     OpUpsertWithPositionGuard,
		Index:    index,
		ID:       id,
		Routing:  routing,
		Document: document,
		Guard:    &guard,
	})

	return b
}

// Update runs a script on the stored document. It is a no-op if the document does not exist.
func (b *BatchRequest) Update(index, id string, script Script) *BatchRequest {
	b.operations = append(b.operations, Operation{
		Kind:   OpUpdate,
		Index:  index,
		ID:     id,
		Script: &script,
	})

	return b
}

// UpdateWithUpsert runs a script on the stored document, or creates it from upsert if absent.
func (b *BatchRequest) UpdateWithUpsert(index, id string, upsert Document, script Script) *BatchRequest {
	b.operations = append(b.operations, Operation{
		Kind:     OpUpdate,
		Index:    index,
		ID:       id,
		Document: upsert,
		Script:   &script,
	})

	return b
}

// Delete removes a document.
func (b *BatchRequest) Delete(index, id string) *BatchRequest {
	return b.DeleteWithRouting(index, id, "")
}

// DeleteWithRouting removes a document stored under a routing key.
func (b *BatchRequest) DeleteWithRouting(index, id, routing string) *BatchRequest {
	b.operations = append(b.operations, Operation{
		Kind:    OpDelete,
		Index:   index,
		ID:      id,
		Routing: routing,
	})

	return b
}

// Len returns the number of accumulated operations.
func (b *BatchRequest) Len() int {
	return len(b.operations)
}

// Operations returns a copy of the accumulated operations in insertion order.
func (b *BatchRequest) Operations() []Operation {
	operations := make([]Operation, len(b.operations))
	copy(operations, b.operations)

	return operations
}

// Execute submits all operations as one bulk request.
// Any failure is reported for the whole batch and wrapped with ErrFlushFailed.
func (b *BatchRequest) Execute(ctx context.Context) error {
	if len(b.operations) == 0 {
		return nil
	}

	if err := validateOperations(b.operations); err != nil {
		return errors.Join(ErrFlushFailed, err)
	}

	if err := b.store.Bulk(ctx, b.operations); err != nil {
		return errors.Join(ErrFlushFailed, err)
	}

	return nil
}

func validateOperations(operations []Operation) error {
	for _, op := range operations {
		if op.Index == "" {
			return ErrEmptyIndexName
		}

		if op.ID == "" {
			return ErrEmptyDocumentID
		}
	}

	return nil
}
