package projector

import (
	"errors"
	"fmt"
)

// ExportHandler owns exactly one (record kind x entity kind) mapping.
//
// The engine calls, per accepted record and per generated id:
// CreateNewEntity (unless the entity is already buffered in the window), UpdateEntity, and once
// per window Flush. UpdateEntity must not fail for absent optional fields; sentinel values
// (zero or negative keys) mean "leave unset". A returned error marks the record as malformed for
// this entity, and the engine skips it.
//
// Handlers must not block other than on reference cache reads.
type ExportHandler[V any, E Entity] interface {
	HandledValueType() ValueType
	EntityType() string
	IndexName() string
	HandlesRecord(record TypedRecord[V]) bool
	GenerateIDs(record TypedRecord[V]) []string
	CreateNewEntity(id string) E
	UpdateEntity(record TypedRecord[V], entity E) error
	Flush(entity E, batch *BatchRequest) error
}

// BoundHandler is an ExportHandler with its type parameters erased, as stored in a Registry.
type BoundHandler interface {
	HandledValueType() ValueType
	EntityType() string
	IndexName() string
	HandlesRecord(record Record) bool
	GenerateIDs(record Record) []string
	CreateNewEntity(id string) Entity
	UpdateEntity(record Record, entity Entity) error
	Flush(entity Entity, batch *BatchRequest) error
}

// Bind erases the type parameters of handler so it can be registered.
func Bind[V any, E Entity](handler ExportHandler[V, E]) BoundHandler {
	return boundHandler[V, E]{handler: handler}
}

type boundHandler[V any, E Entity] struct {
	handler ExportHandler[V, E]
}

func (b boundHandler[V, E]) HandledValueType() ValueType {
	return b.handler.HandledValueType()
}

func (b boundHandler[V, E]) EntityType() string {
	return b.handler.EntityType()
}

func (b boundHandler[V, E]) IndexName() string {
	return b.handler.IndexName()
}

func (b boundHandler[V, E]) HandlesRecord(record Record) bool {
	typed, ok := AsTyped[V](record)
	if !ok {
		return false
	}

	return b.handler.HandlesRecord(typed)
}

func (b boundHandler[V, E]) GenerateIDs(record Record) []string {
	typed, ok := AsTyped[V](record)
	if !ok {
		return nil
	}

	return b.handler.GenerateIDs(typed)
}

func (b boundHandler[V, E]) CreateNewEntity(id string) Entity {
	return b.handler.CreateNewEntity(id)
}

func (b boundHandler[V, E]) UpdateEntity(record Record, entity Entity) error {
	typed, ok := AsTyped[V](record)
	if !ok {
		return errors.Join(ErrUnexpectedPayload, fmt.Errorf("got %T", record.Value))
	}

	typedEntity, ok := entity.(E)
	if !ok {
		return errors.Join(ErrUnexpectedEntity, fmt.Errorf("got %T", entity))
	}

	return b.handler.UpdateEntity(typed, typedEntity)
}

func (b boundHandler[V, E]) Flush(entity Entity, batch *BatchRequest) error {
	typedEntity, ok := entity.(E)
	if !ok {
		return errors.Join(ErrUnexpectedEntity, fmt.Errorf("got %T", entity))
	}

	return b.handler.Flush(typedEntity, batch)
}
