package projector

import (
	"errors"
	"fmt"
	"slices"
)

// Registry routes records to the handlers registered for their ValueType.
// It is immutable after Build and safe for concurrent use.
type Registry struct {
	handlers map[ValueType][]BoundHandler
}

// RegistryBuilder collects handlers at startup.
type RegistryBuilder struct {
	handlers []BoundHandler
}

// NewRegistryBuilder creates an empty RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{handlers: make([]BoundHandler, 0)}
}

// With registers a handler. Registration order is kept per ValueType.
func (b *RegistryBuilder) With(handler BoundHandler) *RegistryBuilder {
	b.handlers = append(b.handlers, handler)
	return b
}

// Build validates the registrations and returns the Registry.
// Two handlers with the same ValueType and EntityType are rejected.
func (b *RegistryBuilder) Build() (Registry, error) {
	type handlerKey struct {
		valueType  ValueType
		entityType string
	}

	seen := make(map[handlerKey]struct{}, len(b.handlers))
	byValueType := make(map[ValueType][]BoundHandler)

	for _, handler := range b.handlers {
		key := handlerKey{valueType: handler.HandledValueType(), entityType: handler.EntityType()}
		if _, exists := seen[key]; exists {
			return Registry{}, errors.Join(
				ErrDuplicateHandler,
				fmt.Errorf("value type %s, entity type %s", key.valueType, key.entityType),
			)
		}

		seen[key] = struct{}{}
		byValueType[key.valueType] = append(byValueType[key.valueType], handler)
	}

	return Registry{handlers: byValueType}, nil
}

// HandlersFor returns the handlers whose ValueType matches the record and which accept it.
func (r Registry) HandlersFor(record Record) []BoundHandler {
	candidates := r.handlers[record.ValueType]
	accepted := make([]BoundHandler, 0, len(candidates))

	for _, handler := range candidates {
		if handler.HandlesRecord(record) {
			accepted = append(accepted, handler)
		}
	}

	return accepted
}

// ValueTypes returns the sorted set of value types that have at least one handler.
func (r Registry) ValueTypes() []ValueType {
	valueTypes := make([]ValueType, 0, len(r.handlers))
	for valueType := range r.handlers {
		valueTypes = append(valueTypes, valueType)
	}

	slices.Sort(valueTypes)

	return valueTypes
}

// Len returns the number of registered handlers.
func (r Registry) Len() int {
	count := 0
	for _, handlers := range r.handlers {
		count += len(handlers)
	}

	return count
}
