package projector

import (
	"time"
)

// ValueType is the coarse event kind of a record's payload (what system concept it describes).
type ValueType string

// Intent is the transition a record represents within its ValueType, e.g. CREATED or ELEMENT_COMPLETED.
type Intent string

// Metadata holds everything about a record except its payload.
//
// Within one partition, Position is strictly increasing in delivery order.
// Across partitions no ordering is guaranteed.
type Metadata struct {
	Key                int64
	Position           int64
	PartitionID        int32
	Timestamp          int64 // epoch milliseconds
	ValueType          ValueType
	Intent             Intent
	TenantID           string
	OperationReference int64 // zero or negative means absent
}

// Time returns the record timestamp as UTC time.
func (m Metadata) Time() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}

// HasOperationReference reports whether the optional operation reference is present.
func (m Metadata) HasOperationReference() bool {
	return m.OperationReference > 0
}

// TypedRecord is one immutable domain event with a payload of type V.
type TypedRecord[V any] struct {
	Metadata
	Value V
}

// Record is the type-erased shape the dispatcher receives.
type Record = TypedRecord[any]

// NewRecord builds a Record from metadata and a payload.
func NewRecord(metadata Metadata, value any) Record {
	return Record{Metadata: metadata, Value: value}
}

// AsTyped narrows a Record to a TypedRecord[V]. It reports false if the payload is not a V.
func AsTyped[V any](record Record) (TypedRecord[V], bool) {
	value, ok := record.Value.(V)
	if !ok {
		return TypedRecord[V]{}, false
	}

	return TypedRecord[V]{Metadata: record.Metadata, Value: value}, true
}
