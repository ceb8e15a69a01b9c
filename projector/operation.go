package projector

import (
	"fmt"
)

// OperationKind is the closed set of write semantics a handler can choose from.
type OperationKind int

const (
	// OpInsert creates the document or overwrites it completely.
	OpInsert OperationKind = iota + 1

	// OpUpsert creates the document if absent, otherwise shallow-merges Fields into the stored document.
	OpUpsert

	// OpUpsertWithPositionGuard creates the document if absent. If present, Fields are always merged
	// while GuardedFields and the position field are merged only if the incoming position
	// is greater than the stored one.
	OpUpsertWithPositionGuard

	// OpUpdate runs a Script on the stored document. An absent document is created from
	// Document if one is given, otherwise the operation is a no-op.
	OpUpdate

	// OpDelete removes the document.
	OpDelete
)

func (k OperationKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpsert:
		return "upsert"
	case OpUpsertWithPositionGuard:
		return "upsert_position_guard"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// PositionGuard describes a conditional merge keyed on a monotonic position field.
type PositionGuard struct {
	Field         string   // name of the stored position field
	Position      int64    // incoming position
	Fields        Document // merged unconditionally
	GuardedFields Document // merged only if the stored position is lower than Position
}

// ScriptKind is the closed set of server-side mutations.
type ScriptKind int

const (
	// ScriptAddValues adds values to a string list field (set union).
	ScriptAddValues ScriptKind = iota + 1

	// ScriptRemoveValues removes values from a string list field (set difference).
	ScriptRemoveValues
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptAddValues:
		return "add_values"
	case ScriptRemoveValues:
		return "remove_values"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Script is a named server-side mutation with its parameters.
type Script struct {
	Kind            ScriptKind
	Field           string
	Values          []string
	DeleteWhenEmpty bool // only for ScriptRemoveValues
}

// AddValues builds a script that adds values to a list field.
func AddValues(field string, values ...string) Script {
	return Script{Kind: ScriptAddValues, Field: field, Values: values}
}

// RemoveValues builds a script that removes values from a list field.
// With deleteWhenEmpty the whole document is deleted once the list becomes empty.
func RemoveValues(field string, deleteWhenEmpty bool, values ...string) Script {
	return Script{Kind: ScriptRemoveValues, Field: field, Values: values, DeleteWhenEmpty: deleteWhenEmpty}
}

// Operation is one write against the document store.
type Operation struct {
	Kind     OperationKind
	Index    string
	ID       string
	Routing  string   // optional parent sharding key
	Document Document // insert: the document; upserts: the document created if absent; update: optional upsert document
	Fields   Document // upsert: fields merged if present
	Guard    *PositionGuard
	Script   *Script
}

// Apply computes the document state after this operation, given the current state.
// It reports false as second value if the document does not exist afterward.
//
// Apply is idempotent: applying the same operation twice yields the state of applying it once.
func (op Operation) Apply(current Document, exists bool) (Document, bool) {
	switch op.Kind {
	case OpInsert:
		return op.createDocument(), true

	case OpUpsert:
		if !exists {
			return op.createDocument(), true
		}
		return current.Clone().Merge(op.Fields), true

	case OpUpsertWithPositionGuard:
		return op.applyPositionGuard(current, exists)

	case OpUpdate:
		return op.applyScript(current, exists)

	case OpDelete:
		return nil, false

	default:
		return current, exists
	}
}

func (op Operation) createDocument() Document {
	doc := make(Document)
	doc.Merge(op.Document)
	doc.Merge(op.Fields)

	if op.Guard != nil {
		doc.Merge(op.Guard.Fields)
		doc.Merge(op.Guard.GuardedFields)
		doc[op.Guard.Field] = op.Guard.Position
	}

	return doc.Clone()
}

func (op Operation) applyPositionGuard(current Document, exists bool) (Document, bool) {
	if !exists {
		return op.createDocument(), true
	}

	next := current.Clone()
	if op.Guard == nil {
		return next.Merge(op.Fields), true
	}

	next.Merge(op.Guard.Fields)

	if StoredPositionIsLower(current, op.Guard.Field, op.Guard.Position) {
		next.Merge(op.Guard.GuardedFields.Clone())
		next[op.Guard.Field] = op.Guard.Position
	}

	return next, true
}

func (op Operation) applyScript(current Document, exists bool) (Document, bool) {
	if !exists {
		if op.Document == nil {
			return nil, false
		}
		return op.Document.Clone(), true
	}

	next := current.Clone()
	if op.Script == nil {
		return next, true
	}

	stored := asStrings(current[op.Script.Field])

	switch op.Script.Kind {
	case ScriptAddValues:
		next[op.Script.Field] = unionValues(stored, op.Script.Values)

	case ScriptRemoveValues:
		remaining := differenceValues(stored, op.Script.Values)
		if len(remaining) == 0 && op.Script.DeleteWhenEmpty {
			return nil, false
		}
		next[op.Script.Field] = remaining
	}

	return next, true
}

// StoredPositionIsLower reports whether the position stored in field is lower than incoming.
// A missing or non-numeric stored position counts as lower.
func StoredPositionIsLower(stored Document, field string, incoming int64) bool {
	position, ok := asInt64(stored[field])
	if !ok {
		return true
	}

	return position < incoming
}

func unionValues(stored, values []string) []string {
	result := make([]string, 0, len(stored)+len(values))
	seen := make(map[string]struct{}, len(stored)+len(values))

	for _, list := range [][]string{stored, values} {
		for _, value := range list {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			result = append(result, value)
		}
	}

	return result
}

func differenceValues(stored, values []string) []string {
	remove := make(map[string]struct{}, len(values))
	for _, value := range values {
		remove[value] = struct{}{}
	}

	result := make([]string, 0, len(stored))
	for _, value := range stored {
		if _, ok := remove[value]; !ok {
			result = append(result, value)
		}
	}

	return result
}
