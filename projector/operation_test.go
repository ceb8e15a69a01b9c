package projector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/process-projector-go/projector"
)

func guardedUpsert(position int64, fields, guarded Document) Operation {
	return Operation{
		Kind:     OpUpsertWithPositionGuard,
		Index:    "list-view",
		ID:       "42",
		Document: Document{"key": int64(42)},
		Guard: &PositionGuard{
			Field:         "position",
			Position:      position,
			Fields:        fields,
			GuardedFields: guarded,
		},
	}
}

func applyInOrder(start Document, exists bool, operations ...Operation) (Document, bool) {
	doc, ok := start, exists
	for _, op := range operations {
		doc, ok = op.Apply(doc, ok)
	}

	return doc, ok
}

func Test_Apply_When_Insert_OverwritesTheStoredDocument(t *testing.T) {
	// arrange
	op := Operation{Kind: OpInsert, Index: "process", ID: "1", Document: Document{"name": "new"}}

	// act
	doc, exists := op.Apply(Document{"name": "old", "other": "field"}, true)

	// assert
	assert.True(t, exists)
	assert.Equal(t, Document{"name": "new"}, doc)
}

func Test_Apply_When_Upsert_And_DocumentIsAbsent_CreatesIt(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpsert, Index: "i", ID: "1", Document: Document{"a": 1}, Fields: Document{"b": 2}}

	// act
	doc, exists := op.Apply(nil, false)

	// assert
	assert.True(t, exists)
	assert.Equal(t, Document{"a": 1, "b": 2}, doc)
}

func Test_Apply_When_Upsert_And_DocumentIsPresent_MergesOnlyTheGivenFields(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpsert, Index: "i", ID: "1", Document: Document{"a": "default"}, Fields: Document{"b": 2}}

	// act
	doc, exists := op.Apply(Document{"a": "owned by another handler", "b": 1}, true)

	// assert
	assert.True(t, exists)
	assert.Equal(t, Document{"a": "owned by another handler", "b": 2}, doc)
}

func Test_Apply_When_GuardedUpsert_And_DocumentIsAbsent_CreatesItWithPosition(t *testing.T) {
	// arrange
	op := guardedUpsert(10, Document{"startDate": "t1"}, Document{"state": "ACTIVE"})

	// act
	doc, exists := op.Apply(nil, false)

	// assert
	assert.True(t, exists)
	assert.Equal(t, Document{"key": int64(42), "startDate": "t1", "state": "ACTIVE", "position": int64(10)}, doc)
}

func Test_Apply_When_GuardedUpsert_With_OlderPosition_KeepsTheGuardedFields(t *testing.T) {
	// arrange
	stored := Document{"state": "COMPLETED", "endDate": "t2", "position": int64(20)}
	op := guardedUpsert(10, Document{"startDate": "t1"}, Document{"state": "ACTIVE"})

	// act
	doc, _ := op.Apply(stored, true)

	// assert
	assert.Equal(t, "COMPLETED", doc["state"])
	assert.Equal(t, "t1", doc["startDate"], "unguarded fields are always merged")
	position, _ := doc.Int64("position")
	assert.Equal(t, int64(20), position)
}

func Test_Apply_When_GuardedUpsert_With_MissingStoredPosition_AppliesTheGuardedFields(t *testing.T) {
	// arrange
	stored := Document{"state": "ACTIVE"}
	op := guardedUpsert(5, nil, Document{"state": "COMPLETED"})

	// act
	doc, _ := op.Apply(stored, true)

	// assert
	assert.Equal(t, "COMPLETED", doc["state"])
	assert.Equal(t, int64(5), doc["position"])
}

func Test_Apply_When_GuardedUpsert_With_NonNumericStoredPosition_AppliesTheGuardedFields(t *testing.T) {
	// arrange
	stored := Document{"state": "ACTIVE", "position": "25"}
	op := guardedUpsert(20, nil, Document{"state": "COMPLETED"})

	// act
	doc, _ := op.Apply(stored, true)

	// assert
	assert.Equal(t, "COMPLETED", doc["state"], "a position stored as string counts as lower")
	assert.Equal(t, int64(20), doc["position"])
	assert.True(t, StoredPositionIsLower(stored, "position", 20))
}

func Test_Apply_When_GuardedUpsert_IsReplayed_TheResultIsUnchanged(t *testing.T) {
	// arrange
	ops := []Operation{
		guardedUpsert(10, Document{"startDate": "t1"}, Document{"state": "ACTIVE"}),
		guardedUpsert(20, nil, Document{"state": "COMPLETED", "endDate": "t2"}),
	}

	for _, op := range ops {
		// act
		once, _ := op.Apply(Document{"position": int64(15), "state": "X"}, true)
		twice, _ := op.Apply(once, true)

		// assert
		assert.Equal(t, once, twice)
	}
}

func Test_Apply_When_ConflictingGuardedUpserts_ArriveInAnyOrder_TheNewerPositionWins(t *testing.T) {
	// arrange
	older := guardedUpsert(10, Document{"startDate": "t1"}, Document{"state": "ACTIVE"})
	newer := guardedUpsert(20, nil, Document{"state": "COMPLETED", "endDate": "t2"})

	// act
	inOrder, _ := applyInOrder(nil, false, older, newer)
	outOfOrder, _ := applyInOrder(nil, false, newer, older)

	// assert
	assert.Equal(t, inOrder, outOfOrder)
	assert.Equal(t, "COMPLETED", outOfOrder["state"])
	assert.Equal(t, "t1", outOfOrder["startDate"])
	assert.Equal(t, "t2", outOfOrder["endDate"])
}

func Test_Apply_When_AddValues_DoesASetUnion(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpdate, Index: "i", ID: "1", Script: ptr(AddValues("resourceIds", "b", "c"))}

	// act
	once, _ := op.Apply(Document{"resourceIds": []any{"a", "b"}}, true)
	twice, _ := op.Apply(once, true)

	// assert
	assert.Equal(t, []string{"a", "b", "c"}, once.Strings("resourceIds"))
	assert.Equal(t, once, twice)
}

func Test_Apply_When_Update_And_DocumentIsAbsent_WithoutUpsert_IsANoOp(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpdate, Index: "i", ID: "1", Script: ptr(AddValues("resourceIds", "a"))}

	// act
	doc, exists := op.Apply(nil, false)

	// assert
	assert.False(t, exists)
	assert.Nil(t, doc)
}

func Test_Apply_When_Update_And_DocumentIsAbsent_WithUpsert_CreatesTheUpsertDocument(t *testing.T) {
	// arrange
	op := Operation{
		Kind:     OpUpdate,
		Index:    "i",
		ID:       "1",
		Document: Document{"resourceIds": []string{"a"}},
		Script:   ptr(AddValues("resourceIds", "a")),
	}

	// act
	doc, exists := op.Apply(nil, false)

	// assert
	assert.True(t, exists)
	assert.Equal(t, []string{"a"}, doc.Strings("resourceIds"))
}

func Test_Apply_When_RemoveValues_LeavesAnEmptyList_And_DeleteWhenEmpty_DeletesTheDocument(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpdate, Index: "i", ID: "1", Script: ptr(RemoveValues("resourceIds", true, "a"))}

	// act
	doc, exists := op.Apply(Document{"resourceIds": []string{"a"}}, true)

	// assert
	assert.False(t, exists)
	assert.Nil(t, doc)
}

func Test_Apply_When_RemoveValues_LeavesAnEmptyList_Without_DeleteWhenEmpty_KeepsTheDocument(t *testing.T) {
	// arrange
	op := Operation{Kind: OpUpdate, Index: "i", ID: "1", Script: ptr(RemoveValues("resourceIds", false, "a"))}

	// act
	doc, exists := op.Apply(Document{"resourceIds": []string{"a"}}, true)

	// assert
	assert.True(t, exists)
	assert.Empty(t, doc.Strings("resourceIds"))
}

func Test_Apply_When_Delete_IsReplayed_TheDocumentStaysAbsent(t *testing.T) {
	// arrange
	op := Operation{Kind: OpDelete, Index: "i", ID: "1"}

	// act
	doc, exists := applyInOrder(Document{"a": 1}, true, op, op)

	// assert
	assert.False(t, exists)
	assert.Nil(t, doc)
}

func Test_Apply_DoesNotMutateTheCurrentDocument(t *testing.T) {
	// arrange
	current := Document{"resourceIds": []string{"a"}, "state": "ACTIVE", "position": int64(1)}
	ops := []Operation{
		{Kind: OpUpsert, Index: "i", ID: "1", Fields: Document{"state": "X"}},
		guardedUpsert(2, Document{"state": "Y"}, nil),
		{Kind: OpUpdate, Index: "i", ID: "1", Script: ptr(AddValues("resourceIds", "b"))},
	}

	for _, op := range ops {
		// act
		_, _ = op.Apply(current, true)

		// assert
		assert.Equal(t, Document{"resourceIds": []string{"a"}, "state": "ACTIVE", "position": int64(1)}, current)
	}
}

func Test_OperationKind_String(t *testing.T) {
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "upsert_position_guard", OpUpsertWithPositionGuard.String())
	assert.Equal(t, "unknown(99)", OperationKind(99).String())
}

func ptr[T any](v T) *T {
	return &v
}
