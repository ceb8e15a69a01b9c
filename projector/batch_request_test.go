package projector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/projector/memengine"
)

func Test_BatchRequest_Execute_When_Empty_DoesNotCallTheStore(t *testing.T) {
	// setup
	store := memengine.NewDocumentStore()

	// act
	err := NewBatchRequest(store).Execute(context.Background())

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, store.BulkCalls())
}

func Test_BatchRequest_Execute_AppliesAllOperations_InInsertionOrder(t *testing.T) {
	// setup
	store := memengine.NewDocumentStore()

	// arrange
	batch := NewBatchRequest(store).
		Add("process", "1", Document{"name": "first"}).
		Upsert("process", "1", Document{"name": "ignored"}, Document{"version": 2}).
		AddWithRouting("flow-node", "10", Document{"state": "ACTIVE"}, "1").
		Add("process", "2", Document{"name": "second"}).
		Delete("process", "2")

	// act
	err := batch.Execute(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, store.BulkCalls())
	assert.Equal(t, 5, batch.Len())

	doc, found := store.Get("process", "1")
	require.True(t, found)
	assert.Equal(t, "first", doc["name"])
	assert.Equal(t, 2, doc["version"])

	routing, found := store.Routing("flow-node", "10")
	require.True(t, found)
	assert.Equal(t, "1", routing)

	assert.Equal(t, []string{"1"}, store.IDs("process"))
}

func Test_BatchRequest_Operations_ReturnsACopy(t *testing.T) {
	// arrange
	batch := NewBatchRequest(memengine.NewDocumentStore()).Add("process", "1", Document{})

	// act
	operations := batch.Operations()
	operations[0].ID = "changed"

	// assert
	assert.Equal(t, "1", batch.Operations()[0].ID)
	assert.Equal(t, OpInsert, batch.Operations()[0].Kind)
}

func Test_BatchRequest_Builders_SetTheOperationShapes(t *testing.T) {
	// arrange
	guard := PositionGuard{Field: "position", Position: 7, GuardedFields: Document{"state": "ACTIVE"}}
	batch := NewBatchRequest(memengine.NewDocumentStore()).
		UpsertWithPositionGuardAndRouting("list-view", "5", Document{"key": 5}, guard, "1").
		UpdateWithUpsert("auth", "a", Document{"resourceIds": []string{"x"}}, AddValues("resourceIds", "x")).
		Update("auth", "a", RemoveValues("resourceIds", true, "x")).
		DeleteWithRouting("list-view", "5", "1")

	// act
	operations := batch.Operations()

	// assert
	require.Len(t, operations, 4)

	assert.Equal(t, OpUpsertWithPositionGuard, operations[0].Kind)
	assert.Equal(t, "1", operations[0].Routing)
	require.NotNil(t, operations[0].Guard)
	assert.Equal(t, int64(7), operations[0].Guard.Position)

	assert.Equal(t, OpUpdate, operations[1].Kind)
	assert.NotNil(t, operations[1].Document, "update with upsert carries the upsert document")
	assert.Equal(t, ScriptAddValues, operations[1].Script.Kind)

	assert.Equal(t, OpUpdate, operations[2].Kind)
	assert.Nil(t, operations[2].Document)
	assert.True(t, operations[2].Script.DeleteWhenEmpty)

	assert.Equal(t, OpDelete, operations[3].Kind)
	assert.Equal(t, "1", operations[3].Routing)
}

func Test_BatchRequest_Execute_When_StoreFails_NothingIsApplied(t *testing.T) {
	// setup
	store := memengine.NewDocumentStore()
	store.FailNextBulks(1, errors.New("connection reset"))

	// arrange
	batch := NewBatchRequest(store).Add("process", "1", Document{}).Add("process", "2", Document{})

	// act
	err := batch.Execute(context.Background())

	// assert
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.ErrorIs(t, err, memengine.ErrBulkRejected)
	assert.Equal(t, 0, store.Count("process"))
}

func Test_BatchRequest_Execute_When_IndexNameIsEmpty(t *testing.T) {
	// setup
	store := memengine.NewDocumentStore()

	// act
	err := NewBatchRequest(store).Add("", "1", Document{}).Execute(context.Background())

	// assert
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.ErrorIs(t, err, ErrEmptyIndexName)
	assert.Equal(t, 0, store.BulkCalls())
}

func Test_BatchRequest_Execute_When_DocumentIDIsEmpty(t *testing.T) {
	// act
	err := NewBatchRequest(memengine.NewDocumentStore()).Delete("process", "").Execute(context.Background())

	// assert
	assert.ErrorIs(t, err, ErrEmptyDocumentID)
}

func Test_BatchRequest_Execute_When_ContextIsCanceled(t *testing.T) {
	// setup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	err := NewBatchRequest(memengine.NewDocumentStore()).Add("process", "1", Document{}).Execute(ctx)

	// assert
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
