package postgresengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const storedDocColumn = `"projector_documents"."doc"`

func Test_Build_Insert_OverwritesTheStoredDocument(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{
		Kind:     projector.OpInsert,
		Index:    "list-view",
		ID:       "11",
		Routing:  "1",
		Document: projector.Document{"state": "ACTIVE"},
	})

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(statement, `INSERT INTO "projector_documents"`))
	assert.Contains(t, statement, `'{"state":"ACTIVE"}'::jsonb`)
	assert.Contains(t, statement, "ON CONFLICT (index_name, id) DO UPDATE SET")
	assert.Contains(t, statement, "EXCLUDED.doc")
	assert.Contains(t, statement, "CASE WHEN EXCLUDED.routing = '' THEN")
}

func Test_Build_Upsert_MergesFieldsIntoTheStoredDocument(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{
		Kind:     projector.OpUpsert,
		Index:    "process",
		ID:       "100",
		Document: projector.Document{"bpmnProcessId": "order", "version": 1},
		Fields:   projector.Document{"version": 1},
	})

	// assert
	require.NoError(t, err)
	assert.Contains(t, statement, `'{"bpmnProcessId":"order","version":1}'::jsonb`)
	assert.Contains(t, statement, storedDocColumn+` || '{"version":1}'::jsonb`)
}

func Test_Build_PositionGuard_OnlyMergesGuardedFieldsForNewerPositions(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{
		Kind:     projector.OpUpsertWithPositionGuard,
		Index:    "list-view",
		ID:       "1",
		Document: projector.Document{"state": "COMPLETED"},
		Guard: &projector.PositionGuard{
			Field:         "position",
			Position:      12,
			Fields:        projector.Document{"endDate": "now"},
			GuardedFields: projector.Document{"state": "COMPLETED"},
		},
	})

	// assert
	require.NoError(t, err)
	assert.Contains(t, statement, `'{"endDate":"now","position":12,"state":"COMPLETED"}'::jsonb`, "created documents carry every field")
	assert.Contains(t, statement, "("+storedDocColumn+` || '{"endDate":"now"}'::jsonb)`)
	assert.Contains(t, statement, "WHEN jsonb_typeof("+storedDocColumn+" -> 'position') IS DISTINCT FROM 'number'")
	assert.Contains(t, statement, "WHEN ("+storedDocColumn+` ->> 'position')::numeric < 12 THEN '{"position":12,"state":"COMPLETED"}'::jsonb`)
}

func Test_Build_Update_WithoutUpsertDocument_NeverCreatesADocument(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{
		Kind:   projector.OpUpdate,
		Index:  "authorization",
		ID:     "7-PROCESS-READ",
		Script: &projector.Script{Kind: projector.ScriptAddValues, Field: "resourceIds", Values: []string{"order"}},
	})

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(statement, `UPDATE "projector_documents" SET`))
	assert.NotContains(t, statement, "INSERT")
	assert.Contains(t, statement, `jsonb_array_elements_text('["order"]'::jsonb)`)
}

func Test_Build_RemoveValues_DeletesDocumentsLeftEmpty(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{
		Kind:  projector.OpUpdate,
		Index: "authorization",
		ID:    "7-PROCESS-READ",
		Script: &projector.Script{
			Kind:            projector.ScriptRemoveValues,
			Field:           "resourceIds",
			Values:          []string{"order"},
			DeleteWhenEmpty: true,
		},
	})

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(statement, `WITH removed AS (DELETE FROM "projector_documents"`))
	assert.Contains(t, statement, "= '[]'::jsonb")
	assert.Contains(t, statement, "NOT EXISTS (SELECT 1 FROM removed)")
}

func Test_Build_RoutedDelete_OnlyMatchesTheRoutingKey(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{Kind: projector.OpDelete, Index: "list-view", ID: "11", Routing: "1"})

	// assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(statement, `DELETE FROM "projector_documents"`))
	assert.Contains(t, statement, `("routing" = '1')`)
}

func Test_Build_EscapesQuotesInValues(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	statement, err := builder.build(projector.Operation{Kind: projector.OpDelete, Index: "list-view", ID: "it's"})

	// assert
	require.NoError(t, err)
	assert.Contains(t, statement, `'it''s'`)
}

func Test_Build_When_OperationKindIsUnknown(t *testing.T) {
	// setup
	builder := newStatementBuilder(defaultDocumentTableName)

	// act
	_, err := builder.build(projector.Operation{Kind: projector.OperationKind(42), Index: "i", ID: "1"})

	// assert
	assert.ErrorIs(t, err, projector.ErrBuildingStatementFailed)
}

func Test_SelectIDs_OrdersByteWise(t *testing.T) {
	// setup
	builder := newStatementBuilder("docs")

	// act
	sqlQuery, err := builder.selectIDs("message-subscription")

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "docs"`)
	assert.Contains(t, sqlQuery, `COLLATE "C"`)
}
