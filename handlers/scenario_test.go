package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/handlers"
	"github.com/AntonStoeckl/process-projector-go/records"
	"github.com/AntonStoeckl/process-projector-go/testutil/fixtures"
)

func Test_Scenario_RootProcessInstanceActivating_IsProjectedAsActive(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)
	writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 10, records.IntentElementActivating, instance))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "1")
	assert.Equal(t, StateActive, doc[FieldState])
	assert.Equal(t, "PI_1", doc["treePath"])
	assert.Equal(t, dateOfPosition10, doc["startDate"])
	assert.Equal(t, int64(10), int64Field(t, doc, FieldPosition))
	assert.NotContains(t, doc, FieldEndDate)
}

func Test_Scenario_ReplayingAWindow_YieldsAnIdenticalDocument(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)

	window := func() {
		writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 10, records.IntentElementActivating, instance))
		writer.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 20, records.IntentElementCompleted, instance))
	}

	// arrange
	window()
	require.NoError(t, writer.Flush(ctx), "error in arranging test data")
	first := p.document(t, IndexListView, "1")

	// act
	window()
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	second := p.document(t, IndexListView, "1")
	assert.Equal(t, first, second)
	assert.Equal(t, StateCompleted, second[FieldState])
	assert.Equal(t, dateOfPosition20, second[FieldEndDate])
	assert.Equal(t, dateOfPosition10, second["startDate"])
}

func Test_Scenario_CompletionFlushedBeforeActivation_KeepsCompletedState_AndMergesStartDate(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	completingWriter := p.newWriter(t)
	activatingWriter := p.newWriter(t)
	instance := fixtures.RootProcessInstance(1, orderProcessKey, orderProcessID)

	// arrange
	completingWriter.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 20, records.IntentElementCompleted, instance))
	activatingWriter.AddRecord(ctx, fixtures.ProcessInstanceEvent(1, 10, records.IntentElementActivating, instance))
	require.NoError(t, completingWriter.Flush(ctx), "error in arranging test data")

	// act
	err := activatingWriter.Flush(ctx)

	// assert
	require.NoError(t, err)

	doc := p.document(t, IndexListView, "1")
	assert.Equal(t, StateCompleted, doc[FieldState])
	assert.Equal(t, dateOfPosition20, doc[FieldEndDate])
	assert.Equal(t, dateOfPosition10, doc["startDate"])
	assert.Equal(t, int64(20), int64Field(t, doc, FieldPosition))
}

func Test_Scenario_RemovingTheLastResourceID_DeletesTheAuthorizationDocument(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)
	id := "7-PROCESS_DEFINITION-READ"

	// arrange
	writer.AddRecord(ctx, fixtures.Permission(1, 1, records.IntentPermissionAdded, 7, "PROCESS_DEFINITION", "READ", "order", "shipment"))
	require.NoError(t, writer.Flush(ctx), "error in arranging test data")
	writer.AddRecord(ctx, fixtures.Permission(2, 2, records.IntentPermissionRemoved, 7, "PROCESS_DEFINITION", "READ", "order"))
	require.NoError(t, writer.Flush(ctx), "error in arranging test data")
	assert.Equal(t, []string{"shipment"}, p.document(t, IndexAuthorization, id).Strings("resourceIds"))

	// act
	writer.AddRecord(ctx, fixtures.Permission(3, 3, records.IntentPermissionRemoved, 7, "PROCESS_DEFINITION", "READ", "shipment"))
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)

	_, found := p.store.Get(IndexAuthorization, id)
	assert.False(t, found, "an authorization without resource ids is deleted")
	assert.Zero(t, p.store.Count(IndexAuthorizationGrant), "every grant was revoked")
}

func Test_Scenario_FailedEvaluation_MarksOnlyTheFailedDecision(t *testing.T) {
	// setup
	ctx := context.Background()
	p := givenProjection(t)
	writer := p.newWriter(t)

	// arrange
	writer.AddRecord(ctx, fixtures.DecisionEvaluation(42, 5, records.IntentFailed, records.DecisionEvaluationValue{
		ProcessInstanceKey: 1,
		EvaluatedDecisions: []records.EvaluatedDecisionValue{
			fixtures.EvaluatedDecision(501, "risk", "low"),
			fixtures.EvaluatedDecision(502, "limit", "1000"),
			fixtures.EvaluatedDecision(503, "approval", ""),
		},
		FailedDecisionID:         "approval",
		EvaluationFailureMessage: "no rule matched",
	}))

	// act
	err := writer.Flush(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"42-1", "42-2", "42-3"}, p.store.IDs(IndexDecisionInstance))

	assert.Equal(t, DecisionStateEvaluated, p.document(t, IndexDecisionInstance, "42-1")[FieldState])
	assert.Equal(t, DecisionStateEvaluated, p.document(t, IndexDecisionInstance, "42-2")[FieldState])

	failed := p.document(t, IndexDecisionInstance, "42-3")
	assert.Equal(t, DecisionStateFailed, failed[FieldState])
	assert.Equal(t, "no rule matched", failed["evaluationFailure"])
	assert.NotContains(t, p.document(t, IndexDecisionInstance, "42-1"), "evaluationFailure")
}
