package records_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/process-projector-go/projector"
	. "github.com/AntonStoeckl/process-projector-go/records"
)

func Test_DecodeRecord_ProcessInstance(t *testing.T) {
	// arrange
	raw := []byte(`{
		"key": 2251799813685251,
		"position": 42,
		"partitionId": 1,
		"timestamp": 1700000000000,
		"valueType": "PROCESS_INSTANCE",
		"intent": "ELEMENT_ACTIVATING",
		"tenantId": "<default>",
		"value": {
			"bpmnElementType": "PROCESS",
			"elementId": "order",
			"bpmnProcessId": "order",
			"processDefinitionKey": 100,
			"processInstanceKey": 2251799813685251,
			"parentProcessInstanceKey": -1,
			"elementInstancePath": [[2251799813685251]],
			"processDefinitionPath": [100]
		}
	}`)

	// act
	record, err := DecodeRecord(raw)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(42), record.Position)
	assert.Equal(t, int32(1), record.PartitionID)
	assert.Equal(t, ValueTypeProcessInstance, record.ValueType)
	assert.Equal(t, IntentElementActivating, record.Intent)
	assert.Equal(t, "<default>", record.TenantID)

	typed, ok := projector.AsTyped[ProcessInstanceValue](record)
	require.True(t, ok)
	assert.Equal(t, ElementTypeProcess, typed.Value.BpmnElementType)
	assert.True(t, typed.Value.IsRootProcessInstance())
	assert.Equal(t, [][]int64{{2251799813685251}}, typed.Value.ElementInstancePath)
}

func Test_DecodeRecord_DecisionEvaluation(t *testing.T) {
	// arrange
	raw := []byte(`{"key":9,"position":1,"valueType":"DECISION_EVALUATION","intent":"FAILED","value":{
		"evaluatedDecisions":[{"decisionId":"a","decisionOutput":"1"},{"decisionId":"b"}],
		"failedDecisionId":"b",
		"evaluationFailureMessage":"no rule matched"
	}}`)

	// act
	record, err := DecodeRecord(raw)

	// assert
	require.NoError(t, err)
	typed, ok := projector.AsTyped[DecisionEvaluationValue](record)
	require.True(t, ok)
	require.Len(t, typed.Value.EvaluatedDecisions, 2)
	assert.Equal(t, "b", typed.Value.FailedDecisionID)
	assert.Equal(t, "1", typed.Value.EvaluatedDecisions[0].DecisionOutput)
}

func Test_DecodeRecord_When_ValueIsMissing_ThePayloadIsZero(t *testing.T) {
	// act
	record, err := DecodeRecord([]byte(`{"key":1,"valueType":"AUTHORIZATION","intent":"PERMISSION_ADDED"}`))

	// assert
	require.NoError(t, err)
	assert.Equal(t, AuthorizationValue{}, record.Value)
}

func Test_DecodeRecord_When_ValueTypeIsUnknown_ThePayloadStaysRaw(t *testing.T) {
	// act
	record, err := DecodeRecord([]byte(`{"key":1,"position":9,"valueType":"JOB","intent":"CREATED","value":{"retries":3}}`))

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(9), record.Position)
	assert.Equal(t, projector.ValueType("JOB"), record.ValueType)
	assert.Equal(t, RawValue(`{"retries":3}`), record.Value)
}

func Test_DecodeRecord_When_EnvelopeIsMalformed(t *testing.T) {
	// act
	_, err := DecodeRecord([]byte(`{"key":`))

	// assert
	assert.ErrorIs(t, err, projector.ErrMalformedRecord)
}

func Test_DecodeRecord_When_PayloadDoesNotMatchTheValueType(t *testing.T) {
	// act
	_, err := DecodeRecord([]byte(`{"key":1,"valueType":"INCIDENT","intent":"CREATED","value":{"jobKey":"not a number"}}`))

	// assert
	assert.ErrorIs(t, err, projector.ErrMalformedRecord)
}

func Test_AncestryPaths_TreePathInput(t *testing.T) {
	// arrange
	paths := AncestryPaths{
		ElementInstancePath:   [][]int64{{1, 5, 11}, {}, {2, 22}},
		CallingElementPath:    []int32{0, 9, 3},
		ProcessDefinitionPath: []int64{100, 999, 200},
	}

	// act
	input := paths.TreePathInput(2)

	// assert
	assert.Equal(t, int64(2), input.ProcessInstanceKey)
	assert.Equal(t, []projector.ElementInstancePathEntry{
		{ProcessInstanceKey: 1, ElementInstanceKey: 11},
		{ProcessInstanceKey: 2, ElementInstanceKey: 22},
	}, input.ElementInstancePath)
	assert.Equal(t, []int32{0, 3}, input.CallingElementPath, "the skipped level takes its calling element along")
	assert.Equal(t, []int64{100, 200}, input.ProcessDefinitionPath)
}
