// Package fixtures builds process orchestration records for tests.
package fixtures

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	PartitionID   int32 = 1
	BaseTimestamp int64 = 1_700_000_000_000 // 2023-11-14T22:13:20.000Z
	TenantID            = "<default>"
)

// TimestampAt derives a record timestamp from its position, one second per position.
func TimestampAt(position int64) int64 {
	return BaseTimestamp + position*1000
}

// NewRecord builds a record on PartitionID whose timestamp follows from its position.
func NewRecord(
	valueType projector.ValueType,
	intent projector.Intent,
	key int64,
	position int64,
	value any,
) projector.Record {

	return projector.NewRecord(projector.Metadata{
		Key:         key,
		Position:    position,
		PartitionID: PartitionID,
		Timestamp:   TimestampAt(position),
		ValueType:   valueType,
		Intent:      intent,
		TenantID:    TenantID,
	}, value)
}

// ProcessDeployed builds the CREATED record of a process definition.
func ProcessDeployed(position, processDefinitionKey int64, bpmnProcessID string, resource []byte) projector.Record {
	return NewRecord(records.ValueTypeProcess, records.IntentCreated, processDefinitionKey, position, records.ProcessValue{
		ProcessDefinitionKey: processDefinitionKey,
		BpmnProcessID:        bpmnProcessID,
		Version:              1,
		ResourceName:         bpmnProcessID + ".bpmn",
		Resource:             resource,
		TenantID:             TenantID,
	})
}

// RootProcessInstance is the payload of a process instance not started by a call activity.
func RootProcessInstance(processInstanceKey, processDefinitionKey int64, bpmnProcessID string) records.ProcessInstanceValue {
	return records.ProcessInstanceValue{
		AncestryPaths: records.AncestryPaths{
			ElementInstancePath:   [][]int64{{processInstanceKey}},
			ProcessDefinitionPath: []int64{processDefinitionKey},
		},
		BpmnElementType:          records.ElementTypeProcess,
		ElementID:                bpmnProcessID,
		BpmnProcessID:            bpmnProcessID,
		Version:                  1,
		ProcessDefinitionKey:     processDefinitionKey,
		ProcessInstanceKey:       processInstanceKey,
		FlowScopeKey:             -1,
		ParentProcessInstanceKey: -1,
		ParentElementInstanceKey: -1,
		TenantID:                 TenantID,
	}
}

// FlowNodeOf is the payload of a flow node instance inside the process instance described by parent.
func FlowNodeOf(
	parent records.ProcessInstanceValue,
	elementType records.BpmnElementType,
	elementID string,
	elementInstanceKey int64,
) records.ProcessInstanceValue {

	value := parent
	value.BpmnElementType = elementType
	value.ElementID = elementID
	value.FlowScopeKey = parent.ProcessInstanceKey
	value.ParentProcessInstanceKey = parent.ParentProcessInstanceKey
	value.ParentElementInstanceKey = parent.ParentElementInstanceKey

	path := make([][]int64, len(parent.ElementInstancePath))
	copy(path, parent.ElementInstancePath)
	if last := len(path) - 1; last >= 0 {
		path[last] = append(append([]int64{}, path[last]...), elementInstanceKey)
	}
	value.ElementInstancePath = path

	return value
}

// ProcessInstanceEvent builds a PROCESS_INSTANCE record. For process elements, key is the process instance key.
func ProcessInstanceEvent(
	key int64,
	position int64,
	intent projector.Intent,
	value records.ProcessInstanceValue,
) projector.Record {

	return NewRecord(records.ValueTypeProcessInstance, intent, key, position, value)
}

// Permission builds an AUTHORIZATION record for one permission type.
func Permission(
	key int64,
	position int64,
	intent projector.Intent,
	ownerKey int64,
	resourceType string,
	permissionType string,
	resourceIDs ...string,
) projector.Record {

	return NewRecord(records.ValueTypeAuthorization, intent, key, position, records.AuthorizationValue{
		OwnerKey:     ownerKey,
		OwnerType:    "USER",
		ResourceType: resourceType,
		Permissions: []records.PermissionValue{
			{PermissionType: permissionType, ResourceIDs: resourceIDs},
		},
	})
}

// DecisionEvaluation builds a DECISION_EVALUATION record of an evaluation within a process instance.
func DecisionEvaluation(
	key int64,
	position int64,
	intent projector.Intent,
	value records.DecisionEvaluationValue,
) projector.Record {

	return NewRecord(records.ValueTypeDecisionEvaluation, intent, key, position, value)
}

// EvaluatedDecision is an evaluated decision with one matched rule producing output.
func EvaluatedDecision(decisionKey int64, decisionID, output string) records.EvaluatedDecisionValue {
	return records.EvaluatedDecisionValue{
		DecisionKey:     decisionKey,
		DecisionID:      decisionID,
		DecisionName:    decisionID,
		DecisionVersion: 1,
		DecisionType:    "DECISION_TABLE",
		DecisionOutput:  output,
		EvaluatedInputs: []records.EvaluatedInputValue{
			{InputID: decisionID + "-in", InputName: "input", InputValue: "1"},
		},
		MatchedRules: []records.MatchedRuleValue{
			{
				RuleID:    decisionID + "-rule",
				RuleIndex: 1,
				EvaluatedOutputs: []records.EvaluatedOutputValue{
					{OutputID: decisionID + "-out", OutputName: "output", OutputValue: output},
				},
			},
		},
	}
}

// Correlation builds the CORRELATED record of a process message subscription.
func Correlation(
	key int64,
	position int64,
	messageKey int64,
	elementInstanceKey int64,
	processInstanceKey int64,
) projector.Record {

	return NewRecord(records.ValueTypeProcessMessageSubscription, records.IntentCorrelated, key, position,
		records.ProcessMessageSubscriptionValue{
			ProcessInstanceKey:   processInstanceKey,
			ElementInstanceKey:   elementInstanceKey,
			ProcessDefinitionKey: 100,
			MessageKey:           messageKey,
			MessageName:          "payment-received",
			CorrelationKey:       "order-1",
			BpmnProcessID:        "order",
			ElementID:            "wait-for-payment",
			TenantID:             TenantID,
		})
}
