// Package records defines the payloads of the process orchestration records the handlers project,
// together with their value types, intents and a JSON envelope decoder for replay tooling.
package records

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	ValueTypeProcess                    projector.ValueType = "PROCESS"
	ValueTypeProcessInstance            projector.ValueType = "PROCESS_INSTANCE"
	ValueTypeIncident                   projector.ValueType = "INCIDENT"
	ValueTypeDecisionEvaluation         projector.ValueType = "DECISION_EVALUATION"
	ValueTypeAuthorization              projector.ValueType = "AUTHORIZATION"
	ValueTypeProcessMessageSubscription projector.ValueType = "PROCESS_MESSAGE_SUBSCRIPTION"
)

const (
	IntentCreated           projector.Intent = "CREATED"
	IntentResolved          projector.Intent = "RESOLVED"
	IntentMigrated          projector.Intent = "MIGRATED"
	IntentElementActivating projector.Intent = "ELEMENT_ACTIVATING"
	IntentElementActivated  projector.Intent = "ELEMENT_ACTIVATED"
	IntentElementCompleting projector.Intent = "ELEMENT_COMPLETING"
	IntentElementCompleted  projector.Intent = "ELEMENT_COMPLETED"
	IntentElementTerminated projector.Intent = "ELEMENT_TERMINATED"
	IntentEvaluated         projector.Intent = "EVALUATED"
	IntentFailed            projector.Intent = "FAILED"
	IntentPermissionAdded   projector.Intent = "PERMISSION_ADDED"
	IntentPermissionRemoved projector.Intent = "PERMISSION_REMOVED"
	IntentCorrelated        projector.Intent = "CORRELATED"
)

// BpmnElementType is the kind of BPMN element a process instance record describes.
type BpmnElementType string

const (
	ElementTypeProcess          BpmnElementType = "PROCESS"
	ElementTypeStartEvent       BpmnElementType = "START_EVENT"
	ElementTypeEndEvent         BpmnElementType = "END_EVENT"
	ElementTypeServiceTask      BpmnElementType = "SERVICE_TASK"
	ElementTypeUserTask         BpmnElementType = "USER_TASK"
	ElementTypeExclusiveGateway BpmnElementType = "EXCLUSIVE_GATEWAY"
	ElementTypeParallelGateway  BpmnElementType = "PARALLEL_GATEWAY"
	ElementTypeCallActivity     BpmnElementType = "CALL_ACTIVITY"
	ElementTypeSubProcess       BpmnElementType = "SUB_PROCESS"
	ElementTypeSequenceFlow     BpmnElementType = "SEQUENCE_FLOW"
)

// ProcessValue is the payload of a deployed process definition.
type ProcessValue struct {
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	BpmnProcessID        string `json:"bpmnProcessId"`
	Version              int32  `json:"version"`
	VersionTag           string `json:"versionTag"`
	ResourceName         string `json:"resourceName"`
	Resource             []byte `json:"resource"` // BPMN XML
	TenantID             string `json:"tenantId"`
}

// AncestryPaths is the call activity ancestry every instance-scoped payload carries.
//
// ElementInstancePath has one entry per nesting level, root first. Each entry starts with the
// process instance key of that level and ends with the element instance key leading to the next
// level (or the own element instance on the last level). CallingElementPath and ProcessDefinitionPath
// are parallel to it.
type AncestryPaths struct {
	ElementInstancePath   [][]int64 `json:"elementInstancePath"`
	CallingElementPath    []int32   `json:"callingElementPath"`
	ProcessDefinitionPath []int64   `json:"processDefinitionPath"`
}

// TreePathInput converts the ancestry into the tree path builder input of processInstanceKey.
// Levels with no keys are skipped together with their calling element and process definition entries.
func (p AncestryPaths) TreePathInput(processInstanceKey int64) projector.TreePathInput {
	entries := make([]projector.ElementInstancePathEntry, 0, len(p.ElementInstancePath))
	callingElements := make([]int32, 0, len(p.CallingElementPath))
	processDefinitions := make([]int64, 0, len(p.ProcessDefinitionPath))

	for i, level := range p.ElementInstancePath {
		if len(level) == 0 {
			continue
		}

		entries = append(entries, projector.ElementInstancePathEntry{
			ProcessInstanceKey: level[0],
			ElementInstanceKey: level[len(level)-1],
		})

		if i < len(p.CallingElementPath) {
			callingElements = append(callingElements, p.CallingElementPath[i])
		}
		if i < len(p.ProcessDefinitionPath) {
			processDefinitions = append(processDefinitions, p.ProcessDefinitionPath[i])
		}
	}

	return projector.TreePathInput{
		ProcessInstanceKey:    processInstanceKey,
		ElementInstancePath:   entries,
		CallingElementPath:    callingElements,
		ProcessDefinitionPath: processDefinitions,
	}
}

// ProcessInstanceValue is the payload of a process instance or flow node instance lifecycle step.
type ProcessInstanceValue struct {
	AncestryPaths
	BpmnElementType          BpmnElementType `json:"bpmnElementType"`
	ElementID                string          `json:"elementId"`
	BpmnProcessID            string          `json:"bpmnProcessId"`
	Version                  int32           `json:"version"`
	ProcessDefinitionKey     int64           `json:"processDefinitionKey"`
	ProcessInstanceKey       int64           `json:"processInstanceKey"`
	FlowScopeKey             int64           `json:"flowScopeKey"`
	ParentProcessInstanceKey int64           `json:"parentProcessInstanceKey"`
	ParentElementInstanceKey int64           `json:"parentElementInstanceKey"`
	TenantID                 string          `json:"tenantId"`
}

// IsRootProcessInstance reports whether the process instance was not started by a call activity.
func (v ProcessInstanceValue) IsRootProcessInstance() bool {
	return v.ParentProcessInstanceKey <= 0
}

// IncidentValue is the payload of an incident lifecycle step.
type IncidentValue struct {
	AncestryPaths
	ErrorType            string `json:"errorType"`
	ErrorMessage         string `json:"errorMessage"`
	BpmnProcessID        string `json:"bpmnProcessId"`
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	ProcessInstanceKey   int64  `json:"processInstanceKey"`
	ElementID            string `json:"elementId"`
	ElementInstanceKey   int64  `json:"elementInstanceKey"`
	JobKey               int64  `json:"jobKey"` // zero or negative when the incident is not job related
	TenantID             string `json:"tenantId"`
}

// EvaluatedInputValue is one input of an evaluated decision.
type EvaluatedInputValue struct {
	InputID    string `json:"inputId"`
	InputName  string `json:"inputName"`
	InputValue string `json:"inputValue"`
}

// EvaluatedOutputValue is one output of a matched rule.
type EvaluatedOutputValue struct {
	OutputID    string `json:"outputId"`
	OutputName  string `json:"outputName"`
	OutputValue string `json:"outputValue"`
}

// MatchedRuleValue is one decision table rule that matched.
type MatchedRuleValue struct {
	RuleID           string                 `json:"ruleId"`
	RuleIndex        int32                  `json:"ruleIndex"`
	EvaluatedOutputs []EvaluatedOutputValue `json:"evaluatedOutputs"`
}

// EvaluatedDecisionValue is one decision of a decision requirements graph evaluation.
type EvaluatedDecisionValue struct {
	DecisionKey     int64                 `json:"decisionKey"`
	DecisionID      string                `json:"decisionId"`
	DecisionName    string                `json:"decisionName"`
	DecisionVersion int32                 `json:"decisionVersion"`
	DecisionType    string                `json:"decisionType"`
	DecisionOutput  string                `json:"decisionOutput"`
	EvaluatedInputs []EvaluatedInputValue `json:"evaluatedInputs"`
	MatchedRules    []MatchedRuleValue    `json:"matchedRules"`
}

// DecisionEvaluationValue is the payload of one evaluation, carrying every decision evaluated along the way.
// On failure, FailedDecisionID names the decision that failed.
type DecisionEvaluationValue struct {
	DecisionRequirementsKey  int64                    `json:"decisionRequirementsKey"`
	ProcessDefinitionKey     int64                    `json:"processDefinitionKey"`
	ProcessInstanceKey       int64                    `json:"processInstanceKey"`
	ElementInstanceKey       int64                    `json:"elementInstanceKey"`
	ElementID                string                   `json:"elementId"`
	BpmnProcessID            string                   `json:"bpmnProcessId"`
	EvaluatedDecisions       []EvaluatedDecisionValue `json:"evaluatedDecisions"`
	FailedDecisionID         string                   `json:"failedDecisionId"`
	EvaluationFailureMessage string                   `json:"evaluationFailureMessage"`
	TenantID                 string                   `json:"tenantId"`
}

// PermissionValue is a permission type granted on a set of resource ids.
type PermissionValue struct {
	PermissionType string   `json:"permissionType"`
	ResourceIDs    []string `json:"resourceIds"`
}

// AuthorizationValue is the payload of a permission change of one owner on one resource type.
type AuthorizationValue struct {
	OwnerKey     int64             `json:"ownerKey"`
	OwnerType    string            `json:"ownerType"`
	ResourceType string            `json:"resourceType"`
	Permissions  []PermissionValue `json:"permissions"`
}

// ProcessMessageSubscriptionValue is the payload of a message correlated to a waiting process instance.
type ProcessMessageSubscriptionValue struct {
	ProcessInstanceKey   int64  `json:"processInstanceKey"`
	ElementInstanceKey   int64  `json:"elementInstanceKey"`
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	MessageKey           int64  `json:"messageKey"`
	MessageName          string `json:"messageName"`
	CorrelationKey       string `json:"correlationKey"`
	BpmnProcessID        string `json:"bpmnProcessId"`
	ElementID            string `json:"elementId"`
	TenantID             string `json:"tenantId"`
}
