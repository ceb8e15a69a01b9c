package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeDecisionInstance = "decision-instance"
	DecisionStateEvaluated     = "EVALUATED"
	DecisionStateFailed        = "FAILED"
	decisionIDSeparator        = "-"
)

// DecisionInstanceEntity is the document of one evaluated decision of an evaluation.
type DecisionInstanceEntity struct {
	Id                      string                         `json:"id"`
	Key                     int64                          `json:"key"`
	ExecutionIndex          int                            `json:"executionIndex"`
	State                   string                         `json:"state"`
	EvaluationDate          string                         `json:"evaluationDate"`
	EvaluationFailure       string                         `json:"evaluationFailure,omitempty"`
	DecisionDefinitionKey   int64                          `json:"decisionDefinitionKey"`
	DecisionID              string                         `json:"decisionId"`
	DecisionName            string                         `json:"decisionName"`
	DecisionVersion         int32                          `json:"decisionVersion"`
	DecisionType            string                         `json:"decisionType"`
	Result                  string                         `json:"result"`
	EvaluatedInputs         []records.EvaluatedInputValue  `json:"evaluatedInputs"`
	EvaluatedOutputs        []records.EvaluatedOutputValue `json:"evaluatedOutputs"`
	DecisionRequirementsKey int64                          `json:"decisionRequirementsKey,omitempty"`
	ProcessDefinitionKey    int64                          `json:"processDefinitionKey,omitempty"`
	ProcessInstanceKey      int64                          `json:"processInstanceKey,omitempty"`
	ElementInstanceKey      int64                          `json:"elementInstanceKey,omitempty"`
	ElementID               string                         `json:"elementId"`
	BpmnProcessID           string                         `json:"bpmnProcessId"`
	TenantID                string                         `json:"tenantId"`
}

func (e *DecisionInstanceEntity) ID() string {
	return e.Id
}

// DecisionEvaluationHandler fans one evaluation record out into one document per evaluated decision,
// with ids "{recordKey}-{i}" and i starting at 1.
type DecisionEvaluationHandler struct{}

func NewDecisionEvaluationHandler() DecisionEvaluationHandler {
	return DecisionEvaluationHandler{}
}

func (h DecisionEvaluationHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeDecisionEvaluation
}

func (h DecisionEvaluationHandler) EntityType() string {
	return entityTypeDecisionInstance
}

func (h DecisionEvaluationHandler) IndexName() string {
	return IndexDecisionInstance
}

func (h DecisionEvaluationHandler) HandlesRecord(record projector.TypedRecord[records.DecisionEvaluationValue]) bool {
	return record.Intent == records.IntentEvaluated || record.Intent == records.IntentFailed
}

func (h DecisionEvaluationHandler) GenerateIDs(record projector.TypedRecord[records.DecisionEvaluationValue]) []string {
	ids := make([]string, 0, len(record.Value.EvaluatedDecisions))
	for i := range record.Value.EvaluatedDecisions {
		ids = append(ids, decisionInstanceID(record.Key, i+1))
	}

	return ids
}

func (h DecisionEvaluationHandler) CreateNewEntity(id string) *DecisionInstanceEntity {
	return &DecisionInstanceEntity{Id: id}
}

// UpdateEntity re-locates the evaluated decision of the entity through the index encoded in its id.
func (h DecisionEvaluationHandler) UpdateEntity(
	record projector.TypedRecord[records.DecisionEvaluationValue],
	entity *DecisionInstanceEntity,
) error {

	value := record.Value

	index, err := decisionIndexFromID(record.Key, entity.Id)
	if err != nil {
		return err
	}

	if index < 1 || index > len(value.EvaluatedDecisions) {
		return errors.Join(projector.ErrMalformedRecord,
			fmt.Errorf("decision index %d of %d", index, len(value.EvaluatedDecisions)))
	}

	decision := value.EvaluatedDecisions[index-1]

	entity.Key = record.Key
	entity.ExecutionIndex = index
	entity.EvaluationDate = formatDate(record.Metadata)
	entity.DecisionDefinitionKey = decision.DecisionKey
	entity.DecisionID = decision.DecisionID
	entity.DecisionName = decision.DecisionName
	entity.DecisionVersion = decision.DecisionVersion
	entity.DecisionType = decision.DecisionType
	entity.Result = decision.DecisionOutput
	entity.EvaluatedInputs = append(make([]records.EvaluatedInputValue, 0), decision.EvaluatedInputs...)
	entity.EvaluatedOutputs = make([]records.EvaluatedOutputValue, 0)
	for _, rule := range decision.MatchedRules {
		entity.EvaluatedOutputs = append(entity.EvaluatedOutputs, rule.EvaluatedOutputs...)
	}
	entity.DecisionRequirementsKey = positiveKey(value.DecisionRequirementsKey)
	entity.ProcessDefinitionKey = positiveKey(value.ProcessDefinitionKey)
	entity.ProcessInstanceKey = positiveKey(value.ProcessInstanceKey)
	entity.ElementInstanceKey = positiveKey(value.ElementInstanceKey)
	entity.ElementID = value.ElementID
	entity.BpmnProcessID = value.BpmnProcessID
	entity.TenantID = value.TenantID

	entity.State = DecisionStateEvaluated
	entity.EvaluationFailure = ""
	if record.Intent == records.IntentFailed && decision.DecisionID == value.FailedDecisionID {
		entity.State = DecisionStateFailed
		entity.EvaluationFailure = value.EvaluationFailureMessage
	}

	return nil
}

func (h DecisionEvaluationHandler) Flush(entity *DecisionInstanceEntity, batch *projector.BatchRequest) error {
	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	batch.Add(IndexDecisionInstance, entity.Id, doc)

	return nil
}

func decisionInstanceID(recordKey int64, index int) string {
	return formatKey(recordKey) + decisionIDSeparator + strconv.Itoa(index)
}

func decisionIndexFromID(recordKey int64, id string) (int, error) {
	prefix := formatKey(recordKey) + decisionIDSeparator

	suffix, found := strings.CutPrefix(id, prefix)
	if !found {
		return 0, errors.Join(projector.ErrMalformedRecord,
			fmt.Errorf("decision instance id %q does not belong to record %d", id, recordKey))
	}

	index, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, errors.Join(projector.ErrMalformedRecord, fmt.Errorf("decision instance id %q: %w", id, err))
	}

	return index, nil
}
