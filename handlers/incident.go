package handlers

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeIncident    = "incident"
	IncidentStateActive   = "ACTIVE"
	IncidentStateResolved = "RESOLVED"
)

// IncidentEntity is the document of an incident.
type IncidentEntity struct {
	Id                   string `json:"id"`
	Key                  int64  `json:"key"`
	ErrorType            string `json:"errorType"`
	ErrorMessage         string `json:"errorMessage"`
	State                string `json:"state"`
	CreationTime         string `json:"creationTime,omitempty"`
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	ProcessInstanceKey   int64  `json:"processInstanceKey"`
	BpmnProcessID        string `json:"bpmnProcessId"`
	FlowNodeID           string `json:"flowNodeId"`
	FlowNodeInstanceKey  int64  `json:"flowNodeInstanceKey"`
	JobKey               int64  `json:"jobKey,omitempty"`
	TreePath             string `json:"treePath"`
	TenantID             string `json:"tenantId"`
	Position             int64  `json:"position"`
}

func (e *IncidentEntity) ID() string {
	return e.Id
}

// IncidentHandler projects incidents. The state is position guarded, so a late CREATED never reopens a RESOLVED incident.
type IncidentHandler struct {
	treePathBuilder *projector.TreePathBuilder
}

func NewIncidentHandler(treePathBuilder *projector.TreePathBuilder) IncidentHandler {
	return IncidentHandler{treePathBuilder: treePathBuilder}
}

func (h IncidentHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeIncident
}

func (h IncidentHandler) EntityType() string {
	return entityTypeIncident
}

func (h IncidentHandler) IndexName() string {
	return IndexIncident
}

func (h IncidentHandler) HandlesRecord(record projector.TypedRecord[records.IncidentValue]) bool {
	switch record.Intent {
	case records.IntentCreated, records.IntentResolved, records.IntentMigrated:
		return true
	default:
		return false
	}
}

func (h IncidentHandler) GenerateIDs(record projector.TypedRecord[records.IncidentValue]) []string {
	return []string{formatKey(record.Key)}
}

func (h IncidentHandler) CreateNewEntity(id string) *IncidentEntity {
	return &IncidentEntity{Id: id}
}

func (h IncidentHandler) UpdateEntity(record projector.TypedRecord[records.IncidentValue], entity *IncidentEntity) error {
	value := record.Value

	entity.Key = record.Key
	entity.ErrorType = value.ErrorType
	entity.ErrorMessage = value.ErrorMessage
	entity.ProcessDefinitionKey = value.ProcessDefinitionKey
	entity.ProcessInstanceKey = value.ProcessInstanceKey
	entity.BpmnProcessID = value.BpmnProcessID
	entity.FlowNodeID = value.ElementID
	entity.FlowNodeInstanceKey = value.ElementInstanceKey
	entity.JobKey = positiveKey(value.JobKey)
	entity.TenantID = value.TenantID
	entity.TreePath = h.treePathBuilder.ForFlowNode(
		value.TreePathInput(value.ProcessInstanceKey),
		value.ElementID,
		value.ElementInstanceKey,
	)

	if record.Intent == records.IntentCreated {
		entity.CreationTime = formatDate(record.Metadata)
	}

	if record.Position < entity.Position {
		return nil
	}
	entity.Position = record.Position

	switch record.Intent {
	case records.IntentResolved:
		entity.State = IncidentStateResolved
	default:
		if entity.State == "" {
			entity.State = IncidentStateActive
		}
	}

	return nil
}

func (h IncidentHandler) Flush(entity *IncidentEntity, batch *projector.BatchRequest) error {
	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	fields := projector.Document{
		"errorType":           entity.ErrorType,
		"errorMessage":        entity.ErrorMessage,
		"flowNodeId":          entity.FlowNodeID,
		"flowNodeInstanceKey": entity.FlowNodeInstanceKey,
		"treePath":            entity.TreePath,
	}
	putIfSet(fields, "creationTime", entity.CreationTime)
	putIfSet(fields, "jobKey", entity.JobKey)

	batch.UpsertWithPositionGuard(IndexIncident, entity.Id, doc, projector.PositionGuard{
		Field:         FieldPosition,
		Position:      entity.Position,
		Fields:        fields,
		GuardedFields: projector.Document{FieldState: entity.State},
	})

	return nil
}
