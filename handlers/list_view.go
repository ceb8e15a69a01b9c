package handlers

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeProcessInstance  = "list-view-process-instance"
	entityTypeFlowNodeInstance = "list-view-flow-node-instance"

	StateActive    = "ACTIVE"
	StateCompleted = "COMPLETED"
	StateCanceled  = "CANCELED"

	joinRelationProcessInstance  = "processInstance"
	joinRelationFlowNodeInstance = "activity"
)

// JoinRelation links flow node instance documents to their process instance document in the list view index.
type JoinRelation struct {
	Name   string `json:"name"`
	Parent int64  `json:"parent,omitempty"`
}

// Lifecycle is the state part shared by process and flow node instances.
// It is applied in memory with the same position rule the document store uses.
type Lifecycle struct {
	State     string `json:"state,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Position  int64  `json:"position"`
}

func (l *Lifecycle) apply(metadata projector.Metadata) {
	if metadata.Intent == records.IntentElementActivating {
		l.StartDate = formatDate(metadata)
	}

	if metadata.Position < l.Position {
		return
	}
	l.Position = metadata.Position

	switch metadata.Intent {
	case records.IntentElementActivating, records.IntentElementActivated:
		if l.State == "" {
			l.State = StateActive
		}

	case records.IntentElementCompleted:
		l.State = StateCompleted
		l.EndDate = formatDate(metadata)

	case records.IntentElementTerminated:
		l.State = StateCanceled
		l.EndDate = formatDate(metadata)

	default:
		if l.State == "" {
			l.State = StateActive
		}
	}
}

// guard splits the lifecycle into the always-merged start date and the position-guarded state.
func (l *Lifecycle) guard(fields projector.Document) projector.PositionGuard {
	putIfSet(fields, "startDate", l.StartDate)

	guarded := projector.Document{FieldState: l.State}
	putIfSet(guarded, FieldEndDate, l.EndDate)

	return projector.PositionGuard{
		Field:         FieldPosition,
		Position:      l.Position,
		Fields:        fields,
		GuardedFields: guarded,
	}
}

// ProcessInstanceEntity is the list view document of a process instance.
type ProcessInstanceEntity struct {
	Lifecycle
	Id                        string       `json:"id"`
	Key                       int64        `json:"key"`
	ProcessInstanceKey        int64        `json:"processInstanceKey"`
	ProcessDefinitionKey      int64        `json:"processDefinitionKey"`
	BpmnProcessID             string       `json:"bpmnProcessId"`
	ProcessName               string       `json:"processName"`
	ProcessVersion            int32        `json:"processVersion"`
	ParentProcessInstanceKey  int64        `json:"parentProcessInstanceKey,omitempty"`
	ParentFlowNodeInstanceKey int64        `json:"parentFlowNodeInstanceKey,omitempty"`
	RootProcessInstanceKey    int64        `json:"rootProcessInstanceKey,omitempty"`
	TreePath                  string       `json:"treePath"`
	TenantID                  string       `json:"tenantId"`
	JoinRelation              JoinRelation `json:"joinRelation"`
}

func (e *ProcessInstanceEntity) ID() string {
	return e.Id
}

// ListViewProcessInstanceHandler projects the lifecycle of process instances into the list view.
type ListViewProcessInstanceHandler struct {
	processCache    projector.ProcessCache
	metadata        *projector.ExporterMetadata
	treePathBuilder *projector.TreePathBuilder
}

func NewListViewProcessInstanceHandler(
	processCache projector.ProcessCache,
	metadata *projector.ExporterMetadata,
	treePathBuilder *projector.TreePathBuilder,
) ListViewProcessInstanceHandler {

	return ListViewProcessInstanceHandler{
		processCache:    processCache,
		metadata:        metadata,
		treePathBuilder: treePathBuilder,
	}
}

func (h ListViewProcessInstanceHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeProcessInstance
}

func (h ListViewProcessInstanceHandler) EntityType() string {
	return entityTypeProcessInstance
}

func (h ListViewProcessInstanceHandler) IndexName() string {
	return IndexListView
}

func (h ListViewProcessInstanceHandler) HandlesRecord(record projector.TypedRecord[records.ProcessInstanceValue]) bool {
	return record.Value.BpmnElementType == records.ElementTypeProcess && isLifecycleIntent(record.Intent)
}

func (h ListViewProcessInstanceHandler) GenerateIDs(record projector.TypedRecord[records.ProcessInstanceValue]) []string {
	return []string{formatKey(record.Value.ProcessInstanceKey)}
}

func (h ListViewProcessInstanceHandler) CreateNewEntity(id string) *ProcessInstanceEntity {
	return &ProcessInstanceEntity{Id: id, JoinRelation: JoinRelation{Name: joinRelationProcessInstance}}
}

func (h ListViewProcessInstanceHandler) UpdateEntity(
	record projector.TypedRecord[records.ProcessInstanceValue],
	entity *ProcessInstanceEntity,
) error {

	value := record.Value

	entity.Key = value.ProcessInstanceKey
	entity.ProcessInstanceKey = value.ProcessInstanceKey
	entity.ProcessDefinitionKey = value.ProcessDefinitionKey
	entity.BpmnProcessID = value.BpmnProcessID
	entity.ProcessVersion = value.Version
	entity.ProcessName = value.BpmnProcessID
	entity.ParentProcessInstanceKey = positiveKey(value.ParentProcessInstanceKey)
	entity.ParentFlowNodeInstanceKey = positiveKey(value.ParentElementInstanceKey)
	entity.TenantID = value.TenantID
	entity.TreePath = h.treePathBuilder.ForProcessInstance(value.TreePathInput(value.ProcessInstanceKey))

	if process, ok := h.processCache.Get(value.ProcessDefinitionKey); ok {
		entity.ProcessName = process.DisplayName()
	}

	rootKey := rootProcessInstanceKey(value)
	if value.IsRootProcessInstance() {
		h.metadata.SetFirstKeyIfUnset(projector.FirstRootProcessInstanceKey, value.ProcessInstanceKey)
	}
	if h.metadata.IsAfter(projector.FirstRootProcessInstanceKey, rootKey) {
		entity.RootProcessInstanceKey = rootKey
	}

	entity.Lifecycle.apply(record.Metadata)

	return nil
}

func (h ListViewProcessInstanceHandler) Flush(entity *ProcessInstanceEntity, batch *projector.BatchRequest) error {
	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	fields := projector.Document{
		"processInstanceKey":   entity.ProcessInstanceKey,
		"processDefinitionKey": entity.ProcessDefinitionKey,
		"bpmnProcessId":        entity.BpmnProcessID,
		"processName":          entity.ProcessName,
		"processVersion":       entity.ProcessVersion,
		"treePath":             entity.TreePath,
		"tenantId":             entity.TenantID,
	}
	putIfSet(fields, "parentProcessInstanceKey", entity.ParentProcessInstanceKey)
	putIfSet(fields, "parentFlowNodeInstanceKey", entity.ParentFlowNodeInstanceKey)
	putIfSet(fields, "rootProcessInstanceKey", entity.RootProcessInstanceKey)

	batch.UpsertWithPositionGuard(IndexListView, entity.Id, doc, entity.Lifecycle.guard(fields))

	return nil
}

// FlowNodeInstanceEntity is the list view document of a flow node instance, a child of its process instance.
type FlowNodeInstanceEntity struct {
	Lifecycle
	Id                   string       `json:"id"`
	Key                  int64        `json:"key"`
	ProcessInstanceKey   int64        `json:"processInstanceKey"`
	ProcessDefinitionKey int64        `json:"processDefinitionKey"`
	BpmnProcessID        string       `json:"bpmnProcessId"`
	FlowNodeID           string       `json:"activityId"`
	FlowNodeName         string       `json:"activityName"`
	FlowNodeType         string       `json:"activityType"`
	TreePath             string       `json:"treePath"`
	TenantID             string       `json:"tenantId"`
	JoinRelation         JoinRelation `json:"joinRelation"`
}

func (e *FlowNodeInstanceEntity) ID() string {
	return e.Id
}

// ListViewFlowNodeHandler projects flow node instances into the list view, routed by process instance key.
type ListViewFlowNodeHandler struct {
	processCache    projector.ProcessCache
	treePathBuilder *projector.TreePathBuilder
}

func NewListViewFlowNodeHandler(
	processCache projector.ProcessCache,
	treePathBuilder *projector.TreePathBuilder,
) ListViewFlowNodeHandler {

	return ListViewFlowNodeHandler{processCache: processCache, treePathBuilder: treePathBuilder}
}

func (h ListViewFlowNodeHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeProcessInstance
}

func (h ListViewFlowNodeHandler) EntityType() string {
	return entityTypeFlowNodeInstance
}

func (h ListViewFlowNodeHandler) IndexName() string {
	return IndexListView
}

func (h ListViewFlowNodeHandler) HandlesRecord(record projector.TypedRecord[records.ProcessInstanceValue]) bool {
	elementType := record.Value.BpmnElementType

	return elementType != records.ElementTypeProcess &&
		elementType != records.ElementTypeSequenceFlow &&
		isLifecycleIntent(record.Intent)
}

func (h ListViewFlowNodeHandler) GenerateIDs(record projector.TypedRecord[records.ProcessInstanceValue]) []string {
	return []string{formatKey(record.Key)}
}

func (h ListViewFlowNodeHandler) CreateNewEntity(id string) *FlowNodeInstanceEntity {
	return &FlowNodeInstanceEntity{Id: id}
}

func (h ListViewFlowNodeHandler) UpdateEntity(
	record projector.TypedRecord[records.ProcessInstanceValue],
	entity *FlowNodeInstanceEntity,
) error {

	value := record.Value

	entity.Key = record.Key
	entity.ProcessInstanceKey = value.ProcessInstanceKey
	entity.ProcessDefinitionKey = value.ProcessDefinitionKey
	entity.BpmnProcessID = value.BpmnProcessID
	entity.FlowNodeID = value.ElementID
	entity.FlowNodeName = value.ElementID
	entity.FlowNodeType = string(value.BpmnElementType)
	entity.TenantID = value.TenantID
	entity.JoinRelation = JoinRelation{Name: joinRelationFlowNodeInstance, Parent: value.ProcessInstanceKey}
	entity.TreePath = h.treePathBuilder.ForFlowNode(
		value.TreePathInput(value.ProcessInstanceKey),
		value.ElementID,
		record.Key,
	)

	if process, ok := h.processCache.Get(value.ProcessDefinitionKey); ok {
		entity.FlowNodeName = process.FlowNodeName(value.ElementID)
	}

	entity.Lifecycle.apply(record.Metadata)

	return nil
}

func (h ListViewFlowNodeHandler) Flush(entity *FlowNodeInstanceEntity, batch *projector.BatchRequest) error {
	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	fields := projector.Document{
		"activityId":   entity.FlowNodeID,
		"activityName": entity.FlowNodeName,
		"activityType": entity.FlowNodeType,
		"treePath":     entity.TreePath,
	}

	batch.UpsertWithPositionGuardAndRouting(
		IndexListView,
		entity.Id,
		doc,
		entity.Lifecycle.guard(fields),
		formatKey(entity.ProcessInstanceKey),
	)

	return nil
}

func isLifecycleIntent(intent projector.Intent) bool {
	switch intent {
	case records.IntentElementActivating,
		records.IntentElementActivated,
		records.IntentElementCompleting,
		records.IntentElementCompleted,
		records.IntentElementTerminated:
		return true
	default:
		return false
	}
}

// rootProcessInstanceKey is the first process instance of the ancestry, or the own one for root instances.
func rootProcessInstanceKey(value records.ProcessInstanceValue) int64 {
	if !value.IsRootProcessInstance() && len(value.ElementInstancePath) > 0 && len(value.ElementInstancePath[0]) > 0 {
		return value.ElementInstancePath[0][0]
	}

	return value.ProcessInstanceKey
}
