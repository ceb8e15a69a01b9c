package handlers

import (
	"cmp"
	"slices"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeProcess     = "process"
	logMsgBpmnParseFailed = "parsing the BPMN resource failed, process projected without flow node names"
	logAttrBpmnProcessID  = "bpmn_process_id"
	logAttrProcessDefKey  = "process_definition_key"
	logAttrError          = "error"
)

// ProcessEntity is the document of a deployed process definition.
type ProcessEntity struct {
	Id              string         `json:"id"`
	Key             int64          `json:"key"`
	BpmnProcessID   string         `json:"bpmnProcessId"`
	Name            string         `json:"name"`
	Version         int32          `json:"version"`
	VersionTag      string         `json:"versionTag,omitempty"`
	ResourceName    string         `json:"resourceName"`
	BpmnXML         string         `json:"bpmnXml"`
	FlowNodes       []FlowNodeInfo `json:"flowNodes"`
	CallActivityIDs []string       `json:"callActivityIds"`
	TenantID        string         `json:"tenantId"`
}

// FlowNodeInfo names one flow node of a process definition.
type FlowNodeInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *ProcessEntity) ID() string {
	return e.Id
}

// ProcessHandler projects deployed process definitions and keeps the process cache current.
type ProcessHandler struct {
	processCache projector.ProcessCache
	logger       projector.Logger
}

func NewProcessHandler(processCache projector.ProcessCache, logger projector.Logger) ProcessHandler {
	return ProcessHandler{processCache: processCache, logger: logger}
}

func (h ProcessHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeProcess
}

func (h ProcessHandler) EntityType() string {
	return entityTypeProcess
}

func (h ProcessHandler) IndexName() string {
	return IndexProcess
}

func (h ProcessHandler) HandlesRecord(record projector.TypedRecord[records.ProcessValue]) bool {
	return record.Intent == records.IntentCreated
}

func (h ProcessHandler) GenerateIDs(record projector.TypedRecord[records.ProcessValue]) []string {
	return []string{formatKey(record.Value.ProcessDefinitionKey)}
}

func (h ProcessHandler) CreateNewEntity(id string) *ProcessEntity {
	return &ProcessEntity{Id: id}
}

// UpdateEntity fills the entity from the record and puts the definition into the process cache.
// An unparsable BPMN resource degrades to a process without flow node names.
func (h ProcessHandler) UpdateEntity(record projector.TypedRecord[records.ProcessValue], entity *ProcessEntity) error {
	value := record.Value

	entity.Key = value.ProcessDefinitionKey
	entity.BpmnProcessID = value.BpmnProcessID
	entity.Version = value.Version
	entity.VersionTag = value.VersionTag
	entity.ResourceName = value.ResourceName
	entity.BpmnXML = string(value.Resource)
	entity.TenantID = value.TenantID
	entity.Name = value.BpmnProcessID
	entity.FlowNodes = make([]FlowNodeInfo, 0)
	entity.CallActivityIDs = make([]string, 0)

	model, err := parseBpmnProcess(value.Resource, value.BpmnProcessID)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn(logMsgBpmnParseFailed,
				logAttrBpmnProcessID, value.BpmnProcessID,
				logAttrProcessDefKey, value.ProcessDefinitionKey,
				logAttrError, err.Error(),
			)
		}
	} else {
		if model.name != "" {
			entity.Name = model.name
		}
		entity.CallActivityIDs = append(entity.CallActivityIDs, model.callActivityIDs...)
		for id, name := range model.flowNodeNames {
			entity.FlowNodes = append(entity.FlowNodes, FlowNodeInfo{ID: id, Name: name})
		}
		sortFlowNodes(entity.FlowNodes)
	}

	h.processCache.Put(value.ProcessDefinitionKey, projector.CachedProcess{
		BpmnProcessID:  value.BpmnProcessID,
		Name:           entity.Name,
		Version:        value.Version,
		VersionTag:     value.VersionTag,
		CallElementIDs: entity.CallActivityIDs,
		FlowNodeNames:  model.flowNodeNames,
	})

	return nil
}

func (h ProcessHandler) Flush(entity *ProcessEntity, batch *projector.BatchRequest) error {
	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	batch.Add(IndexProcess, entity.Id, doc)

	return nil
}

func sortFlowNodes(nodes []FlowNodeInfo) {
	slices.SortFunc(nodes, func(a, b FlowNodeInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
