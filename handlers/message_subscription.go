package handlers

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeCorrelatedMessageSubscription = "correlated-message-subscription"
	legacyIDSeparator                       = "_"
)

// CorrelatedMessageSubscriptionEntity is the document of a message correlated to a process instance.
type CorrelatedMessageSubscriptionEntity struct {
	Id                   string `json:"id"`
	Key                  int64  `json:"key"`
	MessageKey           int64  `json:"messageKey"`
	MessageName          string `json:"messageName"`
	CorrelationKey       string `json:"correlationKey"`
	CorrelationTime      string `json:"correlationTime"`
	ProcessInstanceKey   int64  `json:"processInstanceKey"`
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	FlowNodeInstanceKey  int64  `json:"flowNodeInstanceKey"`
	FlowNodeID           string `json:"flowNodeId"`
	BpmnProcessID        string `json:"bpmnProcessId"`
	TenantID             string `json:"tenantId"`
	Position             int64  `json:"position"`
}

func (e *CorrelatedMessageSubscriptionEntity) ID() string {
	return e.Id
}

// CorrelatedMessageSubscriptionHandler projects correlated message subscriptions.
//
// Subscriptions correlated before the FirstCorrelatedMessageSubscriptionKey watermark keep the
// legacy "{messageKey}_{elementInstanceKey}" id; all others are keyed by the record key.
type CorrelatedMessageSubscriptionHandler struct {
	metadata *projector.ExporterMetadata
}

func NewCorrelatedMessageSubscriptionHandler(metadata *projector.ExporterMetadata) CorrelatedMessageSubscriptionHandler {
	return CorrelatedMessageSubscriptionHandler{metadata: metadata}
}

func (h CorrelatedMessageSubscriptionHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeProcessMessageSubscription
}

func (h CorrelatedMessageSubscriptionHandler) EntityType() string {
	return entityTypeCorrelatedMessageSubscription
}

func (h CorrelatedMessageSubscriptionHandler) IndexName() string {
	return IndexCorrelatedMessageSubscription
}

func (h CorrelatedMessageSubscriptionHandler) HandlesRecord(
	record projector.TypedRecord[records.ProcessMessageSubscriptionValue],
) bool {

	return record.Intent == records.IntentCorrelated
}

func (h CorrelatedMessageSubscriptionHandler) GenerateIDs(
	record projector.TypedRecord[records.ProcessMessageSubscriptionValue],
) []string {

	h.metadata.SetFirstKeyIfUnset(projector.FirstCorrelatedMessageSubscriptionKey, record.Key)

	if h.metadata.IsBefore(projector.FirstCorrelatedMessageSubscriptionKey, record.Key) {
		return []string{formatKey(record.Value.MessageKey) + legacyIDSeparator + formatKey(record.Value.ElementInstanceKey)}
	}

	return []string{formatKey(record.Key)}
}

func (h CorrelatedMessageSubscriptionHandler) CreateNewEntity(id string) *CorrelatedMessageSubscriptionEntity {
	return &CorrelatedMessageSubscriptionEntity{Id: id}
}

func (h CorrelatedMessageSubscriptionHandler) UpdateEntity(
	record projector.TypedRecord[records.ProcessMessageSubscriptionValue],
	entity *CorrelatedMessageSubscriptionEntity,
) error {

	value := record.Value

	entity.Key = record.Key
	entity.MessageKey = value.MessageKey
	entity.MessageName = value.MessageName
	entity.CorrelationKey = value.CorrelationKey
	entity.CorrelationTime = formatDate(record.Metadata)
	entity.ProcessInstanceKey = value.ProcessInstanceKey
	entity.ProcessDefinitionKey = value.ProcessDefinitionKey
	entity.FlowNodeInstanceKey = value.ElementInstanceKey
	entity.FlowNodeID = value.ElementID
	entity.BpmnProcessID = value.BpmnProcessID
	entity.TenantID = value.TenantID
	entity.Position = record.Position

	return nil
}

func (h CorrelatedMessageSubscriptionHandler) Flush(
	entity *CorrelatedMessageSubscriptionEntity,
	batch *projector.BatchRequest,
) error {

	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	batch.Add(IndexCorrelatedMessageSubscription, entity.Id, doc)

	return nil
}
