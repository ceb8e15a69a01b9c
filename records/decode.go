package records

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

// RawValue is the undecoded payload of a value type the projector has no payload struct for.
// No handler accepts it, so such records only advance the window position.
type RawValue []byte

var envelopeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Key                int64               `json:"key"`
	Position           int64               `json:"position"`
	PartitionID        int32               `json:"partitionId"`
	Timestamp          int64               `json:"timestamp"`
	ValueType          projector.ValueType `json:"valueType"`
	Intent             projector.Intent    `json:"intent"`
	TenantID           string              `json:"tenantId"`
	OperationReference int64               `json:"operationReference"`
	Value              jsoniter.RawMessage `json:"value"`
}

// DecodeRecord decodes one JSON envelope such as
//
//	{"key":1,"position":7,"partitionId":1,"valueType":"PROCESS_INSTANCE","intent":"ELEMENT_ACTIVATING","value":{...}}
//
// into a projector.Record carrying the typed payload of its value type.
func DecodeRecord(raw []byte) (projector.Record, error) {
	var env envelope
	if err := envelopeJSON.Unmarshal(raw, &env); err != nil {
		return projector.Record{}, errors.Join(projector.ErrMalformedRecord, err)
	}

	metadata := projector.Metadata{
		Key:                env.Key,
		Position:           env.Position,
		PartitionID:        env.PartitionID,
		Timestamp:          env.Timestamp,
		ValueType:          env.ValueType,
		Intent:             env.Intent,
		TenantID:           env.TenantID,
		OperationReference: env.OperationReference,
	}

	value, err := decodeValue(env.ValueType, env.Value)
	if err != nil {
		return projector.Record{}, err
	}

	return projector.NewRecord(metadata, value), nil
}

func decodeValue(valueType projector.ValueType, raw jsoniter.RawMessage) (any, error) {
	switch valueType {
	case ValueTypeProcess:
		return decodeInto[ProcessValue](raw)
	case ValueTypeProcessInstance:
		return decodeInto[ProcessInstanceValue](raw)
	case ValueTypeIncident:
		return decodeInto[IncidentValue](raw)
	case ValueTypeDecisionEvaluation:
		return decodeInto[DecisionEvaluationValue](raw)
	case ValueTypeAuthorization:
		return decodeInto[AuthorizationValue](raw)
	case ValueTypeProcessMessageSubscription:
		return decodeInto[ProcessMessageSubscriptionValue](raw)
	default:
		return RawValue(append([]byte(nil), raw...)), nil
	}
}

func decodeInto[V any](raw jsoniter.RawMessage) (any, error) {
	var value V
	if len(raw) == 0 {
		return value, nil
	}

	if err := envelopeJSON.Unmarshal(raw, &value); err != nil {
		return nil, errors.Join(projector.ErrMalformedRecord, err)
	}

	return value, nil
}
