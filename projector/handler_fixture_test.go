package projector_test

import (
	"strconv"

	. "github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	counterValueType ValueType = "COUNTER"
	counterIndex               = "counter"
	intentCounted    Intent    = "COUNTED"
	intentIgnored    Intent    = "IGNORED"
)

type counterValue struct {
	Items     []string
	Malformed bool
}

type counterEntity struct {
	Id       string `json:"id"`
	Key      int64  `json:"key"`
	Item     string `json:"item,omitempty"`
	Seen     int    `json:"seen"`
	Position int64  `json:"position"`
}

func (e *counterEntity) ID() string {
	return e.Id
}

type counterHandler struct {
	entityType string
}

func newCounterHandler() counterHandler {
	return counterHandler{entityType: "counter"}
}

func (h counterHandler) HandledValueType() ValueType {
	return counterValueType
}

func (h counterHandler) EntityType() string {
	return h.entityType
}

func (h counterHandler) IndexName() string {
	return counterIndex
}

func (h counterHandler) HandlesRecord(record TypedRecord[counterValue]) bool {
	return record.Intent != intentIgnored
}

func (h counterHandler) GenerateIDs(record TypedRecord[counterValue]) []string {
	key := strconv.FormatInt(record.Key, 10)
	if len(record.Value.Items) == 0 {
		return []string{key}
	}

	ids := make([]string, 0, len(record.Value.Items))
	for i := range record.Value.Items {
		ids = append(ids, key+"-"+strconv.Itoa(i+1))
	}

	return ids
}

func (h counterHandler) CreateNewEntity(id string) *counterEntity {
	return &counterEntity{Id: id}
}

func (h counterHandler) UpdateEntity(record TypedRecord[counterValue], entity *counterEntity) error {
	if record.Value.Malformed {
		return ErrMalformedRecord
	}

	entity.Key = record.Key
	entity.Seen++
	entity.Position = record.Position

	for i, item := range record.Value.Items {
		if entity.Id == strconv.FormatInt(record.Key, 10)+"-"+strconv.Itoa(i+1) {
			entity.Item = item
		}
	}

	return nil
}

func (h counterHandler) Flush(entity *counterEntity, batch *BatchRequest) error {
	doc, err := ToDocument(entity)
	if err != nil {
		return err
	}

	batch.Upsert(counterIndex, entity.Id, doc, Document{"seen": entity.Seen})

	return nil
}

func counterRecord(key, position int64, value counterValue) Record {
	return NewRecord(Metadata{
		Key:       key,
		Position:  position,
		ValueType: counterValueType,
		Intent:    intentCounted,
		Timestamp: 1_700_000_000_000,
	}, value)
}
