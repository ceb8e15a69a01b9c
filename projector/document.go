package projector

import (
	"encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var documentJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var ErrDocumentConversionFailed = errors.New("converting entity to document failed")

// Entity is a mutable, document-shaped aggregate that lives for one processing window.
// Entities are pointers to structs with json tags.
type Entity interface {
	ID() string
}

// Document is the stored shape of an entity: a JSON object.
type Document map[string]any

// ToDocument converts an entity (or any json-taggable value) into a Document.
// Numbers are kept as json.Number so that int64 keys survive the conversion.
func ToDocument(value any) (Document, error) {
	raw, err := documentJSON.Marshal(value)
	if err != nil {
		return nil, errors.Join(ErrDocumentConversionFailed, err)
	}

	doc := make(Document)
	if err = documentJSON.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrDocumentConversionFailed, err)
	}

	return doc, nil
}

// MarshalDocument encodes a Document as JSON with sorted keys.
func MarshalDocument(doc Document) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}

	return documentJSON.Marshal(doc)
}

// MarshalDocumentValue encodes a single document value as JSON. A nil list encodes as an empty list.
func MarshalDocumentValue(value any) ([]byte, error) {
	if values, ok := value.([]string); ok && values == nil {
		return []byte("[]"), nil
	}

	return documentJSON.Marshal(value)
}

// UnmarshalDocument decodes a JSON object into a Document.
func UnmarshalDocument(raw []byte) (Document, error) {
	doc := make(Document)
	if err := documentJSON.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Clone returns a shallow copy. List values are copied too, so scripts never alias stored slices.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	clone := make(Document, len(d))
	for k, v := range d {
		if values, ok := v.([]string); ok {
			v = append([]string(nil), values...)
		}
		clone[k] = v
	}

	return clone
}

// Merge shallow-merges fields into d and returns d.
func (d Document) Merge(fields Document) Document {
	for k, v := range fields {
		d[k] = v
	}

	return d
}

// Int64 returns a numeric field as int64.
func (d Document) Int64(field string) (int64, bool) {
	return asInt64(d[field])
}

// String returns a string field.
func (d Document) String(field string) (string, bool) {
	s, ok := d[field].(string)
	return s, ok
}

// Strings returns a string list field.
func (d Document) Strings(field string) []string {
	return asStrings(d[field])
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func asStrings(v any) []string {
	switch values := v.(type) {
	case []string:
		return append([]string(nil), values...)
	case []any:
		result := make([]string, 0, len(values))
		for _, value := range values {
			if s, ok := value.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
