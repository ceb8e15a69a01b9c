package projector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/projector"
)

func Test_ToDocument_KeepsInt64KeysExact(t *testing.T) {
	// arrange
	entity := &counterEntity{Id: "1", Key: 2251799813685249, Seen: 3}

	// act
	doc, err := ToDocument(entity)

	// assert
	require.NoError(t, err)
	key, ok := doc.Int64("key")
	assert.True(t, ok)
	assert.Equal(t, int64(2251799813685249), key)
	assert.Equal(t, "1", doc["id"])
	assert.NotContains(t, doc, "item", "omitempty fields stay absent")
}

func Test_MarshalDocument_SortsKeys(t *testing.T) {
	// act
	raw, err := MarshalDocument(Document{"b": 1, "a": "x"})

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":1}`, string(raw))
	assert.Equal(t, `{"a":"x","b":1}`, string(raw))
}

func Test_MarshalDocument_When_Nil(t *testing.T) {
	// act
	raw, err := MarshalDocument(nil)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func Test_UnmarshalDocument_When_NotAnObject(t *testing.T) {
	// act
	_, err := UnmarshalDocument([]byte(`[1,2]`))

	// assert
	assert.Error(t, err)
}

func Test_Document_Clone_CopiesStringLists(t *testing.T) {
	// arrange
	original := Document{"ids": []string{"a"}}

	// act
	clone := original.Clone()
	clone["ids"].([]string)[0] = "changed"

	// assert
	assert.Equal(t, []string{"a"}, original.Strings("ids"))
}

func Test_Document_Accessors(t *testing.T) {
	// arrange
	doc, err := UnmarshalDocument([]byte(`{"position":12,"state":"ACTIVE","ids":["x","y"],"text":"7"}`))
	require.NoError(t, err)

	// act + assert
	position, ok := doc.Int64("position")
	assert.True(t, ok)
	assert.Equal(t, int64(12), position)

	_, ok = doc.Int64("text")
	assert.False(t, ok, "numeric strings are not numbers")

	_, ok = doc.Int64("state")
	assert.False(t, ok)

	state, ok := doc.String("state")
	assert.True(t, ok)
	assert.Equal(t, "ACTIVE", state)

	assert.Equal(t, []string{"x", "y"}, doc.Strings("ids"))
	assert.Nil(t, doc.Strings("missing"))
}

func Test_Metadata_Helpers(t *testing.T) {
	// arrange
	metadata := Metadata{Timestamp: 1_700_000_000_123}

	// act + assert
	assert.Equal(t, time.UnixMilli(1_700_000_000_123).UTC(), metadata.Time())
	assert.False(t, metadata.HasOperationReference())

	metadata.OperationReference = 5
	assert.True(t, metadata.HasOperationReference())
}

func Test_AsTyped(t *testing.T) {
	// arrange
	record := counterRecord(1, 2, counterValue{Items: []string{"a"}})

	// act
	typed, ok := AsTyped[counterValue](record)
	_, wrong := AsTyped[string](record)

	// assert
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, typed.Value.Items)
	assert.Equal(t, int64(2), typed.Position)
	assert.False(t, wrong)
}
