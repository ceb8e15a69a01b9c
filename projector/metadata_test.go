package projector_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/process-projector-go/projector"
)

func Test_ExporterMetadata_When_Unset(t *testing.T) {
	// arrange
	metadata, err := NewExporterMetadata()
	require.NoError(t, err)

	// act
	_, isSet := metadata.FirstKey(FirstRootProcessInstanceKey)

	// assert
	assert.False(t, isSet)
	assert.False(t, metadata.IsBefore(FirstRootProcessInstanceKey, 1))
	assert.False(t, metadata.IsAfter(FirstRootProcessInstanceKey, 1))
	assert.Empty(t, metadata.Snapshot())
}

func Test_ExporterMetadata_SetFirstKeyIfUnset_IsSetOnlyOnce(t *testing.T) {
	// arrange
	metadata, err := NewExporterMetadata()
	require.NoError(t, err)

	// act
	first := metadata.SetFirstKeyIfUnset(FirstCorrelatedMessageSubscriptionKey, 100)
	second := metadata.SetFirstKeyIfUnset(FirstCorrelatedMessageSubscriptionKey, 50)

	// assert
	assert.Equal(t, int64(100), first)
	assert.Equal(t, int64(100), second)
	assert.True(t, metadata.IsBefore(FirstCorrelatedMessageSubscriptionKey, 99))
	assert.False(t, metadata.IsBefore(FirstCorrelatedMessageSubscriptionKey, 100))
	assert.True(t, metadata.IsAfter(FirstCorrelatedMessageSubscriptionKey, 100))
	assert.False(t, metadata.IsAfter(FirstCorrelatedMessageSubscriptionKey, 99))
}

func Test_ExporterMetadata_Watermarks_AreIndependent(t *testing.T) {
	// arrange
	metadata, err := NewExporterMetadata()
	require.NoError(t, err)

	// act
	metadata.SetFirstKeyIfUnset(FirstRootProcessInstanceKey, 7)

	// assert
	assert.Equal(t, map[WatermarkKind]int64{FirstRootProcessInstanceKey: 7}, metadata.Snapshot())
}

func Test_NewExporterMetadata_WithWatermark_RestoresIt(t *testing.T) {
	// arrange
	metadata, err := NewExporterMetadata(WithWatermark(FirstRootProcessInstanceKey, 42))
	require.NoError(t, err)

	// act
	effective := metadata.SetFirstKeyIfUnset(FirstRootProcessInstanceKey, 1)

	// assert
	assert.Equal(t, int64(42), effective)
}

func Test_NewExporterMetadata_WithWatermark_When_KindIsUnknown(t *testing.T) {
	// act
	_, err := NewExporterMetadata(WithWatermark(WatermarkKind(99), 1))

	// assert
	assert.ErrorIs(t, err, ErrUnknownWatermarkKind)
}

func Test_ExporterMetadata_When_ConcurrentWritersRace_ExactlyOneKeyWins(t *testing.T) {
	// arrange
	metadata, err := NewExporterMetadata()
	require.NoError(t, err)

	results := make([]int64, 16)

	// act
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = metadata.SetFirstKeyIfUnset(FirstCorrelatedMessageSubscriptionKey, int64(1000+i))
		}(i)
	}
	wg.Wait()

	// assert
	winner, isSet := metadata.FirstKey(FirstCorrelatedMessageSubscriptionKey)
	require.True(t, isSet)
	for _, result := range results {
		assert.Equal(t, winner, result)
	}
}

func Test_WatermarkKind_String(t *testing.T) {
	assert.Equal(t, "first_root_process_instance_key", FirstRootProcessInstanceKey.String())
	assert.Equal(t, "unknown(5)", WatermarkKind(5).String())
}
