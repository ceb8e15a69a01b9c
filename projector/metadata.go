package projector

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// WatermarkKind names one schema transition concern tracked by ExporterMetadata.
type WatermarkKind int

const (
	// FirstCorrelatedMessageSubscriptionKey is the first correlated message subscription key
	// projected under the single-key id scheme.
	FirstCorrelatedMessageSubscriptionKey WatermarkKind = iota

	// FirstRootProcessInstanceKey is the first process instance key eligible for the
	// rootProcessInstanceKey field.
	FirstRootProcessInstanceKey

	watermarkKindCount
)

const unsetWatermark int64 = -1

func (k WatermarkKind) String() string {
	switch k {
	case FirstCorrelatedMessageSubscriptionKey:
		return "first_correlated_message_subscription_key"
	case FirstRootProcessInstanceKey:
		return "first_root_process_instance_key"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (k WatermarkKind) valid() bool {
	return k >= 0 && k < watermarkKindCount
}

// ExporterMetadata holds the process-wide "first observed key" watermarks.
// Each watermark is set at most once and is safe for concurrent use by all partition consumers.
type ExporterMetadata struct {
	watermarks [watermarkKindCount]atomic.Int64
}

// MetadataOption defines a functional option for configuring ExporterMetadata.
type MetadataOption func(*ExporterMetadata) error

// WithWatermark restores a watermark that is known at stream start, e.g. read from durable storage.
func WithWatermark(kind WatermarkKind, key int64) MetadataOption {
	return func(m *ExporterMetadata) error {
		if !kind.valid() {
			return errors.Join(ErrUnknownWatermarkKind, fmt.Errorf("kind %d", int(kind)))
		}

		m.watermarks[kind].Store(key)

		return nil
	}
}

// NewExporterMetadata creates ExporterMetadata with all watermarks unset unless restored by options.
func NewExporterMetadata(options ...MetadataOption) (*ExporterMetadata, error) {
	metadata := &ExporterMetadata{}
	for i := range metadata.watermarks {
		metadata.watermarks[i].Store(unsetWatermark)
	}

	for _, option := range options {
		if err := option(metadata); err != nil {
			return nil, err
		}
	}

	return metadata, nil
}

// SetFirstKeyIfUnset sets the watermark to key if it is still unset and returns the effective watermark.
// Once set, further calls are no-ops.
func (m *ExporterMetadata) SetFirstKeyIfUnset(kind WatermarkKind, key int64) int64 {
	if !kind.valid() {
		return unsetWatermark
	}

	m.watermarks[kind].CompareAndSwap(unsetWatermark, key)

	return m.watermarks[kind].Load()
}

// FirstKey returns the watermark and whether it is set.
func (m *ExporterMetadata) FirstKey(kind WatermarkKind) (int64, bool) {
	if !kind.valid() {
		return unsetWatermark, false
	}

	key := m.watermarks[kind].Load()

	return key, key != unsetWatermark
}

// IsBefore reports whether the watermark is set and key lies before it (legacy regime).
func (m *ExporterMetadata) IsBefore(kind WatermarkKind, key int64) bool {
	watermark, ok := m.FirstKey(kind)
	return ok && key < watermark
}

// IsAfter reports whether the watermark is set and key is at or after it (new regime).
func (m *ExporterMetadata) IsAfter(kind WatermarkKind, key int64) bool {
	watermark, ok := m.FirstKey(kind)
	return ok && key >= watermark
}

// Snapshot returns all set watermarks, e.g. for persisting them.
func (m *ExporterMetadata) Snapshot() map[WatermarkKind]int64 {
	snapshot := make(map[WatermarkKind]int64, watermarkKindCount)
	for kind := WatermarkKind(0); kind < watermarkKindCount; kind++ {
		if key, ok := m.FirstKey(kind); ok {
			snapshot[kind] = key
		}
	}

	return snapshot
}
