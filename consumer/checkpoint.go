package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	checkpointKeyPrefix = "checkpoint/partition/"
	watermarkKeyPrefix  = "watermark/"
)

var (
	ErrNilCheckpointDB     = errors.New("nil checkpoint database supplied")
	ErrCorruptCheckpoint   = errors.New("stored checkpoint value is corrupt")
	ErrCheckpointIOFailure = errors.New("checkpoint storage failed")
)

// BadgerCheckpointStore persists the acknowledged position of every partition and the exporter
// metadata watermarks in BadgerDB. Positions only ever move forward.
type BadgerCheckpointStore struct {
	db *badger.DB
}

func NewBadgerCheckpointStore(db *badger.DB) (*BadgerCheckpointStore, error) {
	if db == nil {
		return nil, ErrNilCheckpointDB
	}

	return &BadgerCheckpointStore{db: db}, nil
}

// Acknowledge stores position for the partition unless a higher position is already stored.
func (s *BadgerCheckpointStore) Acknowledge(ctx context.Context, partitionID int32, position int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := checkpointKey(partitionID)

	err := s.db.Update(func(txn *badger.Txn) error {
		stored, found, err := readInt64(txn, key)
		if err != nil {
			return err
		}

		if found && stored >= position {
			return nil
		}

		return txn.Set(key, encodeInt64(position))
	})
	if err != nil {
		return errors.Join(ErrCheckpointIOFailure, err)
	}

	return nil
}

// Position returns the acknowledged position of the partition and whether one is stored.
func (s *BadgerCheckpointStore) Position(partitionID int32) (int64, bool, error) {
	var position int64
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		position, found, err = readInt64(txn, checkpointKey(partitionID))
		return err
	})
	if err != nil {
		return 0, false, errors.Join(ErrCheckpointIOFailure, err)
	}

	return position, found, nil
}

// SaveWatermarks stores every set watermark of metadata. Stored watermarks are never changed,
// they are set at most once.
func (s *BadgerCheckpointStore) SaveWatermarks(metadata *projector.ExporterMetadata) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for kind, key := range metadata.Snapshot() {
			storageKey := watermarkKey(kind)

			_, found, err := readInt64(txn, storageKey)
			if err != nil {
				return err
			}
			if found {
				continue
			}

			if err := txn.Set(storageKey, encodeInt64(key)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.Join(ErrCheckpointIOFailure, err)
	}

	return nil
}

// WatermarkOptions returns the stored watermarks as options for projector.NewExporterMetadata.
func (s *BadgerCheckpointStore) WatermarkOptions() ([]projector.MetadataOption, error) {
	options := make([]projector.MetadataOption, 0)
	prefix := []byte(watermarkKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			kind, err := strconv.Atoi(string(bytes.TrimPrefix(item.Key(), prefix)))
			if err != nil {
				return errors.Join(ErrCorruptCheckpoint, fmt.Errorf("key %q: %w", item.Key(), err))
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			key, err := decodeInt64(value)
			if err != nil {
				return err
			}

			options = append(options, projector.WithWatermark(projector.WatermarkKind(kind), key))
		}

		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrCheckpointIOFailure, err)
	}

	return options, nil
}

func checkpointKey(partitionID int32) []byte {
	return []byte(checkpointKeyPrefix + strconv.FormatInt(int64(partitionID), 10))
}

func watermarkKey(kind projector.WatermarkKind) []byte {
	return []byte(watermarkKeyPrefix + strconv.Itoa(int(kind)))
}

func readInt64(txn *badger.Txn, key []byte) (int64, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}

	decoded, err := decodeInt64(value)
	if err != nil {
		return 0, false, err
	}

	return decoded, true, nil
}

func encodeInt64(value int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(value))
}

func decodeInt64(value []byte) (int64, error) {
	if len(value) != 8 {
		return 0, errors.Join(ErrCorruptCheckpoint, fmt.Errorf("%d bytes", len(value)))
	}

	return int64(binary.BigEndian.Uint64(value)), nil
}
