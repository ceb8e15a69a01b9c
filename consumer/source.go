package consumer

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const maxLineBytes = 16 * 1024 * 1024

// JSONLSource reads one JSON record envelope per line. Blank lines are skipped.
// A line that does not decode yields an error wrapping projector.ErrMalformedRecord, reading continues after it.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

func NewJSONLSource(reader io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	return &JSONLSource{scanner: scanner}
}

func (s *JSONLSource) Next(ctx context.Context) (projector.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return projector.Record{}, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return projector.Record{}, fmt.Errorf("line %d: %w", s.line+1, err)
			}
			return projector.Record{}, io.EOF
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := records.DecodeRecord(line)
		if err != nil {
			return projector.Record{}, fmt.Errorf("line %d: %w", s.line, err)
		}

		return record, nil
	}
}

// SliceSource delivers a fixed list of records.
type SliceSource struct {
	records []projector.Record
	next    int
}

func NewSliceSource(records ...projector.Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (projector.Record, error) {
	if err := ctx.Err(); err != nil {
		return projector.Record{}, err
	}

	if s.next >= len(s.records) {
		return projector.Record{}, io.EOF
	}

	record := s.records[s.next]
	s.next++

	return record, nil
}

// ReadAll drains a source into per-partition slice sources, each sorted by position.
// Malformed records are dropped and counted.
func ReadAll(ctx context.Context, source RecordSource) (map[int32]*SliceSource, int, error) {
	byPartition := make(map[int32][]projector.Record)
	malformed := 0

	for {
		record, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, projector.ErrMalformedRecord) {
			malformed++
			continue
		}
		if err != nil {
			return nil, malformed, errors.Join(ErrSourceFailed, err)
		}

		byPartition[record.PartitionID] = append(byPartition[record.PartitionID], record)
	}

	sources := make(map[int32]*SliceSource, len(byPartition))
	for partitionID, partitionRecords := range byPartition {
		slices.SortStableFunc(partitionRecords, func(a, b projector.Record) int {
			return cmp.Compare(a.Position, b.Position)
		})
		sources[partitionID] = NewSliceSource(partitionRecords...)
	}

	return sources, malformed, nil
}
