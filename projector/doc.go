// Package projector provides the core abstractions of a projection engine that turns
// ordered, partitioned records of a process orchestration log into query-optimized documents.
//
// The engine is built from a few narrow components:
//   - Record: the immutable input unit (metadata plus a typed payload)
//   - ExportHandler: one (record kind x entity kind) mapping, bound into a Registry
//   - BatchWriter: loads or creates entities per generated id, mutates them and flushes them
//   - BatchRequest: the write operations of one processing window, submitted as one bulk call
//   - ReferenceCache: in-memory lookup of definitional entities used for denormalization
//   - TreePathBuilder: ancestry paths of nested process instances
//   - ExporterMetadata: "first observed key" watermarks that switch between id regimes
//
// All write operations are idempotent and the guarded upsert is position-monotonic,
// so a failed window can be retried as a whole.
//
// Common usage pattern:
//
//	registry, err := projector.NewRegistryBuilder().
//		With(projector.Bind(myHandler)).
//		Build()
//	if err != nil {
//		// handle error
//	}
//
//	writer, err := projector.NewBatchWriter(registry, store, projector.WithMaxRecordsPerWindow(500))
//	if err != nil {
//		// handle error
//	}
//
//	writer.AddRecord(ctx, record)
//	if writer.ShouldFlush() {
//		err = writer.Flush(ctx)
//	}
package projector
