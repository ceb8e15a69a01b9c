package projector

import (
	"errors"
)

var ErrNilDocumentStore = errors.New("nil document store supplied")
var ErrNilRegistry = errors.New("nil registry supplied")
var ErrNilReferenceCache = errors.New("nil reference cache supplied")
var ErrDuplicateHandler = errors.New("a handler for this value type and entity type is already registered")
var ErrInvalidWindowSize = errors.New("window size must be positive")
var ErrInvalidCacheSize = errors.New("cache size must be positive")
var ErrFlushFailed = errors.New("flushing the batch of operations failed")
var ErrMalformedRecord = errors.New("malformed record")
var ErrUnexpectedPayload = errors.New("unexpected record payload type")
var ErrUnexpectedEntity = errors.New("unexpected entity type")
var ErrEmptyIndexName = errors.New("empty index name supplied")
var ErrEmptyDocumentID = errors.New("empty document id supplied")
var ErrUnknownWatermarkKind = errors.New("unknown watermark kind")
var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyDocumentTableName = errors.New("empty document table name supplied")
var ErrBuildingStatementFailed = errors.New("building the sql statement failed")
var ErrBulkWriteFailed = errors.New("writing the bulk of operations failed")
var ErrQueryingDocumentsFailed = errors.New("querying documents failed")
var ErrScanningDBRowFailed = errors.New("scanning the db row failed")
