package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/projector/postgresengine/internal/adapters"
)

const (
	defaultDocumentTableName   = "projector_documents"
	logMsgBuildStatementFailed = "failed to build statement for operation"
	logMsgDBExecFailed         = "database execution failed during bulk write"
	logMsgDBQueryFailed        = "database query execution failed"
	logMsgCloseRowsFailed      = "failed to close database rows"
	logMsgScanRowFailed        = "failed to scan database row"
	logMsgBulkWritten          = "bulk written"
	logMsgSchemaCreated        = "schema created"
	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperation            = "documentstore operation: "
	logAttrError               = "error"
	logAttrQuery               = "query"
	logAttrIndex               = "index"
	logAttrDocumentID          = "document_id"
	logAttrOperationKind       = "operation_kind"
	logAttrOperationCount      = "operation_count"
	logAttrDurationMS          = "duration_ms"
	logAttrTable               = "table"
	logActionBulk              = "bulk"
	logActionQuery             = "query"
	statementSeparator         = ";\n"
)

// DocumentStore is a projector.DocumentStore backed by a PostgreSQL table with a jsonb document column.
type DocumentStore struct {
	db               adapters.DBAdapter
	tableName        string
	logger           projector.Logger
	contextualLogger projector.ContextualLogger
	metricsCollector projector.MetricsCollector
	tracingCollector projector.TracingCollector
}

// NewDocumentStoreFromPGXPool creates a new DocumentStore using a pgx Pool with optional configuration.
func NewDocumentStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, projector.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewPGXAdapter(db), options...)
}

// NewDocumentStoreFromPGXPoolAndReplica creates a new DocumentStore that reads documents from a replica pool.
// Bulks always go to the primary pool.
func NewDocumentStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*DocumentStore, error) {
	if db == nil || replica == nil {
		return nil, projector.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewDocumentStoreFromSQLDB creates a new DocumentStore using a sql.DB with optional configuration.
func NewDocumentStoreFromSQLDB(db *sql.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, projector.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLAdapter(db), options...)
}

// NewDocumentStoreFromSQLX creates a new DocumentStore using a sqlx.DB with optional configuration.
func NewDocumentStoreFromSQLX(db *sqlx.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, projector.ErrNilDatabaseConnection
	}

	return newDocumentStore(adapters.NewSQLXAdapter(db), options...)
}

func newDocumentStore(db adapters.DBAdapter, options ...Option) (*DocumentStore, error) {
	s := &DocumentStore{
		db:        db,
		tableName: defaultDocumentTableName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// TableName returns the name of the document table.
func (s *DocumentStore) TableName() string {
	return s.tableName
}

// CreateSchema creates the document table if it does not exist yet.
func (s *DocumentStore) CreateSchema(ctx context.Context) error {
	statement := fmt.Sprintf(createTable, newStatementBuilder(s.tableName).quotedTable())

	if _, err := s.db.Exec(ctx, statement); err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, statement)
		return errors.Join(projector.ErrBulkWriteFailed, err)
	}

	s.logOperation(ctx, logMsgSchemaCreated, logAttrTable, s.tableName)

	return nil
}

// Bulk applies all operations in order within one database round trip.
// The statements run as a single implicit transaction, a failure applies none of them.
func (s *DocumentStore) Bulk(ctx context.Context, operations []projector.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(operations) == 0 {
		return nil
	}

	ctx, tracer := s.startBulkTracing(ctx, len(operations))
	metrics := s.startBulkMetrics(ctx)

	statement, buildErr := s.buildBulkStatement(ctx, operations)
	if buildErr != nil {
		metrics.recordError(errorTypeBuildStatement, 0)
		tracer.finishError(errorTypeBuildStatement, 0)

		return buildErr
	}

	start := time.Now()
	_, execErr := s.db.Exec(ctx, statement)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, statement, logActionBulk, duration)

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrOperationCount, len(operations))
		metrics.recordError(errorTypeExecFailed, duration)
		tracer.finishError(errorTypeExecFailed, duration)

		return errors.Join(projector.ErrBulkWriteFailed, execErr)
	}

	metrics.recordSuccess(len(operations), duration)
	tracer.finishSuccess(len(operations), duration)

	s.logOperation(
		ctx,
		logMsgBulkWritten,
		logAttrOperationCount, len(operations),
		logAttrDurationMS, s.toMilliseconds(duration),
	)

	return nil
}

func (s *DocumentStore) buildBulkStatement(ctx context.Context, operations []projector.Operation) (string, error) {
	builder := newStatementBuilder(s.tableName)
	statements := make([]string, 0, len(operations))

	for _, op := range operations {
		statement, err := builder.build(op)
		if err != nil {
			s.logError(
				ctx,
				logMsgBuildStatementFailed,
				err,
				logAttrOperationKind, op.Kind.String(),
				logAttrIndex, op.Index,
				logAttrDocumentID, op.ID,
			)

			return "", err
		}

		statements = append(statements, statement)
	}

	return strings.Join(statements, statementSeparator), nil
}

// Get returns the stored document.
func (s *DocumentStore) Get(ctx context.Context, index, id string) (projector.Document, bool, error) {
	sqlQuery, err := newStatementBuilder(s.tableName).selectDocument(index, id)
	if err != nil {
		return nil, false, err
	}

	rows, err := s.query(ctx, sqlQuery)
	if err != nil {
		return nil, false, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, false, errors.Join(projector.ErrQueryingDocumentsFailed, rowsErr)
		}
		return nil, false, nil
	}

	var raw string
	if scanErr := rows.Scan(&raw); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrIndex, index, logAttrDocumentID, id)
		return nil, false, errors.Join(projector.ErrScanningDBRowFailed, scanErr)
	}

	doc, err := projector.UnmarshalDocument([]byte(raw))
	if err != nil {
		return nil, false, errors.Join(projector.ErrScanningDBRowFailed, err)
	}

	return doc, true, nil
}

// IDs returns the ids of all documents of an index in byte order.
func (s *DocumentStore) IDs(ctx context.Context, index string) ([]string, error) {
	sqlQuery, err := newStatementBuilder(s.tableName).selectIDs(index)
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrIndex, index)
			return nil, errors.Join(projector.ErrScanningDBRowFailed, scanErr)
		}
		ids = append(ids, id)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(projector.ErrQueryingDocumentsFailed, rowsErr)
	}

	return ids, nil
}

func (s *DocumentStore) query(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if err != nil {
		s.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
		return nil, errors.Join(projector.ErrQueryingDocumentsFailed, err)
	}

	return rows, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *DocumentStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

var _ projector.DocumentStore = (*DocumentStore)(nil)
