package postgresengine

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	dialectPostgres = "postgres"
	colIndex        = "index_name"
	colID           = "id"
	colRouting      = "routing"
	colDoc          = "doc"
	conflictTarget  = colIndex + ", " + colID
	cteRemoved      = "removed"
	castJsonb       = "?::jsonb"
	emptyJSONList   = "'[]'::jsonb"
	notRemoved      = "NOT EXISTS (SELECT 1 FROM " + cteRemoved + ")"

	// storedList is the list field of the stored document, or an empty list if it is not a list.
	storedList = "CASE WHEN jsonb_typeof(? -> ?) = 'array' THEN ? -> ? ELSE " + emptyJSONList + " END"

	// unionList keeps the stored order and appends new values in the order given.
	unionList = "COALESCE((SELECT jsonb_agg(u.value ORDER BY u.position) FROM (" +
		"SELECT c.value, min(c.position) AS position FROM (" +
		"SELECT e.value, e.ordinality AS position FROM jsonb_array_elements_text(" + storedList + ") WITH ORDINALITY AS e(value, ordinality) " +
		"UNION ALL " +
		"SELECT n.value, n.ordinality + 2147483648 FROM jsonb_array_elements_text(?::jsonb) WITH ORDINALITY AS n(value, ordinality)" +
		") AS c GROUP BY c.value) AS u), " + emptyJSONList + ")"

	differenceList = "COALESCE((SELECT jsonb_agg(e.value ORDER BY e.ordinality) " +
		"FROM jsonb_array_elements_text(" + storedList + ") WITH ORDINALITY AS e(value, ordinality) " +
		"WHERE e.value NOT IN (SELECT jsonb_array_elements_text(?::jsonb))), " + emptyJSONList + ")"

	positionGuardedMerge = "(? || ?::jsonb) || CASE " +
		"WHEN jsonb_typeof(? -> ?) IS DISTINCT FROM 'number' THEN ?::jsonb " +
		"WHEN (? ->> ?)::numeric < ? THEN ?::jsonb " +
		"ELSE '{}'::jsonb END"

	keepStoredRouting = "CASE WHEN EXCLUDED.routing = '' THEN ? ELSE EXCLUDED.routing END"

	createTable = "CREATE TABLE IF NOT EXISTS %s (" +
		colIndex + " text NOT NULL, " +
		colID + " text NOT NULL, " +
		colRouting + " text NOT NULL DEFAULT '', " +
		colDoc + " jsonb NOT NULL, " +
		"PRIMARY KEY (" + conflictTarget + "))"
)

// statementBuilder renders operations into plain SQL statements with inlined values.
type statementBuilder struct {
	dialect   goqu.DialectWrapper
	tableName string
}

func newStatementBuilder(tableName string) statementBuilder {
	return statementBuilder{
		dialect:   goqu.Dialect(dialectPostgres),
		tableName: tableName,
	}
}

func (b statementBuilder) quotedTable() string {
	return pgx.Identifier{b.tableName}.Sanitize()
}

func (b statementBuilder) storedDoc() exp.IdentifierExpression {
	return goqu.T(b.tableName).Col(colDoc)
}

func (b statementBuilder) storedRouting() exp.IdentifierExpression {
	return goqu.T(b.tableName).Col(colRouting)
}

// build renders one operation. Every operation renders into exactly one statement.
func (b statementBuilder) build(op projector.Operation) (string, error) {
	var statement interface{ ToSQL() (string, []any, error) }
	var err error

	switch op.Kind {
	case projector.OpInsert:
		statement, err = b.insert(op, b.dialect.Insert(b.tableName), goqu.L("EXCLUDED.doc"))

	case projector.OpUpsert:
		statement, err = b.upsert(op)

	case projector.OpUpsertWithPositionGuard:
		statement, err = b.upsertWithPositionGuard(op)

	case projector.OpUpdate:
		statement, err = b.update(op)

	case projector.OpDelete:
		statement = b.delete(op)

	default:
		return "", errors.Join(projector.ErrBuildingStatementFailed, errors.New("unknown operation kind "+op.Kind.String()))
	}

	if err != nil {
		return "", errors.Join(projector.ErrBuildingStatementFailed, err)
	}

	sqlStatement, _, toSQLErr := statement.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(projector.ErrBuildingStatementFailed, toSQLErr)
	}

	return sqlStatement, nil
}

// insert writes the document that op creates if absent. If present, onConflict becomes the stored document.
func (b statementBuilder) insert(
	op projector.Operation,
	insertStmt *goqu.InsertDataset,
	onConflict exp.Expression,
) (*goqu.InsertDataset, error) {

	created, _ := op.Apply(nil, false)

	raw, err := projector.MarshalDocument(created)
	if err != nil {
		return nil, err
	}

	return insertStmt.
		Rows(goqu.Record{
			colIndex:   op.Index,
			colID:      op.ID,
			colRouting: op.Routing,
			colDoc:     goqu.L(castJsonb, string(raw)),
		}).
		OnConflict(goqu.DoUpdate(conflictTarget, goqu.Record{
			colDoc:     onConflict,
			colRouting: goqu.L(keepStoredRouting, b.storedRouting()),
		})), nil
}

func (b statementBuilder) upsert(op projector.Operation) (*goqu.InsertDataset, error) {
	fields, err := projector.MarshalDocument(op.Fields)
	if err != nil {
		return nil, err
	}

	return b.insert(op, b.dialect.Insert(b.tableName), goqu.L("? || ?::jsonb", b.storedDoc(), string(fields)))
}

func (b statementBuilder) upsertWithPositionGuard(op projector.Operation) (*goqu.InsertDataset, error) {
	if op.Guard == nil {
		return b.upsert(op)
	}

	fields, err := projector.MarshalDocument(op.Guard.Fields)
	if err != nil {
		return nil, err
	}

	guarded := projector.Document{}
	guarded.Merge(op.Guard.GuardedFields)
	guarded[op.Guard.Field] = op.Guard.Position

	guardedRaw, err := projector.MarshalDocument(guarded)
	if err != nil {
		return nil, err
	}

	merge := goqu.L(positionGuardedMerge,
		b.storedDoc(), string(fields),
		b.storedDoc(), op.Guard.Field, string(guardedRaw),
		b.storedDoc(), op.Guard.Field, op.Guard.Position, string(guardedRaw),
	)

	return b.insert(op, b.dialect.Insert(b.tableName), merge)
}

// update runs the script on the stored document. Without an upsert document an absent document stays absent.
// A removal that empties the list of a document that must be deleted then deletes it in the same statement.
func (b statementBuilder) update(op projector.Operation) (interface{ ToSQL() (string, []any, error) }, error) {
	scripted, err := b.scriptedDoc(op.Script)
	if err != nil {
		return nil, err
	}

	deleteWhenEmpty := op.Script != nil && op.Script.Kind == projector.ScriptRemoveValues && op.Script.DeleteWhenEmpty

	if op.Document == nil {
		updateStmt := b.dialect.Update(b.tableName).
			Set(goqu.Record{colDoc: scripted}).
			Where(b.keyOf(op)...)

		if deleteWhenEmpty {
			removed, removedErr := b.removeWhenEmptied(op)
			if removedErr != nil {
				return nil, removedErr
			}
			updateStmt = updateStmt.With(cteRemoved, removed).Where(goqu.L(notRemoved))
		}

		return updateStmt, nil
	}

	if !deleteWhenEmpty {
		return b.insert(op, b.dialect.Insert(b.tableName), scripted)
	}

	removed, err := b.removeWhenEmptied(op)
	if err != nil {
		return nil, err
	}

	raw, err := projector.MarshalDocument(op.Document)
	if err != nil {
		return nil, err
	}

	return b.dialect.Insert(b.tableName).
		With(cteRemoved, removed).
		Cols(colIndex, colID, colRouting, colDoc).
		FromQuery(b.dialect.
			Select(goqu.V(op.Index), goqu.V(op.ID), goqu.V(op.Routing), goqu.L(castJsonb, string(raw))).
			Where(goqu.L(notRemoved))).
		OnConflict(goqu.DoUpdate(conflictTarget, goqu.Record{colDoc: scripted})), nil
}

// scriptedDoc is the stored document after the script ran on it.
func (b statementBuilder) scriptedDoc(script *projector.Script) (exp.Expression, error) {
	if script == nil {
		return b.storedDoc(), nil
	}

	values, err := projector.MarshalDocumentValue(script.Values)
	if err != nil {
		return nil, err
	}

	var list exp.LiteralExpression

	switch script.Kind {
	case projector.ScriptAddValues:
		list = goqu.L(unionList, b.storedListArgs(script.Field, string(values))...)

	case projector.ScriptRemoveValues:
		list = goqu.L(differenceList, b.storedListArgs(script.Field, string(values))...)

	default:
		return nil, errors.New("unknown script kind " + script.Kind.String())
	}

	return goqu.L("? || jsonb_build_object(?::text, ?)", b.storedDoc(), script.Field, list), nil
}

func (b statementBuilder) storedListArgs(field string, values string) []any {
	return []any{b.storedDoc(), field, b.storedDoc(), field, values}
}

// removeWhenEmptied deletes the stored document if the removal leaves its list empty.
func (b statementBuilder) removeWhenEmptied(op projector.Operation) (*goqu.DeleteDataset, error) {
	values, err := projector.MarshalDocumentValue(op.Script.Values)
	if err != nil {
		return nil, err
	}

	remaining := goqu.L(differenceList, b.storedListArgs(op.Script.Field, string(values))...)

	return b.dialect.Delete(b.tableName).
		Where(b.keyOf(op)...).
		Where(goqu.L("? = "+emptyJSONList, remaining)).
		Returning(goqu.C(colID)), nil
}

func (b statementBuilder) delete(op projector.Operation) *goqu.DeleteDataset {
	deleteStmt := b.dialect.Delete(b.tableName).Where(b.keyOf(op)...)

	// a routed delete only addresses the document stored under the same routing key
	if op.Routing != "" {
		deleteStmt = deleteStmt.Where(goqu.C(colRouting).Eq(op.Routing))
	}

	return deleteStmt
}

func (b statementBuilder) keyOf(op projector.Operation) []exp.Expression {
	return []exp.Expression{
		goqu.C(colIndex).Eq(op.Index),
		goqu.C(colID).Eq(op.ID),
	}
}

func (b statementBuilder) selectDocument(index, id string) (string, error) {
	sqlQuery, _, err := b.dialect.From(b.tableName).
		Select(goqu.L("?::text", goqu.C(colDoc))).
		Where(goqu.C(colIndex).Eq(index), goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return "", errors.Join(projector.ErrBuildingStatementFailed, err)
	}

	return sqlQuery, nil
}

func (b statementBuilder) selectIDs(index string) (string, error) {
	sqlQuery, _, err := b.dialect.From(b.tableName).
		Select(goqu.C(colID)).
		Where(goqu.C(colIndex).Eq(index)).
		Order(goqu.L(`? COLLATE "C"`, goqu.C(colID)).Asc()).
		ToSQL()
	if err != nil {
		return "", errors.Join(projector.ErrBuildingStatementFailed, err)
	}

	return sqlQuery, nil
}
