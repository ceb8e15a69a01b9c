// Package postgresengine provides a PostgreSQL implementation of projector.DocumentStore.
//
// Documents live in one table with a jsonb column, keyed by index name and document id.
// Each operation kind renders into a single statement that applies the same semantics
// as projector.Operation.Apply inside the database, and all statements of a bulk are sent
// as one multi-statement call, so a bulk either applies completely or not at all.
//
// Supported database adapters are pgx.Pool, sql.DB and sqlx.DB:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	store, _ := postgresengine.NewDocumentStoreFromPGXPool(
//		pool,
//		postgresengine.WithTableName("list_view_documents"),
//		postgresengine.WithLogger(logger),
//	)
//	_ = store.CreateSchema(ctx)
//	writer, _ := projector.NewBatchWriter(registry, store)
package postgresengine
