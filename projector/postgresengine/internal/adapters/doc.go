// Package adapters provide database adapter implementations for the PostgreSQL document store.
//
// The adapters support pgx.Pool, sql.DB and sqlx.DB behind the common DBAdapter interface.
// Statements are executed without bind arguments so that a multi-statement bulk
// runs as one implicit transaction with every driver.
package adapters
