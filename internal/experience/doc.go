// Package experience provides the durable record of task executions.
//
// An Experience captures one completed (or failed) task: its input, output,
// operating mode, model label, and the full plan/execute/reflect reasoning
// trace. The Store is an append-only log with substring search, exact-match
// filters, aggregate statistics, and bounded-size retention: at capacity the
// oldest 20% of records are evicted before a new record is appended.
//
// Two Store implementations exist: a SQLite-backed store (one row per
// record, real insert/delete, safe under concurrent writers) and a
// mutex-guarded in-memory store for tests and ephemeral use.
//
// Failure policy: read operations degrade to empty results and log, write
// and delete operations surface ErrStore-wrapped errors. Reads never block
// callers on storage trouble; writes are never silently lost.
package experience
