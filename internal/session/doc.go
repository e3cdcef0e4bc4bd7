// Package session connects relations to a SQLite store.
//
// An Engine is the arel.Engine of every table built from it. Relations ask
// it for a fresh Session whenever they read rows or apply a write command;
// a Session never outlives the call that asked for it.
//
// STATEMENT LOG:
//
// Every statement a session runs is stamped with a monotonic seq number
// from the engine's Clock and logged through slog at debug level, together
// with the session id. When a Journal is attached the statement, its row
// count and any failure are also recorded there, in seq order.
//
// Session ids come from an IDGenerator: UUIDv7 in production, a fixed
// sequence in tests so logs and journals are reproducible.
package session
