// Package store provides the SQLite database that compiled relations run
// against.
//
// A Store is an arel.Connection: Execute runs a SELECT and returns its raw
// tuples, which the relation then zips against its attributes. Write
// statements go through Exec, which reports the number of affected rows.
//
// # Pragmas
//
// File databases run in WAL mode with synchronous=NORMAL, a 5 second busy
// timeout and foreign keys enforced. In-memory databases keep SQLite's
// memory journal and get the rest.
//
// The pool is limited to a single connection. SQLite allows one writer at a
// time, and an in-memory database (":memory:") lives only as long as its
// connection.
//
// # Values
//
// Tuples hold the driver's values: int64, float64, string, []byte, bool,
// time.Time or nil. Columns declared DATE, DATETIME or TIMESTAMP come back
// as time.Time.
package store
