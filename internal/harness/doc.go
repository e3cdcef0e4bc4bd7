// Package harness provides conformance testing for query catalogs.
//
// A scenario seeds a fresh in-memory database, builds a catalog's queries
// against it, runs a flow of reads and writes through the algebra and then
// checks the statements that ran and the data left behind.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: catalog.cue
//	session_prefix: s
//	setup:
//	  - CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)
//	flow:
//	  - insert: users
//	    record: { id: 1, name: alice, age: 30 }
//	    expect: { count: 1 }
//	  - query: adults
//	    expect:
//	      count: 1
//	      rows: [{ name: alice }]
//	  - update: users
//	    record: { age: 31 }
//	    where: { id: 1 }
//	assertions:
//	  - type: trace_contains
//	    kind: update
//	    sql: "SET age = 31"
//	  - type: final_state
//	    table: users
//	    where: { id: 1 }
//	    expect: { age: 31 }
//
// # Determinism
//
// Session ids come from a sequence generator and statements are numbered
// by the engine's clock, so the same scenario always produces the same
// trace. RunWithGolden compares that trace against testdata/golden.
package harness
