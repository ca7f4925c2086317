// Package query executes SQL statements against a managed pool with retry,
// per-attempt timeouts, duration accounting, and error classification.
//
// Execution runs in two phases, each under the retry policy. Phase one
// secures a live pool. Phase two leases a connection and runs the statement
// under its own deadline. When an error marks the pool as broken, the retry
// layer forces exactly one pool recreation before the next attempt, and the
// attempt re-reads the current pool so it lands on the replacement.
//
// Failures surface as a single *db3.QueryError whose Kind is one of the
// db3 sentinel errors, with passwords masked out of every message.
package query
