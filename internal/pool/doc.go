// Package pool manages the lifetime of a single PostgreSQL connection pool.
//
// A Manager owns at most one live pool at a time. Pools are created lazily on
// first use, recreated on demand when the retry layer detects a broken pool,
// and supervised by a keepalive goroutine that tears down idle pools, recycles
// pools past their maximum lifetime, and probes for silently dropped
// connections. Credentials are fetched from a db3.CredentialsProvider
// immediately before every creation so rotated passwords and short-lived
// auth tokens are always current.
//
// All state lives on the Manager; there are no package-level singletons.
// Concurrent creations are memoized so parallel callers share one in-flight
// attempt instead of racing to build pools.
package pool
