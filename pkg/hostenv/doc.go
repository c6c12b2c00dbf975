// Package hostenv provides the standard host bindings behind the macro
// environment: an HTTP port over net/http, in-memory and SQLite-backed
// KV stores, a channel-based queue broker, real clock and crypto ports,
// a zerolog-backed logging port, and the lease openers for database
// connections, named locks, temporary directories, and dialed sockets.
//
// A Host owns the long-lived resources (database handle, lock pools,
// queue broker); the macro environment it exposes manufactures
// per-execution ports on top of them.
package hostenv
