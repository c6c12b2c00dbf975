// Package stores provides the durable persistence layer for loom:
// SQLite-based storage with WAL mode for namespaced KV entries (the
// backing of the persistent KV port and the idempotency cache) and an
// append-only history of step executions.
package stores
