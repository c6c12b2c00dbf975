// Package macros provides the builtin macro set: one capability macro
// per declarable port or lease kind, plus the idempotency macro that
// caches step results in KV. DefaultRegistry returns them in canonical
// registration order; hosts may register additional macros after the
// builtins.
package macros
