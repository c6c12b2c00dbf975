// Package lease implements the acquire/use/release discipline that
// keeps stateful resources (database connections, locks, temp
// directories, sockets) from leaking out of the pipeline step that
// acquired them.
//
// An acquire function returns a Releasable: the resource value paired
// with its release function. Releasables are transient; they are meant
// to be consumed immediately by Bracket, which guarantees release on
// every exit path (success, error, or panic in the use function).
//
// Scope-checked handles (Lease and Scope) provide a runtime stand-in
// for nominal scope typing: a Lease issued inside one bracket cannot be
// unwrapped under any other scope. Callers that hold a raw resource
// value must not let it escape the bracket that produced it; the
// scoped variant turns that convention into a construction-time check.
//
// The package also provides Pool, a bounded FIFO resource pool with
// strict waiter ordering and no health checking. A caller that never
// releases permanently shrinks pool availability; disciplined use of
// Bracket is the enforcement mechanism.
package lease
