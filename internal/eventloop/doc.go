// Package eventloop implements the single dedicated executor that
// serializes every state mutation in the dependency manager engine.
//
// # Overview
//
// Exactly one Loop is owned per framework instance. It accepts opaque
// work items — (bundle id, label, data, process func, release func) — and
// runs them strictly in FIFO submission order on one goroutine. Callers on
// any other goroutine may enqueue work via FireGeneric and, outside the
// loop goroutine, block until the queue drains past their submission
// point via WaitForEmptyQueue.
//
// # Thread identity
//
// Go has no built-in goroutine-local storage, so "is this the loop
// goroutine" is modeled the idiomatic way: via a context.Context value
// threaded through every call that originates from inside the loop.
// IsCurrentGoroutineLoop(ctx) reports true only for a context derived
// from Loop.LoopContext; work items do not receive a context, so code on
// the loop passes LoopContext explicitly, and the check does not look at
// the calling goroutine itself.
// Callbacks that need to call back into the manager use this to decide
// whether to run inline or re-enqueue, avoiding re-entrant deadlock.
package eventloop
