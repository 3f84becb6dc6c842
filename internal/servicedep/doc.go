// Package servicedep implements the Service Dependency: a tracker
// configuration for one named service that records whether it is
// required or optional, which suspension strategy governs mutations to
// its binding, and which user callbacks to invoke on ADD/REMOVE/SET.
//
// A Dependency does not talk to a Component directly. Its owner (see
// internal/component) supplies an event sink via SetEventSink before
// calling Enable; every registry callback the dependency receives is
// translated into a servicedep.Event and handed to that sink, which in
// practice posts it onto the single event loop goroutine. This keeps the
// dependency itself free of any event-loop-threading concerns — it only
// ever runs its own bookkeeping under its own mutex — while guaranteeing
// the owning component never observes a dependency event off the loop
// thread.
package servicedep
