// Package manager implements the Dependency Manager: the per-bundle
// registry of Components, offering synchronous and asynchronous
// add/remove, aggregate introspection (CreateInfo/CreateInfos,
// AllComponentsActive) and a fan-out of state-change events for
// external observers (SubscribeToStateChanges).
//
// Add/Remove block the caller until the requested operation settles;
// AddAsync/RemoveAsync return immediately and report completion through
// an onDone callback. Calling either synchronous variant from the event
// loop goroutine itself degrades to the async path with a logged
// misuse, rather than deadlocking the loop waiting on itself.
//
// Destruction never relies on a timeout: RemoveAsync disables a
// component and then re-runs a quiescence check on a timer until every one of
// its dependencies confirms disablement and its own state has settled
// to Inactive, matching the engine's contract that destroy always
// completes, it simply may take longer when a dependency's own
// teardown (e.g. a registry round trip) takes longer.
package manager
