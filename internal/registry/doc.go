// Package registry models the service registry as an external
// collaborator: an injected interface the dependency manager engine
// consumes, never a process-wide singleton, so that component and
// dependency tests can run deterministically without a real framework.
//
// A Registry supports registering/unregistering named services with
// properties, and opening a tracker against a service name (with an
// optional filter) that delivers Add/Remove/Set callbacks whenever a
// matching service is published, withdrawn, or the highest-ranked bound
// service changes. All registry operations are asynchronous with respect
// to the caller's event loop: callbacks may arrive on any goroutine, and
// it is the caller's responsibility (see internal/servicedep) to route
// them back onto its own event loop before touching component state.
package registry
