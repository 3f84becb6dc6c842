// Package component implements the Component: the engine's per-unit
// state machine, cycling through Inactive, WaitingForRequired,
// Instantiated and TrackingOptional as its service dependencies resolve.
//
// Every state mutation runs on the single internal/eventloop goroutine
// the Component is bound to at construction. handleChange is the
// fixpoint evaluator: it is re-run on Enable, after every dependency
// event and after every dependency removal, and it alone decides what
// state the component should be in given the current resolution of its
// dependencies. Init/Start bracket the move into TrackingOptional; Stop
// alone brackets the fall back to Instantiated when a required
// dependency is lost, and Stop/Deinit run when Disable takes the
// component to Inactive.
//
// A Component never calls back into internal/servicedep.Dependency
// directly outside of Enable/Disable/Invoke: every ADD/REMOVE/SET is
// delivered through the dependency's event sink, which this package
// wires to post a closure onto its own loop, guaranteeing the
// component's view of its dependencies only ever changes on its own
// goroutine.
package component
