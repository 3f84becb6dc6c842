// Package dmerrors defines the sentinel error kinds surfaced by the
// dependency manager engine (SPEC_FULL.md §7), shared across
// internal/registry, internal/servicedep, internal/component and
// internal/manager so callers can classify failures with errors.Is
// rather than string matching.
package dmerrors

import "errors"

var (
	// ErrConfiguration covers changing callbacks, dependencies or provided
	// interfaces after enable, removing a dependency that is not attached,
	// and removing a component the manager does not know. Reported to the
	// caller synchronously; the component is left unaffected. An invalid
	// UUID is not reported (NewWithUUID falls back to a random one), and
	// duplicate provided interfaces are not detected.
	ErrConfiguration = errors.New("configuration error")

	// ErrLifecycleCallback covers a non-nil return from init/start/stop.
	// The component is driven directly to INACTIVE and its enabled flag
	// is cleared; no further transitions are attempted until re-enabled
	// by the owner.
	// A deinit failure is only logged and teardown continues.
	ErrLifecycleCallback = errors.New("lifecycle callback failure")

	// ErrRegistryFailure covers a failed register/unregister against the
	// service registry. The provided interface keeps svc_id == -1 and is
	// retried on the next transition into TRACKING_OPTIONAL.
	ErrRegistryFailure = errors.New("registry failure")

	// ErrMisuse covers a synchronous call made from the event loop
	// goroutine where only the async variant is safe (e.g. a synchronous
	// destroy). The call degrades to its async path rather than blocking.
	ErrMisuse = errors.New("misuse")
)
