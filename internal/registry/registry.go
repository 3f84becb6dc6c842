package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"celixdm/internal/dmerrors"
	"celixdm/pkg/logging"
)

// Properties is a string-keyed map of string-or-typed-scalar values,
// matching the registry key contract of SPEC_FULL.md §6.
type Properties map[string]interface{}

// Well-known property keys, consumed or produced verbatim.
const (
	PropServiceID      = "service.id"
	PropServiceRanking = "service.ranking"
	PropServiceVersion = "service.version"
	PropObjectClass    = "objectClass"
	PropComponentUUID  = "component.uuid"
)

// ServiceReference is a published service as seen by a tracker: its
// registry id, name, implementation pointer and properties.
type ServiceReference struct {
	ID          int64
	ServiceName string
	Service     interface{}
	Properties  Properties
}

func (r *ServiceReference) ranking() int {
	if r == nil {
		return 0
	}
	if v, ok := r.Properties[PropServiceRanking]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

// TrackerCallbacks is the capability record a tracker is opened with. The
// registry only invokes these; it never introspects them.
type TrackerCallbacks struct {
	OnAdd    func(ref ServiceReference)
	OnRemove func(ref ServiceReference)
	// OnSet reports a change in the highest-ranked bound service for the
	// tracked name; ref is nil when no matching service remains bound.
	OnSet func(ref *ServiceReference)
}

// TrackerHandle identifies an open tracker for CloseTracker.
type TrackerHandle int64

// Registry is the external collaborator the dependency manager engine
// consumes: registers/unregisters services and opens/closes trackers.
// All operations are asynchronous with respect to the caller's event
// loop; callbacks may arrive on any goroutine.
type Registry interface {
	RegisterServiceAsync(ctx context.Context, name string, impl interface{}, props Properties) (int64, error)
	UnregisterService(ctx context.Context, id int64) error
	OpenTracker(ctx context.Context, name string, filter string, cb TrackerCallbacks) (TrackerHandle, error)
	CloseTracker(handle TrackerHandle, done func())
}

type trackerSub struct {
	handle    TrackerHandle
	name      string
	filterKey string
	filterVal string
	cb        TrackerCallbacks
	bound     map[int64]*ServiceReference
	highestID int64 // 0 means "none bound"
}

func (t *trackerSub) matches(ref *ServiceReference) bool {
	if ref.ServiceName != t.name {
		return false
	}
	if t.filterKey == "" {
		return true
	}
	v, ok := ref.Properties[t.filterKey]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == t.filterVal
}

// InMemoryRegistry is a deterministic, in-process Registry implementation
// used by the demo CLI and by tests. It has no network or persistence
// surface: register/unregister and tracker delivery happen synchronously
// from the caller's goroutine, which is sufficient to exercise the
// at-least-once-while-bound, exactly-once-per-event delivery contract
// the engine depends on.
type InMemoryRegistry struct {
	mu       sync.Mutex
	nextSvc  int64
	nextTrk  int64
	services map[int64]*ServiceReference
	trackers map[TrackerHandle]*trackerSub
}

// NewInMemory creates an empty InMemoryRegistry.
func NewInMemory() *InMemoryRegistry {
	return &InMemoryRegistry{
		services: make(map[int64]*ServiceReference),
		trackers: make(map[TrackerHandle]*trackerSub),
	}
}

// RegisterServiceAsync publishes a service. The returned id is assigned
// synchronously (mirroring celix_bundleContext_registerServiceWithOptionsAsync,
// which likewise hands back an id before registration work completes);
// tracker notification happens before this call returns since there is no
// real transport to make it genuinely asynchronous.
func (r *InMemoryRegistry) RegisterServiceAsync(ctx context.Context, name string, impl interface{}, props Properties) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("registry: %w: service name must not be empty", dmerrors.ErrRegistryFailure)
	}

	r.mu.Lock()
	r.nextSvc++
	id := r.nextSvc

	merged := Properties{}
	for k, v := range props {
		merged[k] = v
	}
	merged[PropServiceID] = id
	merged[PropObjectClass] = name

	ref := &ServiceReference{ID: id, ServiceName: name, Service: impl, Properties: merged}
	r.services[id] = ref

	matching := r.matchingTrackersLocked(ref)
	r.mu.Unlock()

	for _, t := range matching {
		r.deliverAdd(t, ref)
	}

	logging.Debug("Registry", "registered service %q id=%d", name, id)
	return id, nil
}

// UnregisterService withdraws a previously registered service.
func (r *InMemoryRegistry) UnregisterService(ctx context.Context, id int64) error {
	r.mu.Lock()
	ref, ok := r.services[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: %w: service id %d not registered", dmerrors.ErrRegistryFailure, id)
	}
	delete(r.services, id)
	matching := r.matchingTrackersLocked(ref)
	r.mu.Unlock()

	for _, t := range matching {
		r.deliverRemove(t, ref)
	}

	logging.Debug("Registry", "unregistered service id=%d", id)
	return nil
}

// OpenTracker opens a tracker for name, optionally restricted by filter
// (a minimal "(key=value)" equality filter; empty matches every service
// with that name). Existing matching services are delivered as initial
// Add/Set events before OpenTracker returns.
func (r *InMemoryRegistry) OpenTracker(ctx context.Context, name string, filter string, cb TrackerCallbacks) (TrackerHandle, error) {
	key, val := parseEqualityFilter(filter)

	r.mu.Lock()
	r.nextTrk++
	handle := TrackerHandle(r.nextTrk)
	t := &trackerSub{
		handle:    handle,
		name:      name,
		filterKey: key,
		filterVal: val,
		cb:        cb,
		bound:     make(map[int64]*ServiceReference),
	}
	r.trackers[handle] = t

	var initial []*ServiceReference
	for _, ref := range r.services {
		if t.matches(ref) {
			initial = append(initial, ref)
		}
	}
	r.mu.Unlock()

	sort.Slice(initial, func(i, j int) bool { return initial[i].ID < initial[j].ID })
	for _, ref := range initial {
		r.deliverAdd(t, ref)
	}

	return handle, nil
}

// CloseTracker closes a previously opened tracker. done, if non-nil, is
// invoked once closure is acknowledged; this implementation has no real
// transport to drain, so it acknowledges on a fresh goroutine, keeping
// the caller honest about treating closure as asynchronous.
func (r *InMemoryRegistry) CloseTracker(handle TrackerHandle, done func()) {
	r.mu.Lock()
	delete(r.trackers, handle)
	r.mu.Unlock()

	if done != nil {
		go done()
	}
}

func (r *InMemoryRegistry) matchingTrackersLocked(ref *ServiceReference) []*trackerSub {
	var out []*trackerSub
	for _, t := range r.trackers {
		if t.matches(ref) {
			out = append(out, t)
		}
	}
	return out
}

func (r *InMemoryRegistry) deliverAdd(t *trackerSub, ref *ServiceReference) {
	r.mu.Lock()
	t.bound[ref.ID] = ref
	r.mu.Unlock()

	if t.cb.OnAdd != nil {
		t.cb.OnAdd(*ref)
	}
	r.recomputeHighest(t)
}

func (r *InMemoryRegistry) deliverRemove(t *trackerSub, ref *ServiceReference) {
	r.mu.Lock()
	delete(t.bound, ref.ID)
	r.mu.Unlock()

	if t.cb.OnRemove != nil {
		t.cb.OnRemove(*ref)
	}
	r.recomputeHighest(t)
}

// recomputeHighest finds the highest-ranked (then highest id, for
// determinism) service still bound to t and fires OnSet if it changed.
func (r *InMemoryRegistry) recomputeHighest(t *trackerSub) {
	r.mu.Lock()
	var best *ServiceReference
	for _, ref := range t.bound {
		if best == nil || ref.ranking() > best.ranking() || (ref.ranking() == best.ranking() && ref.ID > best.ID) {
			best = ref
		}
	}

	var bestID int64
	if best != nil {
		bestID = best.ID
	}
	changed := bestID != t.highestID
	t.highestID = bestID
	r.mu.Unlock()

	if !changed || t.cb.OnSet == nil {
		return
	}
	if best == nil {
		t.cb.OnSet(nil)
		return
	}
	refCopy := *best
	t.cb.OnSet(&refCopy)
}

// parseEqualityFilter parses a minimal "(key=value)" filter. An empty or
// malformed filter matches everything; this registry does not implement
// full LDAP filter grammar, only what the engine's tests need.
func parseEqualityFilter(filter string) (key, val string) {
	f := strings.TrimSpace(filter)
	f = strings.TrimPrefix(f, "(")
	f = strings.TrimSuffix(f, ")")
	parts := strings.SplitN(f, "=", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
