package servicedep

import (
	"context"
	"fmt"
	"sync"

	"celixdm/internal/dmerrors"
	"celixdm/internal/registry"
	"celixdm/pkg/logging"
)

// Strategy selects whether the owning component is suspended (services
// withdrawn, stop/start bracket the user callback) around a binding
// mutation, or the mutation is simply tracked while the component keeps
// running.
type Strategy int

const (
	StrategySuspend Strategy = iota
	StrategyLocking
)

func (s Strategy) String() string {
	if s == StrategyLocking {
		return "locking"
	}
	return "suspend"
}

// EventType distinguishes the three events a tracker can deliver.
type EventType int

const (
	EventAdd EventType = iota
	EventRemove
	EventSet
)

func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "ADD"
	case EventRemove:
		return "REMOVE"
	case EventSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// Event is what a Dependency hands to its sink for every registry
// callback it receives. For EventSet, Service is nil when no matching
// service remains bound.
type Event struct {
	Type       EventType
	Service    interface{}
	Properties registry.Properties
}

// Callbacks is the user capability record: closures the engine invokes
// but never introspects.
type Callbacks struct {
	OnAdd    func(svc interface{}, props registry.Properties)
	OnRemove func(svc interface{}, props registry.Properties)
	OnSet    func(svc interface{}, props registry.Properties)
}

func (c Callbacks) setConfigured() bool {
	return c.OnSet != nil
}

func (c Callbacks) addRemConfigured() bool {
	return c.OnAdd != nil || c.OnRemove != nil
}

// Dependency is a tracker configuration for one named service.
type Dependency struct {
	mu sync.Mutex

	name     string
	filter   string
	required bool
	strategy Strategy
	cb       Callbacks

	reg    registry.Registry
	handle registry.TrackerHandle

	trackerOpen bool
	disabled    bool
	boundCount  int

	sink func(Event)
}

// New creates a Dependency targeting the named service through reg.
// Required defaults to true and strategy to suspend, matching the
// engine's conservative default (ported from the source's dm component
// dependency defaults).
func New(name string, reg registry.Registry) *Dependency {
	return &Dependency{
		name:     name,
		required: true,
		strategy: StrategySuspend,
		reg:      reg,
	}
}

// Name returns the target service name.
func (d *Dependency) Name() string {
	return d.name
}

// SetEventSink installs the function that receives translated events.
// Must be called before Enable.
func (d *Dependency) SetEventSink(sink func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// SetFilter sets the registry filter, only valid before Enable.
func (d *Dependency) SetFilter(filter string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trackerOpen {
		return fmt.Errorf("servicedep %q: %w: cannot change filter after enable", d.name, dmerrors.ErrConfiguration)
	}
	d.filter = filter
	return nil
}

// SetRequired configures whether this dependency must be available for
// the owning component to be considered resolved. Only valid before
// Enable.
func (d *Dependency) SetRequired(required bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trackerOpen {
		return fmt.Errorf("servicedep %q: %w: cannot change required after enable", d.name, dmerrors.ErrConfiguration)
	}
	d.required = required
	return nil
}

// SetStrategy configures the suspend policy. Only valid before Enable.
func (d *Dependency) SetStrategy(strategy Strategy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trackerOpen {
		return fmt.Errorf("servicedep %q: %w: cannot change strategy after enable", d.name, dmerrors.ErrConfiguration)
	}
	d.strategy = strategy
	return nil
}

// SetCallbacks installs the add/remove/set callbacks. Only valid before
// Enable.
func (d *Dependency) SetCallbacks(cb Callbacks) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trackerOpen {
		return fmt.Errorf("servicedep %q: %w: cannot change callbacks after enable", d.name, dmerrors.ErrConfiguration)
	}
	d.cb = cb
	return nil
}

// IsRequired reports whether this dependency is required.
func (d *Dependency) IsRequired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.required
}

// GetStrategy returns the configured suspend strategy.
func (d *Dependency) GetStrategy() Strategy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.strategy
}

// IsSetCallbackConfigured reports whether a `set` callback is present.
func (d *Dependency) IsSetCallbackConfigured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb.setConfigured()
}

// IsAddRemCallbacksConfigured reports whether an `add` or `remove`
// callback is present.
func (d *Dependency) IsAddRemCallbacksConfigured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb.addRemConfigured()
}

// IsTrackerOpen reports whether the underlying registry tracker is open.
func (d *Dependency) IsTrackerOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trackerOpen
}

// IsAvailable reports whether at least one matching service is currently
// bound.
func (d *Dependency) IsAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.boundCount > 0
}

// IsDisabled reports whether Disable has completed (tracker closure
// acknowledged by the registry). Terminal once true.
func (d *Dependency) IsDisabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// Resolved reports whether this dependency no longer blocks the owning
// component's transition into INSTANTIATED: true if optional, or if
// required and available, and in both cases only once the tracker is
// open.
func (d *Dependency) Resolved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.trackerOpen {
		return false
	}
	if !d.required {
		return true
	}
	return d.boundCount > 0
}

// Enable opens the underlying service tracker. From this point the
// dependency translates registry callbacks into Events delivered to the
// sink installed via SetEventSink.
func (d *Dependency) Enable(ctx context.Context) error {
	d.mu.Lock()
	if d.trackerOpen {
		d.mu.Unlock()
		return nil
	}
	name, filter := d.name, d.filter
	d.mu.Unlock()

	handle, err := d.reg.OpenTracker(ctx, name, filter, registry.TrackerCallbacks{
		OnAdd:    d.handleRegistryAdd,
		OnRemove: d.handleRegistryRemove,
		OnSet:    d.handleRegistrySet,
	})
	if err != nil {
		return fmt.Errorf("servicedep %q: %w: open tracker: %v", name, dmerrors.ErrRegistryFailure, err)
	}

	d.mu.Lock()
	d.handle = handle
	d.trackerOpen = true
	d.mu.Unlock()
	return nil
}

// Disable closes the tracker asynchronously. done, if non-nil, is
// invoked once closure is acknowledged and the dependency has become
// disabled (terminal).
func (d *Dependency) Disable(done func()) {
	d.mu.Lock()
	if !d.trackerOpen || d.disabled {
		d.disabled = true
		d.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	handle := d.handle
	d.trackerOpen = false
	d.mu.Unlock()

	d.reg.CloseTracker(handle, func() {
		d.mu.Lock()
		d.disabled = true
		d.mu.Unlock()
		if done != nil {
			done()
		}
	})
}

// Invoke runs the user callback matching ev.Type, if one is configured.
// The owning component calls this once it is safe to do so (on the loop
// goroutine, outside any suspend bracket as appropriate).
func (d *Dependency) Invoke(ev Event) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()

	switch ev.Type {
	case EventAdd:
		if cb.OnAdd != nil {
			cb.OnAdd(ev.Service, ev.Properties)
		}
	case EventRemove:
		if cb.OnRemove != nil {
			cb.OnRemove(ev.Service, ev.Properties)
		}
	case EventSet:
		if cb.OnSet != nil {
			cb.OnSet(ev.Service, ev.Properties)
		}
	}
}

func (d *Dependency) handleRegistryAdd(ref registry.ServiceReference) {
	d.mu.Lock()
	d.boundCount++
	sink := d.sink
	d.mu.Unlock()

	if sink != nil {
		sink(Event{Type: EventAdd, Service: ref.Service, Properties: ref.Properties})
	} else {
		logging.Warn("ServiceDependency", "dependency %q received ADD with no event sink installed", d.name)
	}
}

func (d *Dependency) handleRegistryRemove(ref registry.ServiceReference) {
	d.mu.Lock()
	if d.boundCount > 0 {
		d.boundCount--
	}
	sink := d.sink
	d.mu.Unlock()

	if sink != nil {
		sink(Event{Type: EventRemove, Service: ref.Service, Properties: ref.Properties})
	} else {
		logging.Warn("ServiceDependency", "dependency %q received REMOVE with no event sink installed", d.name)
	}
}

func (d *Dependency) handleRegistrySet(ref *registry.ServiceReference) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()

	if sink == nil {
		logging.Warn("ServiceDependency", "dependency %q received SET with no event sink installed", d.name)
		return
	}

	if ref == nil {
		sink(Event{Type: EventSet, Service: nil, Properties: nil})
		return
	}
	sink(Event{Type: EventSet, Service: ref.Service, Properties: ref.Properties})
}
