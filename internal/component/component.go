package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"celixdm/internal/dmerrors"
	"celixdm/internal/eventloop"
	"celixdm/internal/registry"
	"celixdm/internal/servicedep"
	"celixdm/pkg/logging"
)

// Component is the engine's state-machine core: one instance per managed
// unit, tracking required/optional service dependencies and bracketing
// the user's Init/Start/Stop/Deinit callbacks around the four lifecycle
// states. Every state mutation happens on the owning Loop's goroutine;
// the mutex below guards only the Info snapshot, matching the
// callback-outside-lock discipline the engine's base service type uses.
type Component struct {
	mu sync.Mutex

	uuid string
	name string

	loop *eventloop.Loop
	reg  registry.Registry

	state        State
	enabled      bool
	timesStarted int
	timesResumed int
	lastErr      error

	callbacks   Callbacks
	deps        []*servicedep.Dependency
	removedDeps []*servicedep.Dependency
	provided    []*ProvidedInterface

	optionalTrackersOpen bool

	stateObserver func(old, new State)
}

// SetStateObserver installs a callback invoked, outside of any internal
// lock, every time this component's state changes. Intended for the
// dependency manager to fan state changes out to its own subscribers;
// at most one observer is supported.
func (c *Component) SetStateObserver(observer func(old, new State)) {
	c.mu.Lock()
	c.stateObserver = observer
	c.mu.Unlock()
}

// New creates a disabled Component identified by a random UUID. loop is
// the event loop all of this component's state mutations are serialized
// onto; reg is the registry its provided interfaces are published to.
func New(name string, loop *eventloop.Loop, reg registry.Registry) *Component {
	return &Component{
		uuid:  uuid.New().String(),
		name:  name,
		loop:  loop,
		reg:   reg,
		state: Inactive,
	}
}

// NewWithUUID creates a Component using an explicit identity, parsed
// with uuid.Parse; an invalid value falls back to a fresh random UUID
// rather than failing construction, since the identity is diagnostic
// and never used as a correctness-critical key by the engine itself.
func NewWithUUID(id, name string, loop *eventloop.Loop, reg registry.Registry) *Component {
	c := New(name, loop, reg)
	if parsed, err := uuid.Parse(id); err == nil {
		c.uuid = parsed.String()
	} else {
		logging.Warn("Component", "component %q: invalid uuid %q, generated %s instead", name, id, c.uuid)
	}
	return c
}

// UUID returns the component's identity, injected into every provided
// interface's properties as component.uuid.
func (c *Component) UUID() string {
	return c.uuid
}

// Name returns the component's friendly name.
func (c *Component) Name() string {
	return c.name
}

// SetCallbacks installs the lifecycle callbacks. Only valid before
// Enable.
func (c *Component) SetCallbacks(cb Callbacks) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return fmt.Errorf("component %q: %w: cannot change callbacks while enabled", c.name, dmerrors.ErrConfiguration)
	}
	c.callbacks = cb
	return nil
}

// AddServiceDependency registers dep with this component and wires its
// event sink so dependency events are posted onto this component's
// loop. Only valid before Enable.
func (c *Component) AddServiceDependency(dep *servicedep.Dependency) error {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return fmt.Errorf("component %q: %w: cannot add dependency while enabled", c.name, dmerrors.ErrConfiguration)
	}
	c.deps = append(c.deps, dep)
	c.mu.Unlock()

	dep.SetEventSink(func(ev servicedep.Event) {
		c.loop.FireGeneric(&eventloop.Item{
			Label: fmt.Sprintf("component %s: dependency %s event %s", c.name, dep.Name(), ev.Type),
			Data:  ev,
			Process: func(data interface{}) {
				c.handleDependencyEvent(dep, data.(servicedep.Event))
			},
		})
	})
	return nil
}

// RemoveServiceDependency detaches dep from this component: its tracker
// is closed and, per the engine's destroyability invariant, dep moves
// into a removed-dependencies list rather than simply vanishing — it is
// only forgotten once tracker closure is confirmed. Detaching dep and
// the handle_change re-evaluation it triggers both run on the loop
// goroutine, like every other dependency-set mutation.
func (c *Component) RemoveServiceDependency(dep *servicedep.Dependency) error {
	c.mu.Lock()
	attached := false
	for _, d := range c.deps {
		if d == dep {
			attached = true
			break
		}
	}
	c.mu.Unlock()
	if !attached {
		return fmt.Errorf("component %q: %w: dependency %q is not attached", c.name, dmerrors.ErrConfiguration, dep.Name())
	}

	c.loop.FireGeneric(&eventloop.Item{
		Label: fmt.Sprintf("component %s: remove dependency %s", c.name, dep.Name()),
		Process: func(interface{}) {
			c.mu.Lock()
			for i, d := range c.deps {
				if d == dep {
					c.deps = append(c.deps[:i], c.deps[i+1:]...)
					break
				}
			}
			c.removedDeps = append(c.removedDeps, dep)
			c.mu.Unlock()

			dep.Disable(func() {
				c.mu.Lock()
				for i, d := range c.removedDeps {
					if d == dep {
						c.removedDeps = append(c.removedDeps[:i], c.removedDeps[i+1:]...)
						break
					}
				}
				c.mu.Unlock()
				logging.Debug("Component", "component %q: removed dependency %q tracker closed", c.name, dep.Name())
			})

			c.handleChange()
		},
	})
	return nil
}

// AddProvidedInterface registers a service this component will publish
// once it reaches TrackingOptional. RegistrationID starts at -1 (spec's
// unregistered sentinel). Only valid before Enable.
func (c *Component) AddProvidedInterface(serviceName string, impl interface{}, props registry.Properties) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return fmt.Errorf("component %q: %w: cannot add provided interface while enabled", c.name, dmerrors.ErrConfiguration)
	}
	c.provided = append(c.provided, &ProvidedInterface{
		ServiceName:    serviceName,
		Impl:           impl,
		Properties:     props,
		RegistrationID: -1,
	})
	return nil
}

// Enable starts evaluating this component's dependency fixpoint. Required
// dependency trackers are opened immediately; optional ones are opened
// only once the component reaches TrackingOptional.
func (c *Component) Enable(ctx context.Context) error {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return nil
	}
	c.enabled = true
	deps := append([]*servicedep.Dependency(nil), c.deps...)
	c.mu.Unlock()

	for _, d := range deps {
		if d.IsRequired() {
			if err := d.Enable(ctx); err != nil {
				return err
			}
		}
	}

	done := make(chan struct{})
	c.loop.FireGeneric(&eventloop.Item{
		Label: fmt.Sprintf("component %s: enable", c.name),
		Process: func(interface{}) {
			c.setState(WaitingForRequired)
			c.handleChange()
			close(done)
		},
	})
	<-done
	return nil
}

// Disable tears the component down: unregisters services, runs Stop and
// Deinit if they had run, disables every dependency tracker, and sets
// state to Inactive. done, if non-nil, is invoked once every dependency
// has confirmed disablement — this mirrors the destroy-quiescence loop
// the dependency manager relies on rather than a fixed timeout.
func (c *Component) Disable(ctx context.Context, done func()) {
	c.loop.FireGeneric(&eventloop.Item{
		Label: fmt.Sprintf("component %s: disable", c.name),
		Process: func(interface{}) {
			c.tearDown()
			c.mu.Lock()
			c.enabled = false
			deps := append([]*servicedep.Dependency(nil), c.deps...)
			c.mu.Unlock()

			c.disableDependencies(deps, done)
		},
	})
}

func (c *Component) disableDependencies(deps []*servicedep.Dependency, done func()) {
	if len(deps) == 0 {
		if done != nil {
			done()
		}
		return
	}

	remaining := len(deps)
	var once sync.Once
	finish := func() {
		once.Do(func() {
			if done != nil {
				done()
			}
		})
	}

	var mu sync.Mutex
	for _, d := range deps {
		d := d
		d.Disable(func() {
			mu.Lock()
			remaining--
			r := remaining
			mu.Unlock()
			if r == 0 {
				finish()
			}
		})
	}
}

// IsDisabled reports whether every dependency has confirmed disablement
// and the component itself is disabled and Inactive — the predicate the
// dependency manager polls while destroying a component.
func (c *Component) IsDisabled() bool {
	c.mu.Lock()
	enabled := c.enabled
	state := c.state
	deps := append([]*servicedep.Dependency(nil), c.deps...)
	removed := append([]*servicedep.Dependency(nil), c.removedDeps...)
	c.mu.Unlock()

	if enabled || state != Inactive {
		return false
	}
	for _, d := range deps {
		if !d.IsDisabled() {
			return false
		}
	}
	for _, d := range removed {
		if !d.IsDisabled() {
			return false
		}
	}
	return true
}

// Info returns a lock-free snapshot for introspection (CLI list output).
func (c *Component) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		UUID:         c.uuid,
		Name:         c.name,
		State:        c.state,
		TimesStarted: c.timesStarted,
		TimesResumed: c.timesResumed,
	}
	if c.lastErr != nil {
		info.LastError = c.lastErr.Error()
	}
	for _, d := range c.deps {
		info.Dependencies = append(info.Dependencies, DependencyInfo{
			Name:      d.Name(),
			Required:  d.IsRequired(),
			Available: d.IsAvailable(),
			Strategy:  d.GetStrategy().String(),
		})
	}
	for _, p := range c.provided {
		info.ProvidedNames = append(info.ProvidedNames, p.ServiceName)
	}
	return info
}

// State returns the current lifecycle state.
func (c *Component) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Component) setState(s State) {
	c.mu.Lock()
	old := c.state
	c.state = s
	observer := c.stateObserver
	c.mu.Unlock()

	if observer != nil && old != s {
		observer(old, s)
	}
}

func (c *Component) setInactive(err error) {
	c.mu.Lock()
	old := c.state
	c.state = Inactive
	c.enabled = false
	c.lastErr = err
	observer := c.stateObserver
	c.mu.Unlock()

	if err != nil {
		logging.Error("Component", err, "component %q forced to INACTIVE", c.name)
	}
	if observer != nil && old != Inactive {
		observer(old, Inactive)
	}
}

// requiredResolved reports whether every required dependency is
// resolved (tracker open and, if required, available).
func (c *Component) requiredResolved() bool {
	c.mu.Lock()
	deps := append([]*servicedep.Dependency(nil), c.deps...)
	c.mu.Unlock()

	for _, d := range deps {
		if d.IsRequired() && !d.Resolved() {
			return false
		}
	}
	return true
}

// handleChange is the fixpoint evaluator: given the current resolution
// of this component's dependencies, drive it to the state that
// resolution implies. Must run on the loop goroutine.
func (c *Component) handleChange() {
	c.mu.Lock()
	enabled := c.enabled
	state := c.state
	c.mu.Unlock()

	if !enabled {
		return
	}

	resolved := c.requiredResolved()

	switch state {
	case Inactive:
		if resolved {
			c.transitionUp()
		}
	case WaitingForRequired:
		if resolved {
			c.transitionUp()
		}
	case Instantiated:
		// No required-dependency-down edge out of INSTANTIATED: while
		// unresolved the component simply waits here, already
		// initialized, for required dependencies to resolve again.
		if resolved {
			c.resumeFromInstantiated()
		}
	case TrackingOptional:
		if !resolved {
			c.transitionDown()
		}
	}
}

// transitionUp runs Init, settles in INSTANTIATED, then hands off to
// resumeFromInstantiated for Start and the move into TRACKING_OPTIONAL;
// a callback failure forces INACTIVE.
func (c *Component) transitionUp() {
	if c.callbacks.Init != nil {
		if err := c.callbacks.Init(); err != nil {
			c.setInactive(fmt.Errorf("%w: init: %v", dmerrors.ErrLifecycleCallback, err))
			return
		}
	}
	c.setState(Instantiated)
	c.resumeFromInstantiated()
}

// resumeFromInstantiated runs Start and advances into TRACKING_OPTIONAL
// (opening optional trackers and registering provided services). It is
// reached both on first activation, right after transitionUp's Init,
// and directly from INSTANTIATED when a required dependency that had
// flapped away becomes resolved again — in the latter case Init does
// not re-run, only Start, matching times_started counting resumptions
// rather than re-initializations.
func (c *Component) resumeFromInstantiated() {
	if c.callbacks.Start != nil {
		if err := c.callbacks.Start(); err != nil {
			c.setInactive(fmt.Errorf("%w: start: %v", dmerrors.ErrLifecycleCallback, err))
			return
		}
	}

	c.mu.Lock()
	c.timesStarted++
	c.mu.Unlock()

	c.openOptionalAndRegister()
}

func (c *Component) openOptionalAndRegister() {
	c.mu.Lock()
	alreadyOpen := c.optionalTrackersOpen
	deps := append([]*servicedep.Dependency(nil), c.deps...)
	c.mu.Unlock()

	if !alreadyOpen {
		for _, d := range deps {
			if !d.IsRequired() {
				if err := d.Enable(c.loop.LoopContext()); err != nil {
					logging.Error("Component", err, "component %q: failed to open optional tracker %q", c.name, d.Name())
				}
			}
		}
		c.mu.Lock()
		c.optionalTrackersOpen = true
		c.mu.Unlock()
	}

	c.registerProvidedServices()
	c.setState(TrackingOptional)
}

// transitionDown is the state table's single TRACKING_OPTIONAL down
// edge: unregister provided services and stop, landing in INSTANTIATED.
// Deinit does not run here — the component stays initialized, awaiting
// re-resolution, and only deinits if it is later disabled outright
// while sitting in INSTANTIATED (see tearDown). A Stop failure forces
// INACTIVE instead, since the component can no longer be trusted to
// resume cleanly.
func (c *Component) transitionDown() {
	c.unregisterProvidedServices()

	if c.callbacks.Stop != nil {
		if err := c.callbacks.Stop(); err != nil {
			c.setInactive(fmt.Errorf("%w: stop: %v", dmerrors.ErrLifecycleCallback, err))
			return
		}
	}
	c.setState(Instantiated)
}

func (c *Component) runDeinitBestEffort() {
	if c.callbacks.Deinit == nil {
		return
	}
	if err := c.callbacks.Deinit(); err != nil {
		logging.Error("Component", err, "component %q: deinit callback failed, continuing teardown", c.name)
	}
}

// tearDown runs the on-entry actions for every down edge between the
// component's current state and INACTIVE, per the state table: a
// component in TRACKING_OPTIONAL unregisters and stops on its way
// through INSTANTIATED; INSTANTIATED (whether reached that way or
// already the starting state) runs deinit on its way to INACTIVE. A
// component still WAITING_FOR_REQUIRED never had init/start run, so it
// gets neither callback — only "disable all dependencies" applies,
// handled by the caller.
func (c *Component) tearDown() {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == Inactive {
		return
	}

	if state == TrackingOptional {
		c.unregisterProvidedServices()
		if c.callbacks.Stop != nil {
			if err := c.callbacks.Stop(); err != nil {
				c.setInactive(fmt.Errorf("%w: stop: %v", dmerrors.ErrLifecycleCallback, err))
				c.runDeinitBestEffort()
				return
			}
		}
		state = Instantiated
	}

	if state == Instantiated {
		c.runDeinitBestEffort()
	}

	c.setState(Inactive)
}

func (c *Component) registerProvidedServices() {
	c.mu.Lock()
	provided := c.provided
	uid := c.uuid
	c.mu.Unlock()

	for _, p := range provided {
		if p.RegistrationID != -1 {
			continue
		}
		props := registry.Properties{}
		for k, v := range p.Properties {
			props[k] = v
		}
		props[registry.PropComponentUUID] = uid

		id, err := c.reg.RegisterServiceAsync(c.loop.LoopContext(), p.ServiceName, p.Impl, props)
		if err != nil {
			logging.Error("Component", err, "component %q: failed to register %q, will retry next transition", c.name, p.ServiceName)
			continue
		}
		p.RegistrationID = id
	}
}

func (c *Component) unregisterProvidedServices() {
	c.mu.Lock()
	provided := c.provided
	c.mu.Unlock()

	for _, p := range provided {
		if p.RegistrationID == -1 {
			continue
		}
		if err := c.reg.UnregisterService(c.loop.LoopContext(), p.RegistrationID); err != nil {
			logging.Error("Component", err, "component %q: failed to unregister %q", c.name, p.ServiceName)
		}
		p.RegistrationID = -1
	}
}

// needsSuspend reports whether this component must be suspended around
// processing ev: only in TrackingOptional, only under the suspend
// strategy, and only when a callback is actually configured to fire.
func (c *Component) needsSuspend(dep *servicedep.Dependency, ev servicedep.Event) bool {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state != TrackingOptional {
		return false
	}
	if dep.GetStrategy() != servicedep.StrategySuspend {
		return false
	}
	if ev.Type == servicedep.EventSet {
		return dep.IsSetCallbackConfigured()
	}
	return dep.IsAddRemCallbacksConfigured()
}

// handleDependencyEvent is invoked on the loop goroutine for every
// translated dependency event. ADD and SET-with-non-nil-service fire
// the user callback before handleChange re-evaluates the fixpoint;
// REMOVE and SET-with-nil-service re-evaluate first. When a suspend is
// needed, the whole sequence runs inside a stop/start bracket with
// services withdrawn.
func (c *Component) handleDependencyEvent(dep *servicedep.Dependency, ev servicedep.Event) {
	fireBeforeChange := ev.Type == servicedep.EventAdd ||
		(ev.Type == servicedep.EventSet && ev.Service != nil)

	sequence := func() {
		if fireBeforeChange {
			dep.Invoke(ev)
			c.handleChange()
		} else {
			c.handleChange()
			dep.Invoke(ev)
		}
	}

	if c.needsSuspend(dep, ev) {
		c.suspendAround(sequence)
		return
	}
	sequence()
}

// suspendAround withdraws provided services, stops the component, runs
// fn, then restarts and re-registers. A Stop or Start failure forces
// INACTIVE and abandons the bracket; fn's own handleChange may itself
// already have transitioned the component down, in which case Start is
// skipped.
func (c *Component) suspendAround(fn func()) {
	c.unregisterProvidedServices()

	if c.callbacks.Stop != nil {
		if err := c.callbacks.Stop(); err != nil {
			c.setInactive(fmt.Errorf("%w: stop (suspend): %v", dmerrors.ErrLifecycleCallback, err))
			return
		}
	}

	fn()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != TrackingOptional {
		return
	}

	if c.callbacks.Start != nil {
		if err := c.callbacks.Start(); err != nil {
			c.setInactive(fmt.Errorf("%w: start (resume): %v", dmerrors.ErrLifecycleCallback, err))
			return
		}
	}
	c.registerProvidedServices()

	c.mu.Lock()
	c.timesResumed++
	c.mu.Unlock()
}
