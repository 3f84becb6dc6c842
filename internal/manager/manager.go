package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"celixdm/internal/component"
	"celixdm/internal/dmerrors"
	"celixdm/internal/eventloop"
	"celixdm/internal/registry"
	"celixdm/pkg/logging"
)

// destroyPollInterval is how often RemoveAsync re-checks whether a
// disabling component has fully quiesced. There is no upper bound on
// the number of checks: a component is only ever removed from the
// manager once every dependency has confirmed disablement.
const destroyPollInterval = 5 * time.Millisecond

// Config holds the collaborators a Manager is built from.
type Config struct {
	Loop     *eventloop.Loop
	Registry registry.Registry
}

// Manager is the Dependency Manager: the per-bundle registry of
// Components, offering synchronous (wait for completion) and
// asynchronous (fire and notify via callback) variants of add/remove.
type Manager struct {
	mu         sync.RWMutex
	loop       *eventloop.Loop
	reg        registry.Registry
	components map[string]*component.Component

	stateSubscribers []chan<- StateChangeEvent

	metrics *Metrics
}

// New creates a Manager bound to cfg.Loop and cfg.Registry.
func New(cfg Config) *Manager {
	return &Manager{
		loop:       cfg.Loop,
		reg:        cfg.Registry,
		components: make(map[string]*component.Component),
		metrics:    NewMetrics(),
	}
}

// Add enables c and blocks until the initial enable has completed (not
// until it reaches TrackingOptional — that depends on dependencies
// external to this call). Must not be called from the event loop
// goroutine.
func (m *Manager) Add(ctx context.Context, c *component.Component) error {
	if m.loop.IsCurrentGoroutineLoop(ctx) {
		return m.addMisuse(c)
	}
	m.register(c)
	return c.Enable(ctx)
}

// AddAsync enables c without blocking the caller; onDone, if non-nil,
// is invoked with the enable result once it completes.
func (m *Manager) AddAsync(c *component.Component, onDone func(error)) {
	m.register(c)
	go func() {
		err := c.Enable(m.loop.LoopContext())
		if onDone != nil {
			onDone(err)
		}
	}()
}

func (m *Manager) addMisuse(c *component.Component) error {
	err := fmt.Errorf("manager: %w: Add called from the event loop goroutine, degrading to AddAsync", dmerrors.ErrMisuse)
	logging.Error("Manager", err, "component %q", c.Name())
	m.AddAsync(c, nil)
	return err
}

func (m *Manager) register(c *component.Component) {
	m.mu.Lock()
	m.components[c.UUID()] = c
	m.mu.Unlock()

	c.SetStateObserver(func(old, new_ component.State) {
		m.metrics.RecordTransition(c.Name(), old, new_)
		m.publishStateChange(c, old, new_)
	})
}

// Remove disables and destroys the component identified by uuid,
// blocking until every dependency has confirmed disablement. Must not
// be called from the event loop goroutine.
func (m *Manager) Remove(ctx context.Context, uuid string) error {
	if m.loop.IsCurrentGoroutineLoop(ctx) {
		err := fmt.Errorf("manager: %w: Remove called from the event loop goroutine, degrading to RemoveAsync", dmerrors.ErrMisuse)
		logging.Error("Manager", err, "uuid %q", uuid)
		m.RemoveAsync(uuid, nil)
		return err
	}

	done := make(chan error, 1)
	m.RemoveAsync(uuid, func(err error) { done <- err })

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveAsync disables and destroys the component identified by uuid
// without blocking the caller. onDone, if non-nil, is invoked once
// destruction completes (or immediately with an error if uuid is
// unknown).
func (m *Manager) RemoveAsync(uuid string, onDone func(error)) {
	m.mu.RLock()
	c, ok := m.components[uuid]
	m.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("manager: %w: component %s not registered", dmerrors.ErrConfiguration, uuid)
		if onDone != nil {
			onDone(err)
		}
		return
	}

	c.Disable(m.loop.LoopContext(), func() {
		m.awaitDestroyed(c, uuid, onDone)
	})
}

// awaitDestroyed re-runs a disablement check every destroyPollInterval
// (via time.AfterFunc, off the event loop) until the component
// confirms every dependency is disabled and its own state is Inactive,
// then removes it from the registry. No fixed number of attempts or
// deadline: destruction only completes once quiescence is observed.
func (m *Manager) awaitDestroyed(c *component.Component, uuid string, onDone func(error)) {
	if !c.IsDisabled() {
		m.metrics.RecordDestroyRetry(c.Name())
		time.AfterFunc(destroyPollInterval, func() {
			m.awaitDestroyed(c, uuid, onDone)
		})
		return
	}

	m.mu.Lock()
	delete(m.components, uuid)
	m.mu.Unlock()

	logging.Debug("Manager", "component %q destroyed", c.Name())
	if onDone != nil {
		onDone(nil)
	}
}

// RemoveAll destroys every currently registered component and blocks
// until all have completed.
func (m *Manager) RemoveAll(ctx context.Context) error {
	done := make(chan error, 1)
	m.RemoveAllAsync(func(err error) { done <- err })

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveAllAsync destroys every currently registered component without
// blocking the caller.
func (m *Manager) RemoveAllAsync(onDone func(error)) {
	m.mu.RLock()
	uuids := make([]string, 0, len(m.components))
	for id := range m.components {
		uuids = append(uuids, id)
	}
	m.mu.RUnlock()

	if len(uuids) == 0 {
		if onDone != nil {
			onDone(nil)
		}
		return
	}

	var (
		mu       sync.Mutex
		remaining = len(uuids)
		firstErr error
	)
	finish := func(err error) {
		mu.Lock()
		remaining--
		if err != nil && firstErr == nil {
			firstErr = err
		}
		r := remaining
		mu.Unlock()
		if r == 0 && onDone != nil {
			onDone(firstErr)
		}
	}

	for _, uuid := range uuids {
		m.RemoveAsync(uuid, finish)
	}
}

// AllComponentsActive reports whether every registered component has
// reached TrackingOptional. Vacuously true with no components.
func (m *Manager) AllComponentsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.components {
		if c.State() != component.TrackingOptional {
			return false
		}
	}
	return true
}

// CreateInfo returns a snapshot of one component's introspectable state.
func (m *Manager) CreateInfo(uuid string) (component.Info, bool) {
	m.mu.RLock()
	c, ok := m.components[uuid]
	m.mu.RUnlock()
	if !ok {
		return component.Info{}, false
	}
	return c.Info(), true
}

// CreateInfos returns a snapshot of every registered component.
func (m *Manager) CreateInfos() []component.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]component.Info, 0, len(m.components))
	for _, c := range m.components {
		infos = append(infos, c.Info())
	}
	return infos
}

// Wait blocks until every work item submitted to the event loop before
// this call has been processed.
func (m *Manager) Wait(ctx context.Context) {
	m.loop.WaitForEmptyQueue(ctx)
}

// SubscribeToStateChanges returns a channel that receives every
// component state transition managed by this Manager. The channel is
// buffered; a slow subscriber misses events rather than blocking
// publication.
func (m *Manager) SubscribeToStateChanges() <-chan StateChangeEvent {
	ch := make(chan StateChangeEvent, 64)
	m.mu.Lock()
	m.stateSubscribers = append(m.stateSubscribers, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) publishStateChange(c *component.Component, old, new_ component.State) {
	event := StateChangeEvent{
		UUID:      c.UUID(),
		Name:      c.Name(),
		OldState:  old,
		NewState:  new_,
		Timestamp: time.Now(),
	}

	m.mu.RLock()
	subscribers := make([]chan<- StateChangeEvent, len(m.stateSubscribers))
	copy(subscribers, m.stateSubscribers)
	m.mu.RUnlock()

	for _, sub := range subscribers {
		select {
		case sub <- event:
		default:
			logging.Debug("Manager", "state change subscriber blocked, skipping event for %q", c.Name())
		}
	}
}

// Metrics returns the manager's metrics collector, e.g. for a /metrics
// endpoint or CLI summary.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}
