package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celixdm/internal/eventloop"
	"celixdm/internal/registry"
	"celixdm/internal/servicedep"
)

func newTestLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New()
	loop.Start()
	t.Cleanup(loop.Stop)
	return loop
}

func waitForState(t *testing.T, c *Component, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, c.State())
}

func TestComponent_NoDependenciesReachesTrackingOptional(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	var started bool
	require.NoError(t, c.SetCallbacks(Callbacks{
		Start: func() error { started = true; return nil },
	}))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, TrackingOptional)
	assert.True(t, started)
	assert.Equal(t, 1, c.Info().TimesStarted)
}

func TestComponent_WaitsForRequiredDependency(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	dep := servicedep.New("Foo", reg)
	require.NoError(t, c.AddServiceDependency(dep))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, WaitingForRequired)

	_, err := reg.RegisterServiceAsync(context.Background(), "Foo", "fooImpl", nil)
	require.NoError(t, err)

	waitForState(t, c, TrackingOptional)
}

func TestComponent_RequiredDependencyRemovedFallsBack(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	var initCount, deinitCount int
	require.NoError(t, c.SetCallbacks(Callbacks{
		Init:   func() error { initCount++; return nil },
		Deinit: func() error { deinitCount++; return nil },
	}))

	dep := servicedep.New("Foo", reg)
	require.NoError(t, c.AddServiceDependency(dep))
	require.NoError(t, c.Enable(context.Background()))

	id, err := reg.RegisterServiceAsync(context.Background(), "Foo", "fooImpl", nil)
	require.NoError(t, err)
	waitForState(t, c, TrackingOptional)
	assert.Equal(t, 1, c.Info().TimesStarted)

	// A required dependency flapping off while the component is active
	// only unregisters services and stops — it lands in INSTANTIATED,
	// not WAITING_FOR_REQUIRED, and does not deinit (S5).
	require.NoError(t, reg.UnregisterService(context.Background(), id))
	waitForState(t, c, Instantiated)
	assert.Equal(t, 1, initCount)
	assert.Equal(t, 0, deinitCount)

	// Republishing Foo resumes the same instance: start runs again
	// (times_started increments), but init does not.
	_, err = reg.RegisterServiceAsync(context.Background(), "Foo", "fooImpl2", nil)
	require.NoError(t, err)
	waitForState(t, c, TrackingOptional)
	assert.Equal(t, 2, c.Info().TimesStarted)
	assert.Equal(t, 1, initCount)
}

func TestComponent_DisableWhileWaitingForRequiredSkipsLifecycleCallbacks(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	var stopCalled, deinitCalled bool
	require.NoError(t, c.SetCallbacks(Callbacks{
		Stop:   func() error { stopCalled = true; return nil },
		Deinit: func() error { deinitCalled = true; return nil },
	}))

	dep := servicedep.New("Foo", reg)
	require.NoError(t, c.AddServiceDependency(dep))
	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, WaitingForRequired)

	done := make(chan struct{})
	c.Disable(context.Background(), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disable did not complete")
	}

	assert.False(t, stopCalled, "stop must not fire for a component whose start never ran")
	assert.False(t, deinitCalled, "deinit must not fire for a component whose init never ran")
	assert.Equal(t, Inactive, c.State())
}

func TestComponent_RemoveServiceDependency(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	required := servicedep.New("Foo", reg)
	require.NoError(t, c.AddServiceDependency(required))

	optional := servicedep.New("Bar", reg)
	require.NoError(t, optional.SetRequired(false))
	require.NoError(t, c.AddServiceDependency(optional))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, WaitingForRequired)

	// Removing the optional dependency doesn't change resolution, but it
	// must detach cleanly.
	require.NoError(t, c.RemoveServiceDependency(optional))

	deadline := time.Now().Add(time.Second)
	for len(c.Info().Dependencies) != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Len(t, c.Info().Dependencies, 1)
	assert.Equal(t, "Foo", c.Info().Dependencies[0].Name)

	// Removing the sole required dependency makes the component
	// trivially resolved, advancing it out of WAITING_FOR_REQUIRED.
	require.NoError(t, c.RemoveServiceDependency(required))
	waitForState(t, c, TrackingOptional)

	deadline = time.Now().Add(time.Second)
	for !required.IsDisabled() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, required.IsDisabled())
	assert.False(t, c.IsDisabled(), "component itself is still enabled/active")

	err := c.RemoveServiceDependency(required)
	assert.Error(t, err, "a dependency already removed cannot be removed again")
}

func TestComponent_ProvidedServiceRegisteredInTrackingOptionalWithUUID(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("provider", loop, reg)

	require.NoError(t, c.AddProvidedInterface("Bar", "barImpl", nil))
	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, TrackingOptional)

	var added []registry.ServiceReference
	_, err := reg.OpenTracker(context.Background(), "Bar", "", registry.TrackerCallbacks{
		OnAdd: func(ref registry.ServiceReference) { added = append(added, ref) },
	})
	require.NoError(t, err)

	require.Len(t, added, 1)
	assert.Equal(t, c.UUID(), added[0].Properties[registry.PropComponentUUID])
}

func TestComponent_LifecycleCallbackFailureForcesInactive(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("broken", loop, reg)

	require.NoError(t, c.SetCallbacks(Callbacks{
		Start: func() error { return errors.New("boom") },
	}))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, Inactive)
	assert.NotEmpty(t, c.Info().LastError)
}

func TestComponent_SuspendBracketsCallbackWhenConfigured(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	var events []string
	require.NoError(t, c.SetCallbacks(Callbacks{
		Stop:  func() error { events = append(events, "stop"); return nil },
		Start: func() error { events = append(events, "start"); return nil },
	}))

	dep := servicedep.New("Opt", reg)
	require.NoError(t, dep.SetRequired(false))
	require.NoError(t, dep.SetStrategy(servicedep.StrategySuspend))
	require.NoError(t, dep.SetCallbacks(servicedep.Callbacks{
		OnAdd: func(svc interface{}, props registry.Properties) { events = append(events, "add") },
	}))
	require.NoError(t, c.AddServiceDependency(dep))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, TrackingOptional)
	events = nil

	_, err := reg.RegisterServiceAsync(context.Background(), "Opt", "optImpl", nil)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for len(events) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, []string{"stop", "add", "start"}, events)
	assert.Equal(t, 1, c.Info().TimesResumed)
}

func TestComponent_DisableTearsDownAndDisablesDependencies(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := New("consumer", loop, reg)

	var stopped bool
	require.NoError(t, c.SetCallbacks(Callbacks{
		Stop: func() error { stopped = true; return nil },
	}))

	dep := servicedep.New("Foo", reg)
	require.NoError(t, dep.SetRequired(false))
	require.NoError(t, c.AddServiceDependency(dep))

	require.NoError(t, c.Enable(context.Background()))
	waitForState(t, c, TrackingOptional)

	done := make(chan struct{})
	c.Disable(context.Background(), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disable did not complete")
	}

	assert.True(t, stopped)
	assert.True(t, c.IsDisabled())
	assert.Equal(t, Inactive, c.State())
}

func TestComponent_NewWithUUIDFallsBackOnInvalidID(t *testing.T) {
	loop := newTestLoop(t)
	reg := registry.NewInMemory()
	c := NewWithUUID("not-a-uuid", "x", loop, reg)
	assert.NotEqual(t, "not-a-uuid", c.UUID())
	assert.NotEmpty(t, c.UUID())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "INACTIVE", Inactive.String())
	assert.Equal(t, "WAITING_FOR_REQUIRED", WaitingForRequired.String())
	assert.Equal(t, "INSTANTIATED_AND_WAITING_FOR_REQUIRED", Instantiated.String())
	assert.Equal(t, "TRACKING_OPTIONAL", TrackingOptional.String())
}
