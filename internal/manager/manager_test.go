package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celixdm/internal/component"
	"celixdm/internal/eventloop"
	"celixdm/internal/registry"
)

func newTestManager(t *testing.T) (*Manager, *registry.InMemoryRegistry) {
	t.Helper()
	loop := eventloop.New()
	loop.Start()
	t.Cleanup(loop.Stop)

	reg := registry.NewInMemory()
	return New(Config{Loop: loop, Registry: reg}), reg
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond())
}

func TestManager_AddBlocksUntilEnableCompletes(t *testing.T) {
	m, reg := newTestManager(t)
	c := component.New("svc", m.loop, reg)

	require.NoError(t, m.Add(context.Background(), c))
	waitUntil(t, func() bool { return c.State() == component.TrackingOptional })

	infos := m.CreateInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, "svc", infos[0].Name)
}

func TestManager_AllComponentsActiveVacuouslyTrue(t *testing.T) {
	m, _ := newTestManager(t)
	assert.True(t, m.AllComponentsActive())
}

func TestManager_AllComponentsActiveReflectsState(t *testing.T) {
	m, reg := newTestManager(t)
	c := component.New("svc", m.loop, reg)
	require.NoError(t, m.Add(context.Background(), c))
	waitUntil(t, m.AllComponentsActive)
}

func TestManager_RemoveDestroysAndDeregisters(t *testing.T) {
	m, reg := newTestManager(t)
	c := component.New("svc", m.loop, reg)
	require.NoError(t, m.Add(context.Background(), c))
	waitUntil(t, func() bool { return c.State() == component.TrackingOptional })

	require.NoError(t, m.Remove(context.Background(), c.UUID()))

	_, ok := m.CreateInfo(c.UUID())
	assert.False(t, ok)
}

func TestManager_RemoveUnknownUUIDErrors(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Remove(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestManager_RemoveAllDestroysEverything(t *testing.T) {
	m, reg := newTestManager(t)
	a := component.New("a", m.loop, reg)
	b := component.New("b", m.loop, reg)
	require.NoError(t, m.Add(context.Background(), a))
	require.NoError(t, m.Add(context.Background(), b))

	require.NoError(t, m.RemoveAll(context.Background()))
	assert.Empty(t, m.CreateInfos())
}

func TestManager_StateChangesArePublished(t *testing.T) {
	m, reg := newTestManager(t)
	ch := m.SubscribeToStateChanges()

	c := component.New("svc", m.loop, reg)
	require.NoError(t, m.Add(context.Background(), c))

	var sawTrackingOptional bool
	deadline := time.After(time.Second)
	for !sawTrackingOptional {
		select {
		case ev := <-ch:
			if ev.NewState == component.TrackingOptional {
				sawTrackingOptional = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for TrackingOptional state change event")
		}
	}
}

func TestManager_WaitDrainsQueue(t *testing.T) {
	m, reg := newTestManager(t)
	c := component.New("svc", m.loop, reg)
	require.NoError(t, m.Add(context.Background(), c))

	m.Wait(context.Background())
	assert.Equal(t, 0, m.loop.Len())
}
