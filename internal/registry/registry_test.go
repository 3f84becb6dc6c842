package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRegistry_RegisterInjectsWellKnownProperties(t *testing.T) {
	r := NewInMemory()
	id, err := r.RegisterServiceAsync(context.Background(), "Foo", "impl", Properties{"custom": "x"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	var added []ServiceReference
	_, err = r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnAdd: func(ref ServiceReference) { added = append(added, ref) },
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, id, added[0].Properties[PropServiceID])
	assert.Equal(t, "Foo", added[0].Properties[PropObjectClass])
	assert.Equal(t, "x", added[0].Properties["custom"])
}

func TestInMemoryRegistry_TrackerReceivesAddForMatchingService(t *testing.T) {
	r := NewInMemory()

	var added []ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnAdd: func(ref ServiceReference) { added = append(added, ref) },
	})
	require.NoError(t, err)

	_, err = r.RegisterServiceAsync(context.Background(), "Foo", "fooImpl", nil)
	require.NoError(t, err)

	require.Len(t, added, 1)
	assert.Equal(t, "fooImpl", added[0].Service)
}

func TestInMemoryRegistry_TrackerIgnoresNonMatchingName(t *testing.T) {
	r := NewInMemory()

	var added []ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnAdd: func(ref ServiceReference) { added = append(added, ref) },
	})
	require.NoError(t, err)

	_, err = r.RegisterServiceAsync(context.Background(), "Bar", "barImpl", nil)
	require.NoError(t, err)

	assert.Empty(t, added)
}

func TestInMemoryRegistry_RemoveFiresOnRemove(t *testing.T) {
	r := NewInMemory()

	var removed []ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnRemove: func(ref ServiceReference) { removed = append(removed, ref) },
	})
	require.NoError(t, err)

	id, err := r.RegisterServiceAsync(context.Background(), "Foo", "fooImpl", nil)
	require.NoError(t, err)

	require.NoError(t, r.UnregisterService(context.Background(), id))
	require.Len(t, removed, 1)
}

func TestInMemoryRegistry_SetTracksHighestRankedService(t *testing.T) {
	r := NewInMemory()

	var sets []*ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnSet: func(ref *ServiceReference) { sets = append(sets, ref) },
	})
	require.NoError(t, err)

	lowID, err := r.RegisterServiceAsync(context.Background(), "Foo", "low", Properties{PropServiceRanking: 1})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "low", sets[0].Service)

	_, err = r.RegisterServiceAsync(context.Background(), "Foo", "high", Properties{PropServiceRanking: 5})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "high", sets[1].Service)

	// Removing the lower-ranked (not currently highest) service must not
	// trigger another OnSet.
	require.NoError(t, r.UnregisterService(context.Background(), lowID))
	assert.Len(t, sets, 2)
}

func TestInMemoryRegistry_SetFiresNilWhenLastServiceRemoved(t *testing.T) {
	r := NewInMemory()

	var sets []*ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "", TrackerCallbacks{
		OnSet: func(ref *ServiceReference) { sets = append(sets, ref) },
	})
	require.NoError(t, err)

	id, err := r.RegisterServiceAsync(context.Background(), "Foo", "only", nil)
	require.NoError(t, err)

	require.NoError(t, r.UnregisterService(context.Background(), id))
	require.Len(t, sets, 2)
	assert.Nil(t, sets[1])
}

func TestInMemoryRegistry_FilterRestrictsMatches(t *testing.T) {
	r := NewInMemory()

	var added []ServiceReference
	_, err := r.OpenTracker(context.Background(), "Foo", "(env=prod)", TrackerCallbacks{
		OnAdd: func(ref ServiceReference) { added = append(added, ref) },
	})
	require.NoError(t, err)

	_, err = r.RegisterServiceAsync(context.Background(), "Foo", "devImpl", Properties{"env": "dev"})
	require.NoError(t, err)
	assert.Empty(t, added)

	_, err = r.RegisterServiceAsync(context.Background(), "Foo", "prodImpl", Properties{"env": "prod"})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "prodImpl", added[0].Service)
}

func TestInMemoryRegistry_UnregisterUnknownIDFails(t *testing.T) {
	r := NewInMemory()
	err := r.UnregisterService(context.Background(), 999)
	assert.Error(t, err)
}
