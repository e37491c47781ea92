package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
)

func TestMemory_WatchDeliversCurrentThenChanges(t *testing.T) {
	m := NewMemory()
	changes, cancel := m.Watch()
	defer cancel()

	assert.Assert(t, (<-changes).Anonymous())

	m.SignIn(User{ID: "u1"})
	assert.Equal(t, "u1", (<-changes).ID)

	m.SignOut()
	assert.Assert(t, (<-changes).Anonymous())
	assert.Assert(t, m.Current().Anonymous())
}

func TestMemory_SameUserIsNotAChange(t *testing.T) {
	m := NewMemory()
	m.SignIn(User{ID: "u1"})
	changes, cancel := m.Watch()
	defer cancel()
	<-changes

	m.SignIn(User{ID: "u1"})

	select {
	case u := <-changes:
		t.Fatalf("unexpected change %+v", u)
	default:
	}
}

func TestMemory_SlowWatcherSeesLatest(t *testing.T) {
	m := NewMemory()
	changes, cancel := m.Watch()
	defer cancel()
	<-changes

	m.SignIn(User{ID: "u1"})
	m.SignIn(User{ID: "u2"})

	assert.Equal(t, "u2", (<-changes).ID)
}

func TestMemory_CancelClosesAndIsIdempotent(t *testing.T) {
	m := NewMemory()
	changes, cancel := m.Watch()
	<-changes

	cancel()
	cancel()
	m.SignIn(User{ID: "u1"})

	_, ok := <-changes
	require.False(t, ok)
}
