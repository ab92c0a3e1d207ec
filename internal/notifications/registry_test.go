package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	reg := NewRegistry()
	a := NewClient(reg, nil, 10)
	b := NewClient(reg, nil, 10)

	require.NoError(t, reg.Register(10, a))
	require.NoError(t, reg.Register(10, b))
	require.NoError(t, reg.Register(10, a))

	assert.True(t, reg.IsOnline(10))
	assert.Equal(t, 2, reg.Count())
	assert.ElementsMatch(t, []*Client{a, b}, reg.Lookup(10))

	reg.Unregister(a)
	reg.Unregister(a)
	assert.Equal(t, 1, reg.Count())

	reg.Unregister(b)
	assert.False(t, reg.IsOnline(10))
	assert.Nil(t, reg.Lookup(10))
	assert.Zero(t, reg.Count())
}

func TestRegistry_UnregisterUnjoinedClient(t *testing.T) {
	reg := NewRegistry()
	reg.Unregister(NewClient(reg, nil, 3))
	assert.Zero(t, reg.Count())
}

func TestRegistry_PerUserLimit(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < maxConnsPerUser; i++ {
		require.NoError(t, reg.Register(1, NewClient(reg, nil, 1)))
	}
	assert.ErrorIs(t, reg.Register(1, NewClient(reg, nil, 1)), ErrUserConnLimit)
	require.NoError(t, reg.Register(2, NewClient(reg, nil, 2)))
}

func TestRegistry_TotalLimit(t *testing.T) {
	reg := NewRegistry()
	reg.maxTotal = 2
	require.NoError(t, reg.Register(1, NewClient(reg, nil, 1)))
	require.NoError(t, reg.Register(2, NewClient(reg, nil, 2)))
	assert.ErrorIs(t, reg.Register(3, NewClient(reg, nil, 3)), ErrServerConnLimit)
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry()
	a, b := NewClient(reg, nil, 1), NewClient(reg, nil, 2)
	require.NoError(t, reg.Register(1, a))
	require.NoError(t, reg.Register(2, b))

	reg.CloseAll()
	assert.Zero(t, reg.Count())
	assert.False(t, reg.IsOnline(1))

	// Only the write pump touches the connection; CloseAll just signals it.
	for _, c := range []*Client{a, b} {
		select {
		case <-c.leaving:
		default:
			t.Fatalf("client %s was not told to go away", c.ID)
		}
		select {
		case <-c.done:
			t.Fatalf("client %s was closed outside its pumps", c.ID)
		default:
		}
	}
	reg.CloseAll()
	b.goAway()
}
