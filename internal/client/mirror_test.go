package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelab/presencenet"
)

func TestMirrorAddAndDuplicateJoin(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	p := presencenet.PlayerInfo{ID: "p1", Color: 0xe74c3c}

	assert.True(t, m.Add(p))
	assert.False(t, m.Add(p), "snapshot racing a join broadcast is a no-op")
	assert.Equal(t, 1, m.Len())
}

func TestMirrorAddAllReturnsOnlyNew(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	require.True(t, m.Add(presencenet.PlayerInfo{ID: "p1"}))

	added := m.AddAll([]presencenet.PlayerInfo{
		{ID: "p1"},
		{ID: "p2"},
		{ID: "p3"},
	})

	require.Len(t, added, 2)
	assert.Equal(t, "p2", added[0].ID)
	assert.Equal(t, "p3", added[1].ID)
}

func TestMirrorMoveUpdatesPositionOnly(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	m.Add(presencenet.PlayerInfo{ID: "p1", Name: "alice", Color: 7})

	pos := presencenet.Vec3{X: 1, Y: 10, Z: -2}
	assert.True(t, m.Move("p1", pos, 0.5))

	got, ok := m.Get("p1")
	require.True(t, ok)
	assert.Equal(t, pos, got.Position)
	assert.Equal(t, 0.5, got.Rotation)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, 7, got.Color)
}

func TestMirrorMoveUnknownIsNoOp(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	assert.False(t, m.Move("ghost", presencenet.Vec3{X: 1}, 0))
	assert.Equal(t, 0, m.Len())
}

func TestMirrorRemoveAndOrder(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	for _, id := range []string{"a", "b", "c"} {
		m.Add(presencenet.PlayerInfo{ID: id})
	}

	assert.True(t, m.Remove("b"))
	assert.False(t, m.Remove("b"))

	players := m.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "a", players[0].ID)
	assert.Equal(t, "c", players[1].ID)
}

func TestMirrorResetReturnsRemovedIDs(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	m.Add(presencenet.PlayerInfo{ID: "a"})
	m.Add(presencenet.PlayerInfo{ID: "b"})

	removed := m.Reset()
	assert.Equal(t, []string{"a", "b"}, removed)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Players())
}

func TestMirrorGetReturnsCopy(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	m.Add(presencenet.PlayerInfo{ID: "p1"})

	got, ok := m.Get("p1")
	require.True(t, ok)
	got.Name = "mutated"

	again, _ := m.Get("p1")
	assert.Empty(t, again.Name)
}
