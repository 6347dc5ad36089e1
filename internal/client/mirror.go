package client

import (
	"sync"

	"github.com/voxelab/presencenet"
)

// Mirror is the client-side replica of the relay's registry: remote players
// keyed by id, in arrival order. Each remote id moves absent -> present on
// playerJoined or snapshot inclusion, mutates in place on playerMoved /
// playerUpdated, and goes back to absent on playerLeft.
type Mirror struct {
	mu      sync.Mutex
	players map[string]*presencenet.PlayerInfo
	order   []string
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{players: make(map[string]*presencenet.PlayerInfo)}
}

// Add spawns a remote player. Returns false if the id was already present;
// a duplicate join (snapshot racing a playerJoined) is a no-op.
func (m *Mirror) Add(p presencenet.PlayerInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(p)
}

func (m *Mirror) addLocked(p presencenet.PlayerInfo) bool {
	if _, ok := m.players[p.ID]; ok {
		return false
	}
	cp := p
	m.players[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return true
}

// AddAll applies a players snapshot and returns the ids that were actually
// new.
func (m *Mirror) AddAll(players []presencenet.PlayerInfo) []presencenet.PlayerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []presencenet.PlayerInfo
	for _, p := range players {
		if m.addLocked(p) {
			added = append(added, p)
		}
	}
	return added
}

// Move updates position and rotation only. Unknown ids are ignored: the
// move raced with a playerLeft that already landed.
func (m *Mirror) Move(id string, pos presencenet.Vec3, rotation float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	p.Rotation = rotation
	return true
}

// Rename updates the display name only.
func (m *Mirror) Rename(id, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return false
	}
	p.Name = name
	return true
}

// Remove despawns a remote player.
func (m *Mirror) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[id]; !ok {
		return false
	}
	delete(m.players, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a remote player's snapshot.
func (m *Mirror) Get(id string) (presencenet.PlayerInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return presencenet.PlayerInfo{}, false
	}
	return *p, true
}

// Players returns all remote players in arrival order.
func (m *Mirror) Players() []presencenet.PlayerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]presencenet.PlayerInfo, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Reset empties the mirror and returns the removed ids. Called when the
// connection drops: the next session gets a fresh snapshot under a fresh
// self id, so nothing stale may survive.
func (m *Mirror) Reset() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.order
	m.players = make(map[string]*presencenet.PlayerInfo)
	m.order = nil
	return removed
}

// Len returns the number of mirrored players.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}
