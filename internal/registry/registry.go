// Package registry holds the authoritative server-side table of connected
// players. All mutation funnels through one mutex-guarded component; the
// relay attributes every position/name change to the connection that owns
// the id.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/protocol"
)

// DefaultSpawn is where a freshly connected player appears.
var DefaultSpawn = presencenet.Vec3{X: 0, Y: 10, Z: 30}

// Palette is the fixed set of avatar colors assigned at connect time.
var Palette = []int{0xe74c3c, 0x3498db, 0x2ecc71, 0xf39c12, 0x9b59b6, 0x1abc9c, 0xe67e22, 0x34495e}

// Player is the last-known state of one connected participant. Name stays
// empty until the player's own setName arrives; display falls back to the id
// prefix.
type Player struct {
	ID       string
	Name     string
	Color    int
	Position presencenet.Vec3
	Rotation float64
}

// Info returns the wire-facing snapshot of the player.
func (p *Player) Info() presencenet.PlayerInfo {
	return presencenet.PlayerInfo{
		ID:       p.ID,
		Color:    p.Color,
		Position: p.Position,
		Rotation: p.Rotation,
		Name:     p.Name,
	}
}

// DisplayName resolves the name shown in chat: the set name, or the id
// prefix when unset.
func (p *Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return protocol.ShortID(p.ID)
}

// Registry is the id-keyed player table. Snapshot order is registration
// order; it matters only for the initial sync.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	order   []string
	log     *zap.Logger
}

// New creates an empty registry. A nil logger is replaced with a no-op one.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		players: make(map[string]*Player),
		log:     log,
	}
}

// Register adds a new player at the default spawn and returns its snapshot.
// The id must be fresh; the relay guarantees that by generating it.
func (r *Registry) Register(id string, color int) presencenet.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Player{ID: id, Color: color, Position: DefaultSpawn}
	r.players[id] = p
	r.order = append(r.order, id)
	return p.Info()
}

// Get returns a player's snapshot by id.
func (r *Registry) Get(id string) (presencenet.PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return presencenet.PlayerInfo{}, false
	}
	return p.Info(), true
}

// UpdatePosition records a movement sample. Unknown ids are a logged no-op:
// the update raced with a disconnect.
func (r *Registry) UpdatePosition(id string, pos presencenet.Vec3, rotation float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		r.log.Debug("position update for unknown player", zap.String("player_id", id))
		return false
	}
	p.Position = pos
	p.Rotation = rotation
	return true
}

// SetName stores a normalized display name and returns the effective name
// shown to other players. An empty normalized name clears back to the id
// prefix fallback.
func (r *Registry) SetName(id, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		r.log.Debug("name update for unknown player", zap.String("player_id", id))
		return "", false
	}
	p.Name = protocol.NormalizeName(name)
	return p.DisplayName(), true
}

// Unregister removes a player. Returns false if the id was already gone,
// which keeps the close path idempotent.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns all players in registration order.
func (r *Registry) Snapshot() []presencenet.PlayerInfo {
	return r.SnapshotExcept("")
}

// SnapshotExcept returns all players except the given id, in registration
// order. Used for the initial sync, which must not include the new player
// itself.
func (r *Registry) SnapshotExcept(excludeID string) []presencenet.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]presencenet.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		if p, ok := r.players[id]; ok {
			out = append(out, p.Info())
		}
	}
	return out
}

// DisplayName resolves the chat username for an id. Unknown ids resolve to
// the id prefix so late frames still render something sensible.
func (r *Registry) DisplayName(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[id]; ok {
		return p.DisplayName()
	}
	return protocol.ShortID(id)
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
