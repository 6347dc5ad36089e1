package presencenet

// Vec3 is a position in world coordinates.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerInfo is the public snapshot of one connected player, as carried by
// the players / playerJoined envelopes.
type PlayerInfo struct {
	ID       string  `json:"id"`
	Color    int     `json:"color"`
	Position Vec3    `json:"position"`
	Rotation float64 `json:"rotation"`
	Name     string  `json:"name,omitempty"`
}

// ChatMessage is one delivered chat entry. ID, PlayerID and Timestamp are
// stamped by the relay; clients never set them.
type ChatMessage struct {
	ID         int64  `json:"id"`
	PlayerID   string `json:"playerId"`
	Username   string `json:"username"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	Private    bool   `json:"private,omitempty"`
	ToPlayerID string `json:"toPlayerId,omitempty"`
}

// System reports whether the message was synthesized by the relay rather
// than sent by a player.
func (m ChatMessage) System() bool {
	return m.PlayerID == SystemPlayerID
}
