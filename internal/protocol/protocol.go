// Package protocol implements the JSON envelope codec for the presence wire
// format. It is a leaf package: decoding, required-field validation and the
// normalization rules for user-supplied strings live here, delivery policy
// does not.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxelab/presencenet"
)

// Envelope type tags. Direction is noted where it is one-way.
const (
	TypeInit          = "init"          // S->C
	TypePlayers       = "players"       // S->C
	TypePlayerJoined  = "playerJoined"  // S->C
	TypePlayerUpdated = "playerUpdated" // S->C
	TypePlayerMoved   = "playerMoved"   // S->C
	TypePlayerLeft    = "playerLeft"    // S->C
	TypePosition      = "position"      // C->S
	TypeSetName       = "setName"       // C->S
	TypeTyping        = "typing"
	TypeReaction      = "reaction"
	TypeChat          = "chat"
)

const (
	// MaxFrameSize bounds a single inbound frame.
	MaxFrameSize = 64 * 1024
	// MaxNameLen caps display names, in runes.
	MaxNameLen = 16
	// MaxChatLen caps chat bodies, in runes. Longer bodies are truncated,
	// not rejected.
	MaxChatLen = 200
	// ShortIDLen is the id prefix used for fallback names and system
	// announcements.
	ShortIDLen = 6
)

// Envelope is the unit of wire exchange: a tagged union over every message
// type, with unused fields omitted from the JSON encoding. Envelopes are
// immutable once constructed.
type Envelope struct {
	Type string `json:"type"`

	// init / playerUpdated / playerMoved / playerLeft / relayed typing,
	// reaction and chat
	PlayerID string `json:"playerId,omitempty"`

	// init
	Color int `json:"color,omitempty"`

	// players snapshot / playerJoined
	Players []presencenet.PlayerInfo `json:"players,omitzero"`
	Player  *presencenet.PlayerInfo  `json:"player,omitempty"`

	// setName / playerUpdated
	Name string `json:"name,omitempty"`

	// position / playerMoved
	Position *presencenet.Vec3 `json:"position,omitempty"`
	Rotation float64           `json:"rotation,omitempty"`

	// typing; pointer so that isTyping:false survives encoding
	IsTyping *bool `json:"isTyping,omitempty"`

	// typing / chat targeting
	ToPlayerID string `json:"toPlayerId,omitempty"`

	// reaction
	Reaction string `json:"reaction,omitempty"`

	// chat; ID and Timestamp are relay-stamped
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Private   bool   `json:"private,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Encode marshals an envelope to a single JSON text frame.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", env.Type, err)
	}
	return data, nil
}

// Decode parses a frame and enforces the per-type required fields. Any
// failure here is a protocol error: the caller logs and drops the frame, the
// connection stays open.
func Decode(data []byte) (*Envelope, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%s: frame size %d exceeds maximum %d", presencenet.ErrInvalidMessageFormat, len(data), MaxFrameSize)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", presencenet.ErrInvalidMessageFormat, err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) validate() error {
	switch e.Type {
	case TypeInit:
		return e.require(e.PlayerID != "", "playerId")
	case TypePlayers:
		return e.require(e.Players != nil, "players")
	case TypePlayerJoined:
		return e.require(e.Player != nil, "player")
	case TypePlayerUpdated:
		return e.require(e.PlayerID != "", "playerId")
	case TypePlayerMoved:
		if err := e.require(e.PlayerID != "", "playerId"); err != nil {
			return err
		}
		return e.require(e.Position != nil, "position")
	case TypePlayerLeft:
		return e.require(e.PlayerID != "", "playerId")
	case TypePosition:
		return e.require(e.Position != nil, "position")
	case TypeSetName:
		// An empty name is legal: it clears the display name back to the
		// id-prefix fallback.
		return nil
	case TypeTyping:
		return e.require(e.IsTyping != nil, "isTyping")
	case TypeReaction:
		return e.require(e.Reaction != "", "reaction")
	case TypeChat:
		// Empty bodies are a validation concern, dropped by the router
		// after normalization rather than rejected here.
		return nil
	case "":
		return fmt.Errorf("%s: type", presencenet.ErrMissingRequiredField)
	default:
		return fmt.Errorf("%s: %q", presencenet.ErrUnknownEnvelopeType, e.Type)
	}
}

func (e *Envelope) require(ok bool, field string) error {
	if !ok {
		return fmt.Errorf("%s: %s in %s envelope", presencenet.ErrMissingRequiredField, field, e.Type)
	}
	return nil
}

// NewInit builds the first envelope a connecting player receives.
func NewInit(playerID string, color int) *Envelope {
	return &Envelope{Type: TypeInit, PlayerID: playerID, Color: color}
}

// NewPlayers builds the snapshot envelope. A nil slice becomes an empty one
// so the wire always carries a players array.
func NewPlayers(players []presencenet.PlayerInfo) *Envelope {
	if players == nil {
		players = []presencenet.PlayerInfo{}
	}
	return &Envelope{Type: TypePlayers, Players: players}
}

// NewPlayerJoined announces a new player to everyone else.
func NewPlayerJoined(p presencenet.PlayerInfo) *Envelope {
	return &Envelope{Type: TypePlayerJoined, Player: &p}
}

// NewPlayerUpdated announces a display name change.
func NewPlayerUpdated(playerID, name string) *Envelope {
	return &Envelope{Type: TypePlayerUpdated, PlayerID: playerID, Name: name}
}

// NewPlayerMoved relays a position update to other players.
func NewPlayerMoved(playerID string, pos presencenet.Vec3, rotation float64) *Envelope {
	return &Envelope{Type: TypePlayerMoved, PlayerID: playerID, Position: &pos, Rotation: rotation}
}

// NewPlayerLeft announces a departure.
func NewPlayerLeft(playerID string) *Envelope {
	return &Envelope{Type: TypePlayerLeft, PlayerID: playerID}
}

// NewPosition builds the client's outbound movement sample.
func NewPosition(pos presencenet.Vec3, rotation float64) *Envelope {
	return &Envelope{Type: TypePosition, Position: &pos, Rotation: rotation}
}

// NewSetName builds the client's outbound name request.
func NewSetName(name string) *Envelope {
	return &Envelope{Type: TypeSetName, Name: name}
}

// NewTyping builds a typing indicator. playerID is empty on the client's
// outbound frame and stamped by the relay before fan-out.
func NewTyping(playerID string, isTyping bool, toPlayerID string) *Envelope {
	return &Envelope{Type: TypeTyping, PlayerID: playerID, IsTyping: &isTyping, ToPlayerID: toPlayerID}
}

// NewReaction builds a reaction envelope. Identity fields are relay-stamped
// on the way out.
func NewReaction(playerID, username, reaction string, id, timestamp int64) *Envelope {
	return &Envelope{Type: TypeReaction, PlayerID: playerID, Username: username, Reaction: reaction, ID: id, Timestamp: timestamp}
}

// NewChat builds a relayed chat envelope from a stamped message.
func NewChat(msg presencenet.ChatMessage) *Envelope {
	return &Envelope{
		Type:       TypeChat,
		ID:         msg.ID,
		PlayerID:   msg.PlayerID,
		Username:   msg.Username,
		Message:    msg.Message,
		Timestamp:  msg.Timestamp,
		Private:    msg.Private,
		ToPlayerID: msg.ToPlayerID,
	}
}

// ChatMessage extracts the stamped chat fields from a relayed envelope.
func (e *Envelope) ChatMessage() presencenet.ChatMessage {
	return presencenet.ChatMessage{
		ID:         e.ID,
		PlayerID:   e.PlayerID,
		Username:   e.Username,
		Message:    e.Message,
		Timestamp:  e.Timestamp,
		Private:    e.Private,
		ToPlayerID: e.ToPlayerID,
	}
}

// NormalizeName trims whitespace and caps the result at MaxNameLen runes.
// An empty result means "unset": display falls back to the id prefix.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) > MaxNameLen {
		return string(runes[:MaxNameLen])
	}
	return name
}

// NormalizeChatBody trims the body and truncates it at MaxChatLen runes.
// The second return is false when the body is empty after trimming and the
// message should be dropped.
func NormalizeChatBody(body string) (string, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false
	}
	runes := []rune(body)
	if len(runes) > MaxChatLen {
		return string(runes[:MaxChatLen]), true
	}
	return body, true
}

// ShortID returns the id prefix used in announcements and fallback names.
func ShortID(id string) string {
	runes := []rune(id)
	if len(runes) > ShortIDLen {
		return string(runes[:ShortIDLen])
	}
	return id
}
