package relay

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/protocol"
)

// route dispatches one inbound envelope by type, each with its own delivery
// policy. All identity decisions are key lookups against the live id->conn
// map; the sender can never receive its own position, untargeted typing or
// reaction back.
func (s *Server) route(sender *Conn, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypePosition:
		s.routePosition(sender, env)
	case protocol.TypeSetName:
		s.routeSetName(sender, env)
	case protocol.TypeTyping:
		s.routeTyping(sender, env)
	case protocol.TypeReaction:
		s.routeReaction(sender, env)
	case protocol.TypeChat:
		s.routeChat(sender, env)
	default:
		// Server-to-client types arriving from a client are dropped.
		s.log.Debug("unroutable envelope dropped",
			zap.String("player_id", sender.playerID),
			zap.String("type", env.Type))
	}
}

// routePosition updates the registry and relays the move to everyone else.
// An unknown id means the update raced with this player's disconnect; the
// registry no-ops and nothing is relayed, so no frame ever references a
// departed player.
func (s *Server) routePosition(sender *Conn, env *protocol.Envelope) {
	if !s.registry.UpdatePosition(sender.playerID, *env.Position, env.Rotation) {
		return
	}
	s.broadcastExcept(sender.playerID, protocol.NewPlayerMoved(sender.playerID, *env.Position, env.Rotation))
}

// routeSetName stores the normalized name and announces the effective
// display name to all connections, the sender included. The sender already
// knows its own name; the uniform broadcast keeps client code simple.
func (s *Server) routeSetName(sender *Conn, env *protocol.Envelope) {
	name, ok := s.registry.SetName(sender.playerID, env.Name)
	if !ok {
		return
	}
	s.broadcast(protocol.NewPlayerUpdated(sender.playerID, name))
}

// routeTyping stamps the sender id and relays the indicator: to the named
// target only for the private-chat variant, to everyone but the sender
// otherwise. A disconnected target is silently ignored; indicators expire
// client-side anyway.
func (s *Server) routeTyping(sender *Conn, env *protocol.Envelope) {
	out := protocol.NewTyping(sender.playerID, *env.IsTyping, env.ToPlayerID)
	if env.ToPlayerID != "" {
		s.sendToPlayers([]string{env.ToPlayerID}, out)
		return
	}
	s.broadcastExcept(sender.playerID, out)
}

// routeReaction stamps identity and relays the reaction to everyone but the
// sender, who renders its own reaction locally.
func (s *Server) routeReaction(sender *Conn, env *protocol.Envelope) {
	out := protocol.NewReaction(
		sender.playerID,
		s.registry.DisplayName(sender.playerID),
		env.Reaction,
		s.nextMsgID.Add(1),
		time.Now().UnixMilli(),
	)
	s.broadcastExcept(sender.playerID, out)
}

// routeChat normalizes the body, stamps id/timestamp/identity, then
// delivers: public chat to all connections, private chat to exactly the
// sender and the named recipient. An offline recipient produces a system
// notice to the sender only.
func (s *Server) routeChat(sender *Conn, env *protocol.Envelope) {
	body, ok := protocol.NormalizeChatBody(env.Message)
	if !ok {
		return
	}

	username := protocol.NormalizeName(env.Username)
	if username == "" {
		username = s.registry.DisplayName(sender.playerID)
	}

	msg := presencenet.ChatMessage{
		ID:        s.nextMsgID.Add(1),
		PlayerID:  sender.playerID,
		Username:  username,
		Message:   body,
		Timestamp: time.Now().UnixMilli(),
	}

	if env.Private && env.ToPlayerID != "" {
		if _, online := s.registry.Get(env.ToPlayerID); !online {
			notice := s.systemChat(fmt.Sprintf("Player %s is not online", protocol.ShortID(env.ToPlayerID)))
			s.sendToPlayers([]string{sender.playerID}, notice)
			return
		}
		msg.Private = true
		msg.ToPlayerID = env.ToPlayerID
		s.sendToPlayers([]string{sender.playerID, env.ToPlayerID}, protocol.NewChat(msg))
		return
	}

	s.broadcast(protocol.NewChat(msg))
}
