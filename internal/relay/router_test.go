package relay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/protocol"
)

// dialThree spawns a relay with three connected players and drains every
// handshake frame so each client starts with an empty read queue.
func dialThree(t *testing.T) (*testRelay, *testClient, *testClient, *testClient) {
	t.Helper()

	r := newTestRelay(t, nil)
	a := r.dial(t)
	b := r.dial(t)
	c := r.dial(t)

	// a sees b and c join; b sees c join.
	a.readType(protocol.TypePlayerJoined)
	a.readType(protocol.TypeChat)
	a.readType(protocol.TypePlayerJoined)
	a.readType(protocol.TypeChat)
	b.readType(protocol.TypePlayerJoined)
	b.readType(protocol.TypeChat)

	return r, a, b, c
}

func TestPositionBroadcastExcludesSender(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	pos := presencenet.Vec3{X: 12, Y: 10, Z: -3}
	a.send(protocol.NewPosition(pos, 1.25))

	for _, other := range []*testClient{b, c} {
		moved := other.readType(protocol.TypePlayerMoved)
		assert.Equal(t, a.id, moved.PlayerID)
		require.NotNil(t, moved.Position)
		assert.Equal(t, pos, *moved.Position)
		assert.Equal(t, 1.25, moved.Rotation)
	}

	a.expectSilence(300 * time.Millisecond)
}

func TestSetNameBroadcastsToAll(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	a.send(protocol.NewSetName("  " + strings.Repeat("n", 30)))

	want := strings.Repeat("n", 16)
	for _, cl := range []*testClient{a, b, c} {
		updated := cl.readType(protocol.TypePlayerUpdated)
		assert.Equal(t, a.id, updated.PlayerID)
		assert.Equal(t, want, updated.Name)
	}
}

func TestSetNameEmptyFallsBackToIDPrefix(t *testing.T) {
	t.Parallel()

	_, a, b, _ := dialThree(t)

	a.send(protocol.NewSetName("   "))

	updated := b.readType(protocol.TypePlayerUpdated)
	assert.Equal(t, protocol.ShortID(a.id), updated.Name)
}

func TestPublicChatDeliveredToAll(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	a.send(&protocol.Envelope{Type: protocol.TypeChat, Username: "alice", Message: "hello world"})

	for _, cl := range []*testClient{a, b, c} {
		chat := cl.readType(protocol.TypeChat)
		assert.Equal(t, a.id, chat.PlayerID)
		assert.Equal(t, "alice", chat.Username)
		assert.Equal(t, "hello world", chat.Message)
		assert.False(t, chat.Private)
		assert.Positive(t, chat.ID)
		assert.Positive(t, chat.Timestamp)
	}
}

func TestPrivateChatDeliveredToExactlyTwo(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	b.send(&protocol.Envelope{
		Type:       protocol.TypeChat,
		Username:   "bob",
		Message:    "hi",
		Private:    true,
		ToPlayerID: a.id,
	})

	for _, cl := range []*testClient{a, b} {
		chat := cl.readType(protocol.TypeChat)
		assert.Equal(t, b.id, chat.PlayerID)
		assert.Equal(t, "hi", chat.Message)
		assert.True(t, chat.Private)
		assert.Equal(t, a.id, chat.ToPlayerID)
	}

	c.expectSilence(300 * time.Millisecond)
}

func TestPrivateChatOfflineRecipient(t *testing.T) {
	t.Parallel()

	_, a, b, _ := dialThree(t)

	a.send(&protocol.Envelope{
		Type:       protocol.TypeChat,
		Username:   "alice",
		Message:    "anyone there?",
		Private:    true,
		ToPlayerID: "no-such-player",
	})

	notice := a.readType(protocol.TypeChat)
	assert.Equal(t, presencenet.SystemPlayerID, notice.PlayerID)
	assert.Contains(t, notice.Message, "not online")

	b.expectSilence(300 * time.Millisecond)
}

func TestChatEmptyBodyDropped(t *testing.T) {
	t.Parallel()

	_, a, b, _ := dialThree(t)

	a.send(&protocol.Envelope{Type: protocol.TypeChat, Username: "alice", Message: "   "})
	a.send(&protocol.Envelope{Type: protocol.TypeChat, Username: "alice", Message: ""})

	b.expectSilence(300 * time.Millisecond)
}

func TestChatLongBodyTruncated(t *testing.T) {
	t.Parallel()

	_, a, b, _ := dialThree(t)

	a.send(&protocol.Envelope{Type: protocol.TypeChat, Username: "alice", Message: strings.Repeat("y", 500)})

	chat := b.readType(protocol.TypeChat)
	assert.Equal(t, strings.Repeat("y", 200), chat.Message)
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	a.send(protocol.NewTyping("", true, ""))

	for _, other := range []*testClient{b, c} {
		typing := other.readType(protocol.TypeTyping)
		assert.Equal(t, a.id, typing.PlayerID, "relay stamps the sender id")
		require.NotNil(t, typing.IsTyping)
		assert.True(t, *typing.IsTyping)
	}

	a.expectSilence(300 * time.Millisecond)
}

func TestTypingTargetedDeliveredToTargetOnly(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	a.send(protocol.NewTyping("", true, b.id))

	typing := b.readType(protocol.TypeTyping)
	assert.Equal(t, a.id, typing.PlayerID)
	assert.Equal(t, b.id, typing.ToPlayerID)

	c.expectSilence(300 * time.Millisecond)
}

func TestReactionBroadcastExcludesSender(t *testing.T) {
	t.Parallel()

	_, a, b, c := dialThree(t)

	a.send(&protocol.Envelope{Type: protocol.TypeReaction, Reaction: "👋"})

	for _, other := range []*testClient{b, c} {
		reaction := other.readType(protocol.TypeReaction)
		assert.Equal(t, a.id, reaction.PlayerID)
		assert.Equal(t, "👋", reaction.Reaction)
		assert.Equal(t, protocol.ShortID(a.id), reaction.Username)
		assert.Positive(t, reaction.Timestamp)
	}

	a.expectSilence(300 * time.Millisecond)
}

func TestNoFramesReferenceDepartedPlayer(t *testing.T) {
	t.Parallel()

	r, a, b, _ := dialThree(t)

	// Close b's registry entry out from under a racing position update by
	// routing the frame after the disconnect completes.
	r.srv.mu.Lock()
	bc := r.srv.conns[b.id]
	r.srv.mu.Unlock()
	r.srv.closeConn(bc, false)

	a.readType(protocol.TypePlayerLeft)
	a.readType(protocol.TypeChat)

	// A position frame attributed to the departed connection no-ops.
	r.srv.route(bc, protocol.NewPosition(presencenet.Vec3{X: 1}, 0))
	a.expectSilence(300 * time.Millisecond)
}
