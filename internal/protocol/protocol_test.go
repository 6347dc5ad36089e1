package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelab/presencenet"
)

func TestDecodeValidEnvelopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		typ  string
	}{
		{
			name: "init",
			data: `{"type":"init","playerId":"p1","color":15158332}`,
			typ:  TypeInit,
		},
		{
			name: "players snapshot",
			data: `{"type":"players","players":[{"id":"p2","color":3447003,"position":{"x":0,"y":10,"z":30},"rotation":0}]}`,
			typ:  TypePlayers,
		},
		{
			name: "empty players snapshot",
			data: `{"type":"players","players":[]}`,
			typ:  TypePlayers,
		},
		{
			name: "playerJoined",
			data: `{"type":"playerJoined","player":{"id":"p3","color":2600544,"position":{"x":1,"y":10,"z":2},"rotation":1.5}}`,
			typ:  TypePlayerJoined,
		},
		{
			name: "playerUpdated",
			data: `{"type":"playerUpdated","playerId":"p1","name":"alice"}`,
			typ:  TypePlayerUpdated,
		},
		{
			name: "playerMoved",
			data: `{"type":"playerMoved","playerId":"p1","position":{"x":4,"y":10,"z":-2},"rotation":3.14}`,
			typ:  TypePlayerMoved,
		},
		{
			name: "playerLeft",
			data: `{"type":"playerLeft","playerId":"p1"}`,
			typ:  TypePlayerLeft,
		},
		{
			name: "position",
			data: `{"type":"position","position":{"x":1,"y":2,"z":3},"rotation":0.5}`,
			typ:  TypePosition,
		},
		{
			name: "setName",
			data: `{"type":"setName","name":"bob"}`,
			typ:  TypeSetName,
		},
		{
			name: "setName empty clears the name",
			data: `{"type":"setName","name":""}`,
			typ:  TypeSetName,
		},
		{
			name: "typing true",
			data: `{"type":"typing","isTyping":true}`,
			typ:  TypeTyping,
		},
		{
			name: "typing false",
			data: `{"type":"typing","isTyping":false}`,
			typ:  TypeTyping,
		},
		{
			name: "typing targeted",
			data: `{"type":"typing","isTyping":true,"toPlayerId":"p2"}`,
			typ:  TypeTyping,
		},
		{
			name: "reaction",
			data: `{"type":"reaction","reaction":"wave"}`,
			typ:  TypeReaction,
		},
		{
			name: "public chat",
			data: `{"type":"chat","username":"alice","message":"hi"}`,
			typ:  TypeChat,
		},
		{
			name: "private chat",
			data: `{"type":"chat","username":"alice","message":"psst","private":true,"toPlayerId":"p2"}`,
			typ:  TypeChat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, env.Type)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{{{`},
		{name: "missing type", data: `{"playerId":"p1"}`},
		{name: "unknown type", data: `{"type":"teleport","playerId":"p1"}`},
		{name: "init without playerId", data: `{"type":"init","color":1}`},
		{name: "players without array", data: `{"type":"players"}`},
		{name: "playerJoined without player", data: `{"type":"playerJoined"}`},
		{name: "playerMoved without position", data: `{"type":"playerMoved","playerId":"p1"}`},
		{name: "playerMoved without playerId", data: `{"type":"playerMoved","position":{"x":0,"y":0,"z":0}}`},
		{name: "playerLeft without playerId", data: `{"type":"playerLeft"}`},
		{name: "position without position", data: `{"type":"position","rotation":1}`},
		{name: "typing without isTyping", data: `{"type":"typing"}`},
		{name: "reaction without reaction", data: `{"type":"reaction"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeOversizedFrame(t *testing.T) {
	t.Parallel()

	frame := `{"type":"chat","username":"a","message":"` + strings.Repeat("x", MaxFrameSize) + `"}`
	_, err := Decode([]byte(frame))
	assert.Error(t, err)
}

func TestEncodeDecodeTypingFalse(t *testing.T) {
	t.Parallel()

	// isTyping:false has to survive encoding; a plain bool with omitempty
	// would drop it and stick the indicator on.
	data, err := Encode(NewTyping("p1", false, ""))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isTyping":false`)

	env, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, env.IsTyping)
	assert.False(t, *env.IsTyping)
}

func TestEncodeOmitsUnusedFields(t *testing.T) {
	t.Parallel()

	data, err := Encode(NewPlayerLeft("p9"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"playerLeft","playerId":"p9"}`, string(data))
}

func TestNewPlayersNeverNil(t *testing.T) {
	t.Parallel()

	data, err := Encode(NewPlayers(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"players","players":[]}`, string(data))
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "trimmed", in: "  alice  ", want: "alice"},
		{name: "capped at 16 runes", in: strings.Repeat("a", 40), want: strings.Repeat("a", 16)},
		{name: "multibyte capped by runes", in: strings.Repeat("é", 20), want: strings.Repeat("é", 16)},
		{name: "whitespace only is unset", in: "   ", want: ""},
		{name: "empty is unset", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeChatBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "plain", in: "hi there", want: "hi there", wantOK: true},
		{name: "trimmed", in: "  hi  ", want: "hi", wantOK: true},
		{name: "empty dropped", in: "", wantOK: false},
		{name: "whitespace dropped", in: " \t\n ", wantOK: false},
		{name: "truncated at 200 runes", in: strings.Repeat("x", 500), want: strings.Repeat("x", 200), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := NormalizeChatBody(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abcdef", ShortID("abcdef123456"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestChatMessageRoundTrip(t *testing.T) {
	t.Parallel()

	msg := presencenet.ChatMessage{
		ID:         7,
		PlayerID:   "p1",
		Username:   "alice",
		Message:    "hi",
		Timestamp:  1700000000000,
		Private:    true,
		ToPlayerID: "p2",
	}
	data, err := Encode(NewChat(msg))
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, env.ChatMessage())
}
