package client

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/voxelab/presencenet"
)

func TestChatLogAppendAndOrder(t *testing.T) {
	t.Parallel()

	l := NewChatLog(10)
	for i := 1; i <= 3; i++ {
		l.Append(presencenet.ChatMessage{ID: int64(i)})
	}

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(3), entries[2].ID)
}

func TestChatLogEvictsOldest(t *testing.T) {
	t.Parallel()

	l := NewChatLog(50)
	for i := 1; i <= 60; i++ {
		l.Append(presencenet.ChatMessage{ID: int64(i), Message: fmt.Sprintf("m%d", i)})
	}

	entries := l.Entries()
	require.Len(t, entries, 50)
	assert.Equal(t, int64(11), entries[0].ID, "the 10 oldest entries were evicted")
	assert.Equal(t, int64(60), entries[49].ID)
}

func TestChatLogMinimumCapacity(t *testing.T) {
	t.Parallel()

	l := NewChatLog(0)
	l.Append(presencenet.ChatMessage{ID: 1})
	l.Append(presencenet.ChatMessage{ID: 2})
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ID)
}

// TestChatLogRingProperty appends a random number of entries and checks the
// log always holds the most recent min(n, cap) in order.
func TestChatLogRingProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		n := rapid.IntRange(0, 100).Draw(rt, "appends")

		l := NewChatLog(capacity)
		for i := 1; i <= n; i++ {
			l.Append(presencenet.ChatMessage{ID: int64(i)})
		}

		want := n
		if want > capacity {
			want = capacity
		}
		entries := l.Entries()
		if len(entries) != want {
			rt.Fatalf("got %d entries, want %d", len(entries), want)
		}
		for i, e := range entries {
			wantID := int64(n - want + i + 1)
			if e.ID != wantID {
				rt.Fatalf("entry %d has id %d, want %d", i, e.ID, wantID)
			}
		}
	})
}
