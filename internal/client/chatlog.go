package client

import (
	"sync"

	"github.com/voxelab/presencenet"
)

// ChatLog is a bounded in-memory ring of delivered chat entries. Insertion
// beyond the cap evicts the oldest entry; there is no persistence.
type ChatLog struct {
	mu    sync.Mutex
	buf   []presencenet.ChatMessage
	start int
	count int
}

// NewChatLog creates a log holding at most capacity entries.
func NewChatLog(capacity int) *ChatLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ChatLog{buf: make([]presencenet.ChatMessage, capacity)}
}

// Append records one entry, evicting the oldest when full.
func (l *ChatLog) Append(msg presencenet.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count < len(l.buf) {
		l.buf[(l.start+l.count)%len(l.buf)] = msg
		l.count++
		return
	}
	l.buf[l.start] = msg
	l.start = (l.start + 1) % len(l.buf)
}

// Entries returns a copy of the log, oldest first.
func (l *ChatLog) Entries() []presencenet.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]presencenet.ChatMessage, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of retained entries.
func (l *ChatLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
