package client

import (
	"sync"
	"time"
)

// BubbleKind distinguishes the two ephemeral indicator slots a player can
// hold at once.
type BubbleKind int

const (
	SpeechBubble BubbleKind = iota
	TypingBubble
)

// String returns the kind name for logs and callbacks.
func (k BubbleKind) String() string {
	if k == TypingBubble {
		return "typing"
	}
	return "speech"
}

type bubbleKey struct {
	playerID string
	kind     BubbleKind
}

type bubbleEntry struct {
	text     string
	deadline time.Time
	gen      uint64
	timer    *time.Timer
}

// Bubbles holds per-player single-slot presence indicators with armed
// deadlines. Expiry is driven by local timers only, never by further
// network traffic, so a dropped connection cannot leave a stuck indicator.
// Re-arming a slot cancels the previous deadline rather than stacking.
type Bubbles struct {
	mu        sync.Mutex
	speechTTL time.Duration
	typingTTL time.Duration
	entries   map[bubbleKey]*bubbleEntry
	nextGen   uint64
	onExpire  func(playerID string, kind BubbleKind)
	closed    bool
}

// NewBubbles creates the indicator store. speechTTL bounds speech bubbles;
// typingTTL is the safety net for typing indicators whose typing:false
// never arrives. onExpire may be nil.
func NewBubbles(speechTTL, typingTTL time.Duration, onExpire func(playerID string, kind BubbleKind)) *Bubbles {
	return &Bubbles{
		speechTTL: speechTTL,
		typingTTL: typingTTL,
		entries:   make(map[bubbleKey]*bubbleEntry),
		onExpire:  onExpire,
	}
}

// ArmSpeech shows a speech bubble for the player, replacing any prior one
// and restarting its deadline.
func (b *Bubbles) ArmSpeech(playerID, text string) {
	b.arm(bubbleKey{playerID, SpeechBubble}, text, b.speechTTL)
}

// SetTyping arms or clears the typing indicator. typing:false clears
// immediately; typing:true arms the safety-net deadline.
func (b *Bubbles) SetTyping(playerID string, isTyping bool) {
	key := bubbleKey{playerID, TypingBubble}
	if !isTyping {
		b.clear(key)
		return
	}
	b.arm(key, "", b.typingTTL)
}

// Speech returns the active speech bubble text, if one is armed and its
// deadline has not passed.
func (b *Bubbles) Speech(playerID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[bubbleKey{playerID, SpeechBubble}]
	if !ok || time.Now().After(e.deadline) {
		return "", false
	}
	return e.text, true
}

// IsTyping reports whether the player's typing indicator is active.
func (b *Bubbles) IsTyping(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[bubbleKey{playerID, TypingBubble}]
	return ok && time.Now().Before(e.deadline)
}

// Drop cancels both of a player's indicators without firing expiry
// callbacks. Called when the player leaves.
func (b *Bubbles) Drop(playerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range []BubbleKind{SpeechBubble, TypingBubble} {
		key := bubbleKey{playerID, kind}
		if e, ok := b.entries[key]; ok {
			e.timer.Stop()
			delete(b.entries, key)
		}
	}
}

// Close cancels every pending deadline.
func (b *Bubbles) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for key, e := range b.entries {
		e.timer.Stop()
		delete(b.entries, key)
	}
}

func (b *Bubbles) arm(key bubbleKey, text string, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if prev, ok := b.entries[key]; ok {
		prev.timer.Stop()
	}

	b.nextGen++
	gen := b.nextGen
	e := &bubbleEntry{
		text:     text,
		deadline: time.Now().Add(ttl),
		gen:      gen,
	}
	// The generation check makes a stale timer firing after a re-arm
	// harmless.
	e.timer = time.AfterFunc(ttl, func() { b.expire(key, gen) })
	b.entries[key] = e
}

func (b *Bubbles) clear(key bubbleKey) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if ok {
		e.timer.Stop()
		delete(b.entries, key)
	}
	onExpire := b.onExpire
	b.mu.Unlock()

	if ok && onExpire != nil {
		onExpire(key.playerID, key.kind)
	}
}

func (b *Bubbles) expire(key bubbleKey, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.entries, key)
	onExpire := b.onExpire
	b.mu.Unlock()

	if onExpire != nil {
		onExpire(key.playerID, key.kind)
	}
}
