package memory

import "github.com/zhouzirui/course-advisor/backend/internal/model/chat"

// Transcript is the ordered, append-only history of a session. It is not safe for concurrent
// use; callers serialize access per session.
type Transcript struct {
	turns []chat.Turn
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{turns: make([]chat.Turn, 0, 16)}
}

// Append adds turn to the end of the transcript.
func (t *Transcript) Append(turn chat.Turn) {
	t.turns = append(t.turns, turn)
}

// All returns a copy of every turn in chronological order.
func (t *Transcript) All() []chat.Turn {
	copied := make([]chat.Turn, len(t.turns))
	copy(copied, t.turns)
	return copied
}

// Count returns the number of turns appended so far.
func (t *Transcript) Count() int {
	return len(t.turns)
}
