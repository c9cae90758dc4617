package memory

import (
	"context"
	"sync"

	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

// Conversation is the memory of a single session: its transcript plus the latest summary.
// Readers may run concurrently with a writer. Writers (Append, SetSummary, Refresh) must be
// serialized by the caller so turns and summaries stay in order.
type Conversation struct {
	cfg Config

	mu         sync.RWMutex
	transcript *Transcript
	summary    string
}

// NewConversation returns an empty conversation governed by cfg.
func NewConversation(cfg Config) *Conversation {
	return &Conversation{cfg: cfg, transcript: NewTranscript()}
}

// Append records turn and reports whether a summarization pass is now due.
func (c *Conversation) Append(turn chat.Turn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript.Append(turn)
	return IsDue(c.transcript.Count(), c.cfg.SummaryInterval)
}

// Turns returns a copy of the transcript.
func (c *Conversation) Turns() []chat.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.All()
}

// Count returns the number of turns recorded.
func (c *Conversation) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.Count()
}

// Summary returns the latest digest, or "" when none has been produced yet.
func (c *Conversation) Summary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

// SetSummary overwrites the stored digest.
func (c *Conversation) SetSummary(summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = summary
}

// RecentText renders the trailing ContextWindow turns.
func (c *Conversation) RecentText() string {
	return RenderTurns(SelectWindow(c.Turns(), c.cfg.ContextWindow))
}

// BuildPrompt composes the outbound prompt for question against taskContext.
func (c *Conversation) BuildPrompt(taskContext, question string) (string, error) {
	return Compose(c.Summary(), c.RecentText(), taskContext, question)
}

// Refresh runs s over the whole transcript and stores the result. The completion call runs
// without holding the lock, so readers are not blocked by it.
func (c *Conversation) Refresh(ctx context.Context, s *Summarizer) string {
	c.mu.RLock()
	turns, previous := c.transcript.All(), c.summary
	c.mu.RUnlock()

	summary := s.Summarize(ctx, turns, previous)

	c.SetSummary(summary)
	return summary
}
