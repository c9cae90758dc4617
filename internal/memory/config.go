// Package memory keeps the conversational memory of an advisory session: the transcript, the
// window of recent turns that is replayed verbatim, and the long-term summary that periodically
// compresses everything said so far.
package memory

// Config fixes the memory policy of a deployment.
type Config struct {
	// ContextWindow is the number of trailing turns included verbatim in every prompt.
	ContextWindow int
	// SummaryInterval triggers a summarization pass whenever the turn count is a multiple of it.
	SummaryInterval int
	// SummaryMaxTokens caps the length of the generated digest.
	SummaryMaxTokens int
}

// DefaultConfig returns the stock memory policy.
func DefaultConfig() Config {
	return Config{
		ContextWindow:    6,
		SummaryInterval:  8,
		SummaryMaxTokens: 256,
	}
}
