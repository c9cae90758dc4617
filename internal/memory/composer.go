package memory

import (
	"errors"
	"strings"
)

// ErrEmptyInput is returned when a prompt would be composed without a question or context.
var ErrEmptyInput = errors.New("question and context data are required")

const (
	summaryHeader  = "Conversation summary (long-term memory):"
	recentHeader   = "Recent conversation (oldest first):"
	contextHeader  = "Context data:"
	questionHeader = "User's new question:"
)

// Compose merges the long-term summary, the recent window, the task context and the new
// question into the outbound prompt. Empty summary or recent sections are left out entirely.
func Compose(summary, recent, taskContext, question string) (string, error) {
	if strings.TrimSpace(taskContext) == "" || strings.TrimSpace(question) == "" {
		return "", ErrEmptyInput
	}

	sections := make([]string, 0, 4)
	if summary != "" {
		sections = append(sections, summaryHeader+"\n"+summary)
	}
	if recent != "" {
		sections = append(sections, recentHeader+"\n"+recent)
	}
	sections = append(sections,
		contextHeader+"\n"+taskContext,
		questionHeader+"\n"+question,
	)

	return strings.Join(sections, "\n\n"), nil
}
