package memory

import (
	"strings"

	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

// SelectWindow returns the trailing min(window, len(turns)) turns, oldest first.
func SelectWindow(turns []chat.Turn, window int) []chat.Turn {
	if len(turns) == 0 || window <= 0 {
		return []chat.Turn{}
	}

	start := len(turns) - window
	if start < 0 {
		start = 0
	}

	selected := make([]chat.Turn, len(turns)-start)
	copy(selected, turns[start:])
	return selected
}

// RenderTurns writes one "User: ..." / "Assistant: ..." line per turn.
func RenderTurns(turns []chat.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, turn := range turns {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(turn.Role.Label())
		builder.WriteString(": ")
		builder.WriteString(turn.Content)
	}
	return builder.String()
}
