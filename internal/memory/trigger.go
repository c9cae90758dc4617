package memory

// IsDue reports whether a summarization pass should run once the transcript holds count turns.
func IsDue(count, interval int) bool {
	if interval <= 0 {
		return false
	}
	return count >= interval && count%interval == 0
}
