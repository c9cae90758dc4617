package chat

import "time"

// Mode selects where the context block of every prompt comes from.
type Mode string

const (
	// ModeCatalog renders the preloaded structured course catalog.
	ModeCatalog Mode = "catalog"
	// ModeDocuments uses text extracted from documents uploaded to the session.
	ModeDocuments Mode = "documents"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCatalog || m == ModeDocuments
}

// Session captures a logged-in advisory conversation.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Mode      Mode      `json:"mode"`
	ModelID   string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity carries the login credentials of a session. It is only handed to the completion
// backend and is never serialized back to clients.
type Identity struct {
	Username string `json:"-"`
	Password string `json:"-"`
}
