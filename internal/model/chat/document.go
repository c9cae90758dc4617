package chat

import "time"

// Document is the extracted text of a file uploaded to a session.
type Document struct {
	Name       string    `json:"name"`
	Text       string    `json:"-"`
	Chars      int       `json:"chars"`
	UploadedAt time.Time `json:"uploadedAt"`
}
