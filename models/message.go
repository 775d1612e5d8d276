package models

import (
	"io"
	"time"
)

// Message holds the structure for a single chat message. Server-returned
// messages always have Pending=false; Pending is set only on locally created
// placeholders that have not been confirmed by a refresh yet.
type Message struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"sessionId,omitempty"`
	AuthorUserID string     `json:"userId"`
	Content      string     `json:"content,omitempty"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	Pending      bool       `json:"-"`
}

// OutgoingMessage is the payload for a message send. Image, when set, is
// streamed as the multipart file part; ImageURL references an already
// uploaded attachment.
type OutgoingMessage struct {
	Content   string
	ImageURL  string
	Image     io.Reader
	ImageName string
}

// Empty reports whether the message carries neither text nor an attachment.
func (m OutgoingMessage) Empty() bool {
	return m.Content == "" && m.ImageURL == "" && m.Image == nil
}
