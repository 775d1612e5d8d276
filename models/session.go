package models

import "time"

// SessionState is the lifecycle state of a consultation session. The server
// only ever moves a session forward: waiting_specialist -> assigned -> closed.
type SessionState string

// Session lifecycle states as returned by the consultation API.
const (
	StateWaitingSpecialist SessionState = "waiting_specialist"
	StateAssigned          SessionState = "assigned"
	StateClosed            SessionState = "closed"
)

// Rank maps a state to its position in the lifecycle. Unknown states rank
// lowest so a comparison against them never moves a snapshot backwards.
func (s SessionState) Rank() int {
	switch s {
	case StateWaitingSpecialist:
		return 1
	case StateAssigned:
		return 2
	case StateClosed:
		return 3
	}
	return 0
}

// Channel is the routing target of a session.
type Channel string

// Session channels.
const (
	ChannelAI         Channel = "ai"
	ChannelSpecialist Channel = "specialist"
	ChannelAIAdmin    Channel = "ai_admin"
)

// Session holds the structure for a chat session as returned by the
// consultation API.
type Session struct {
	ID           string       `json:"id"`
	OwnerUserID  string       `json:"userId"`
	SpecialistID string       `json:"specialistId,omitempty"`
	Channel      Channel      `json:"channel"`
	State        SessionState `json:"state"`
	Title        string       `json:"title,omitempty"`
	CreatedAt    *time.Time   `json:"createdAt,omitempty"`
	Messages     []Message    `json:"messages,omitempty"`
}

// SessionPage holds one page of a session listing.
type SessionPage struct {
	Items      []Session `json:"items"`
	TotalCount int       `json:"totalCount"`
	PageNumber int       `json:"pageNumber"`
	PageSize   int       `json:"pageSize"`
}
