package models

import (
	"encoding/json"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// RequestTTL is the window a pending request stays answerable.
const RequestTTL = 7 * 24 * time.Hour

// MessageRequest is a trainee-initiated proposal to open messaging with a
// coach. It is mutated exactly once: by the coach's accept/reject or by the
// expiry sweep. Accepted, rejected and expired are terminal.
type MessageRequest struct {
	ID          int64           `json:"id"`
	TraineeID   int64           `json:"trainee_id"`
	CoachID     int64           `json:"coach_id"`
	Message     string          `json:"message"`
	Reason      *string         `json:"reason"`
	Status      RequestStatus   `json:"status"`
	Response    *string         `json:"response"`
	RespondedAt *time.Time      `json:"responded_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *MessageRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RequestMetadata is the structured payload stored alongside a request:
// urgency, the trainee's preferred contact time, and a snapshot of the
// trainee's profile for the coach's review context.
type RequestMetadata struct {
	Urgency       *string      `json:"urgency,omitempty"`
	PreferredTime *string      `json:"preferred_time,omitempty"`
	Trainee       *UserDisplay `json:"trainee,omitempty"`
}
