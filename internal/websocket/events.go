package chatws

import (
	"encoding/json"
	"time"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
)

// Server-to-client event types.
const (
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventMessagesRead        = "messages_read"
	EventTypingStatus        = "typing_status_changed"
	EventPresenceChanged     = "presence_changed"
	EventNewMessageRequest   = "new_message_request"
	EventRequestResponse     = "message_request_response"
	EventConversationCreated = "conversation_created"
	EventError               = "error"
)

// Client-to-server command actions.
const (
	ActionJoin           = "join"
	ActionLeave          = "leave"
	ActionSend           = "send"
	ActionTyping         = "typing"
	ActionMarkRead       = "mark_read"
	ActionSendRequest    = "send_request"
	ActionRespondRequest = "respond_request"
)

// Event is the outbound envelope fanned out to connections.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: services.FormatEventTimestamp(time.Now().UTC()),
	}
}

// Command is the inbound envelope; the populated fields depend on Action.
type Command struct {
	Action         string             `json:"action"`
	ConversationID int64              `json:"conversation_id,omitempty"`
	Content        string             `json:"content,omitempty"`
	Type           models.MessageType `json:"message_type,omitempty"`
	Metadata       json.RawMessage    `json:"metadata,omitempty"`
	MessageIDs     []int64            `json:"message_ids,omitempty"`
	IsTyping       bool               `json:"is_typing,omitempty"`
	CoachID        int64              `json:"coach_id,omitempty"`
	Message        string             `json:"message,omitempty"`
	Reason         *string            `json:"reason,omitempty"`
	Urgency        *string            `json:"urgency,omitempty"`
	PreferredTime  *string            `json:"preferred_time,omitempty"`
	RequestID      int64              `json:"request_id,omitempty"`
	RequestAction  string             `json:"request_action,omitempty"`
	Response       *string            `json:"response,omitempty"`
}

type typingPayload struct {
	ConversationID int64   `json:"conversation_id"`
	TypingUserIDs  []int64 `json:"typing_user_ids"`
}

type presencePayload struct {
	UserID   int64   `json:"user_id"`
	Online   bool    `json:"online"`
	LastSeen *string `json:"last_seen,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}
