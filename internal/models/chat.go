package models

import (
	"encoding/json"
	"time"
)

type ConversationStatus string

const (
	ConversationPending  ConversationStatus = "pending"
	ConversationActive   ConversationStatus = "active"
	ConversationBlocked  ConversationStatus = "blocked"
	ConversationArchived ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationPending, ConversationActive, ConversationBlocked, ConversationArchived:
		return true
	default:
		return false
	}
}

// Conversation is the single persistent channel between one trainee and one
// coach. Exactly one row exists per (trainee, coach) pair; unread counters
// and archive flags are tracked independently for each side.
type Conversation struct {
	ID                 int64              `json:"id"`
	TraineeID          int64              `json:"trainee_id"`
	CoachID            int64              `json:"coach_id"`
	Status             ConversationStatus `json:"status"`
	LastMessagePreview *string            `json:"last_message_preview"`
	LastMessageAt      *time.Time         `json:"last_message_at"`
	TraineeUnread      int                `json:"trainee_unread"`
	CoachUnread        int                `json:"coach_unread"`
	TraineeArchived    bool               `json:"trainee_archived"`
	CoachArchived      bool               `json:"coach_archived"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsParticipant reports whether userID is one of the two fixed participants.
func (c *Conversation) IsParticipant(userID int64) bool {
	return c.TraineeID == userID || c.CoachID == userID
}

// CounterpartOf returns the other participant's id.
func (c *Conversation) CounterpartOf(userID int64) int64 {
	if userID == c.TraineeID {
		return c.CoachID
	}
	return c.TraineeID
}

// UnreadFor returns the unread counter belonging to userID's side.
func (c *Conversation) UnreadFor(userID int64) int {
	if userID == c.TraineeID {
		return c.TraineeUnread
	}
	return c.CoachUnread
}

// ArchivedFor returns the archive flag belonging to userID's side.
func (c *Conversation) ArchivedFor(userID int64) bool {
	if userID == c.TraineeID {
		return c.TraineeArchived
	}
	return c.CoachArchived
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeVideo  MessageType = "video"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo, MessageTypeSystem:
		return true
	default:
		return false
	}
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message content is immutable once created; only status, read_at and the
// archived flag mutate afterwards.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	SenderID       int64           `json:"sender_id"`
	ReceiverID     int64           `json:"receiver_id"`
	Content        string          `json:"content"`
	Type           MessageType     `json:"type"`
	Status         MessageStatus   `json:"status"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Archived       bool            `json:"archived"`
	ReadAt         *time.Time      `json:"read_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationStats summarizes a user's side of the conversation list.
type ConversationStats struct {
	Total               int `json:"total"`
	Active              int `json:"active"`
	UnreadMessages      int `json:"unread_messages"`
	UnreadConversations int `json:"unread_conversations"`
}
