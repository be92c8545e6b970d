package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles the messaging core understands.
type Role string

const (
	RoleTrainee Role = "trainee"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleTrainee:
		return RoleTrainee, true
	case RoleCoach:
		return RoleCoach, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RoleTrainee || r == RoleCoach || r == RoleAdmin
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FullName     *string   `json:"full_name"`
	AvatarURL    *string   `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserDisplay is the subset of identity attributes embedded in event
// payloads and request snapshots.
type UserDisplay struct {
	ID        int64   `json:"id"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

type Subscription struct {
	ID           int64     `json:"id"`
	TraineeID    int64     `json:"trainee_id"`
	CoachID      int64     `json:"coach_id"`
	Status       string    `json:"status"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	SubscriptionPending   = "pending"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)
