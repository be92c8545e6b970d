package services

import (
	"context"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

// subscriptionProvider is the external subscription-relationship contract.
type subscriptionProvider interface {
	IsTraineeCoachEngaged(ctx context.Context, traineeID, coachID int64) (bool, error)
	IncrementMessageCount(ctx context.Context, traineeID, coachID int64) error
}

type PermissionDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// PermissionService decides whether two identities may message each other.
// It keeps no state of its own; the only side effect is the message-count
// increment delegated to the subscription collaborator on a granted
// trainee↔coach check.
type PermissionService struct {
	subscriptions subscriptionProvider
}

func NewPermissionService(subscriptions subscriptionProvider) *PermissionService {
	return &PermissionService{subscriptions: subscriptions}
}

// CanMessage applies the permission rules in order: administrators may
// message anyone, two users of the same role never may, and a trainee↔coach
// pair must have a live coaching engagement. Every other combination is
// denied.
func (s *PermissionService) CanMessage(
	ctx context.Context,
	senderID int64,
	receiverID int64,
	senderRole models.Role,
	receiverRole models.Role,
) (PermissionDecision, error) {
	if !senderRole.Valid() || !receiverRole.Valid() {
		return PermissionDecision{Reason: "unknown role"}, nil
	}
	if senderRole == models.RoleAdmin {
		return PermissionDecision{Allowed: true}, nil
	}
	if senderRole == receiverRole {
		return PermissionDecision{Reason: "users with the same role cannot message each other"}, nil
	}

	var traineeID, coachID int64
	switch {
	case senderRole == models.RoleTrainee && receiverRole == models.RoleCoach:
		traineeID, coachID = senderID, receiverID
	case senderRole == models.RoleCoach && receiverRole == models.RoleTrainee:
		traineeID, coachID = receiverID, senderID
	default:
		return PermissionDecision{Reason: "messaging is not allowed between these roles"}, nil
	}

	engaged, err := s.subscriptions.IsTraineeCoachEngaged(ctx, traineeID, coachID)
	if err != nil {
		return PermissionDecision{}, err
	}
	if !engaged {
		return PermissionDecision{Reason: "no active coaching engagement between these users"}, nil
	}

	if err := s.subscriptions.IncrementMessageCount(ctx, traineeID, coachID); err != nil {
		return PermissionDecision{}, err
	}
	return PermissionDecision{Allowed: true}, nil
}
