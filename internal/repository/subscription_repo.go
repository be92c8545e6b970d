package repository

import (
	"context"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

// SubscriptionRepository backs the subscription-relationship contract the
// permission resolver consults. Billing itself lives outside this core; the
// table only records whether a coaching engagement exists between a pair.
type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// IsTraineeCoachEngaged reports whether the pair has a pending or active
// coaching engagement.
func (r *SubscriptionRepository) IsTraineeCoachEngaged(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM subscriptions
			WHERE trainee_id = $1
			  AND coach_id = $2
			  AND status IN ('pending', 'active')
		)
	`
	var engaged bool
	if err := r.db.QueryRow(ctx, query, traineeID, coachID).Scan(&engaged); err != nil {
		return false, err
	}
	return engaged, nil
}

func (r *SubscriptionRepository) IncrementMessageCount(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET message_count = message_count + 1, updated_at = NOW()
		WHERE trainee_id = $1 AND coach_id = $2
	`, traineeID, coachID)
	return err
}

func (r *SubscriptionRepository) Create(
	ctx context.Context,
	subscription *models.Subscription,
) error {
	query := `
		INSERT INTO subscriptions (trainee_id, coach_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, message_count, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, subscription.TraineeID, subscription.CoachID, subscription.Status).
		Scan(&subscription.ID, &subscription.MessageCount, &subscription.CreatedAt, &subscription.UpdatedAt)
}

func (r *SubscriptionRepository) SetStatus(
	ctx context.Context,
	traineeID int64,
	coachID int64,
	status string,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET status = $3, updated_at = NOW()
		WHERE trainee_id = $1 AND coach_id = $2
	`, traineeID, coachID, status)
	return err
}
