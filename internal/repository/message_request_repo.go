package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

type MessageRequestRepository struct {
	db DBTX
}

func NewMessageRequestRepository(db DBTX) *MessageRequestRepository {
	return &MessageRequestRepository{db: db}
}

const requestColumns = `
	id, trainee_id, coach_id, message, reason, status, response, responded_at,
	expires_at, metadata, created_at, updated_at
`

func scanRequest(row pgx.Row) (*models.MessageRequest, error) {
	var r models.MessageRequest
	err := row.Scan(
		&r.ID,
		&r.TraineeID,
		&r.CoachID,
		&r.Message,
		&r.Reason,
		&r.Status,
		&r.Response,
		&r.RespondedAt,
		&r.ExpiresAt,
		&r.Metadata,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type CreateRequestInput struct {
	TraineeID int64
	CoachID   int64
	Message   string
	Reason    *string
	ExpiresAt time.Time
	Metadata  json.RawMessage
}

// Create inserts a pending request. The partial unique index on
// (trainee_id, coach_id) WHERE status = 'pending' rejects a second pending
// request for the pair; callers map that 23505 to a conflict.
func (r *MessageRequestRepository) Create(
	ctx context.Context,
	input CreateRequestInput,
) (*models.MessageRequest, error) {
	query := `
		INSERT INTO message_requests (trainee_id, coach_id, message, reason, status, expires_at, metadata)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		RETURNING ` + requestColumns

	return scanRequest(r.db.QueryRow(
		ctx,
		query,
		input.TraineeID,
		input.CoachID,
		input.Message,
		input.Reason,
		input.ExpiresAt,
		input.Metadata,
	))
}

func (r *MessageRequestRepository) GetByID(
	ctx context.Context,
	requestID int64,
) (*models.MessageRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM message_requests WHERE id = $1`
	return scanRequest(r.db.QueryRow(ctx, query, requestID))
}

type RequestListFilter struct {
	Status models.RequestStatus
	Limit  int
	Offset int
}

// ListForUser returns requests the user is a party to, newest first.
func (r *MessageRequestRepository) ListForUser(
	ctx context.Context,
	userID int64,
	filter RequestListFilter,
) ([]models.MessageRequest, int, error) {
	args := []any{userID}
	whereParts := []string{"(trainee_id = $1 OR coach_id = $1)"}

	if filter.Status != "" {
		args = append(args, filter.Status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM message_requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM message_requests
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, requestColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]models.MessageRequest, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// RespondIfPending is the first-responder-wins transition: the row only
// moves when it is still pending, so a lost race surfaces as pgx.ErrNoRows.
func (r *MessageRequestRepository) RespondIfPending(
	ctx context.Context,
	requestID int64,
	nextStatus models.RequestStatus,
	response *string,
) (*models.MessageRequest, error) {
	query := `
		UPDATE message_requests
		SET status = $2, response = $3, responded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns

	return scanRequest(r.db.QueryRow(ctx, query, requestID, nextStatus, response))
}

// MarkExpired force-transitions a single still-pending row to expired.
func (r *MessageRequestRepository) MarkExpired(
	ctx context.Context,
	requestID int64,
) (*models.MessageRequest, error) {
	query := `
		UPDATE message_requests
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns

	return scanRequest(r.db.QueryRow(ctx, query, requestID))
}

// SweepExpired transitions every overdue pending row to expired. It only
// targets rows still in 'pending', so it is idempotent and safe to run
// alongside single-row responds.
func (r *MessageRequestRepository) SweepExpired(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE message_requests
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeletePending hard-removes a trainee's own still-pending request.
func (r *MessageRequestRepository) DeletePending(
	ctx context.Context,
	requestID int64,
	traineeID int64,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM message_requests
		WHERE id = $1 AND trainee_id = $2 AND status = 'pending'
	`, requestID, traineeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
