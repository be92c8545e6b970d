package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, trainee_id, coach_id, status, last_message_preview, last_message_at,
	trainee_unread, coach_unread, trainee_archived, coach_archived,
	created_at, updated_at
`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.TraineeID,
		&c.CoachID,
		&c.Status,
		&c.LastMessagePreview,
		&c.LastMessageAt,
		&c.TraineeUnread,
		&c.CoachUnread,
		&c.TraineeArchived,
		&c.CoachArchived,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreate returns the pair's conversation, creating it when absent.
// The unique (trainee_id, coach_id) constraint makes concurrent creation
// attempts from both ends converge on a single row. A previously archived
// or blocked conversation is reactivated and its archive flags cleared.
func (r *ConversationRepository) GetOrCreate(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (trainee_id, coach_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (trainee_id, coach_id) DO UPDATE SET
			status = CASE
				WHEN conversations.status IN ('archived', 'blocked') THEN 'active'
				ELSE conversations.status
			END,
			trainee_archived = CASE
				WHEN conversations.status IN ('archived', 'blocked') THEN FALSE
				ELSE conversations.trainee_archived
			END,
			coach_archived = CASE
				WHEN conversations.status IN ('archived', 'blocked') THEN FALSE
				ELSE conversations.coach_archived
			END,
			updated_at = NOW()
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, traineeID, coachID))
}

func (r *ConversationRepository) GetByID(
	ctx context.Context,
	conversationID int64,
) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRow(ctx, query, conversationID))
}

func (r *ConversationRepository) GetByPair(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE trainee_id = $1 AND coach_id = $2
	`
	return scanConversation(r.db.QueryRow(ctx, query, traineeID, coachID))
}

type ConversationListFilter struct {
	Status     models.ConversationStatus
	Archived   *bool
	UnreadOnly bool
	Limit      int
	Offset     int
}

// List returns the participant's conversations ordered by most recent
// message. Archived and unread filters are evaluated against the side the
// participant owns.
func (r *ConversationRepository) List(
	ctx context.Context,
	participantID int64,
	filter ConversationListFilter,
) ([]models.Conversation, int, error) {
	args := []any{participantID}
	whereParts := []string{"(trainee_id = $1 OR coach_id = $1)"}

	if filter.Status != "" {
		args = append(args, filter.Status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		whereParts = append(whereParts, fmt.Sprintf(
			"(CASE WHEN trainee_id = $1 THEN trainee_archived ELSE coach_archived END) = $%d",
			len(args),
		))
	}
	if filter.UnreadOnly {
		whereParts = append(whereParts,
			"(CASE WHEN trainee_id = $1 THEN trainee_unread ELSE coach_unread END) > 0",
		)
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM conversations WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM conversations
		WHERE %s
		ORDER BY last_message_at DESC NULLS LAST, id DESC
		LIMIT $%d OFFSET $%d
	`, conversationColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, *conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

// ApplyMessage records a newly inserted message on the conversation row:
// preview, last-message timestamp and the receiver's unread counter, all in
// the caller's transaction so the insert and the bump commit together.
func (r *ConversationRepository) ApplyMessage(
	ctx context.Context,
	conversationID int64,
	receiverID int64,
	preview string,
	sentAt time.Time,
) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET last_message_preview = $3,
			last_message_at = $4,
			trainee_unread = trainee_unread + CASE WHEN trainee_id = $2 THEN 1 ELSE 0 END,
			coach_unread = coach_unread + CASE WHEN coach_id = $2 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, conversationID, receiverID, preview, sentAt))
}

// SetLastMessage records the preview and last-message timestamp without
// touching either unread counter. Used when the message lands already read,
// such as the seed carried over from an accepted request.
func (r *ConversationRepository) SetLastMessage(
	ctx context.Context,
	conversationID int64,
	preview string,
	sentAt time.Time,
) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET last_message_preview = $2,
			last_message_at = $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, conversationID, preview, sentAt))
}

// SetUnread pins the participant's own unread counter to an absolute value.
// Values below zero are clamped.
func (r *ConversationRepository) SetUnread(
	ctx context.Context,
	conversationID int64,
	participantID int64,
	count int,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET trainee_unread = CASE WHEN trainee_id = $2 THEN GREATEST($3, 0) ELSE trainee_unread END,
			coach_unread = CASE WHEN coach_id = $2 THEN GREATEST($3, 0) ELSE coach_unread END,
			updated_at = NOW()
		WHERE id = $1
	`, conversationID, participantID, count)
	return err
}

type ConversationSettingsUpdate struct {
	Status   *models.ConversationStatus
	Archived *bool
}

// UpdateSettings applies a participant's settings change. The archive flag
// only touches the caller's side of the row.
func (r *ConversationRepository) UpdateSettings(
	ctx context.Context,
	conversationID int64,
	participantID int64,
	update ConversationSettingsUpdate,
) (*models.Conversation, error) {
	setParts := []string{"updated_at = NOW()"}
	args := []any{conversationID, participantID}

	if update.Status != nil {
		args = append(args, *update.Status)
		setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.Archived != nil {
		args = append(args, *update.Archived)
		setParts = append(setParts, fmt.Sprintf(
			"trainee_archived = CASE WHEN trainee_id = $2 THEN $%d ELSE trainee_archived END",
			len(args),
		))
		setParts = append(setParts, fmt.Sprintf(
			"coach_archived = CASE WHEN coach_id = $2 THEN $%d ELSE coach_archived END",
			len(args),
		))
	}

	query := fmt.Sprintf(`
		UPDATE conversations
		SET %s
		WHERE id = $1 AND (trainee_id = $2 OR coach_id = $2)
		RETURNING %s
	`, strings.Join(setParts, ", "), conversationColumns)

	return scanConversation(r.db.QueryRow(ctx, query, args...))
}

// BlockForPair flips the pair's conversation to blocked. Invoked by the
// subscription-end job; messaging rights are not re-verified per send, so
// this is the mechanism that revokes them.
func (r *ConversationRepository) BlockForPair(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET status = 'blocked', updated_at = NOW()
		WHERE trainee_id = $1 AND coach_id = $2
	`, traineeID, coachID)
	return err
}

// ListCounterpartIDs returns the other participant of every conversation the
// user is part of, for presence fan-out.
func (r *ConversationRepository) ListCounterpartIDs(
	ctx context.Context,
	participantID int64,
) ([]int64, error) {
	query := `
		SELECT CASE WHEN trainee_id = $1 THEN coach_id ELSE trainee_id END
		FROM conversations
		WHERE trainee_id = $1 OR coach_id = $1
	`
	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Stats aggregates the participant's conversation list in one pass.
func (r *ConversationRepository) Stats(
	ctx context.Context,
	participantID int64,
) (*models.ConversationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COALESCE(SUM(CASE WHEN trainee_id = $1 THEN trainee_unread ELSE coach_unread END), 0),
			COUNT(*) FILTER (WHERE (CASE WHEN trainee_id = $1 THEN trainee_unread ELSE coach_unread END) > 0)
		FROM conversations
		WHERE trainee_id = $1 OR coach_id = $1
	`
	var stats models.ConversationStats
	err := r.db.QueryRow(ctx, query, participantID).Scan(
		&stats.Total,
		&stats.Active,
		&stats.UnreadMessages,
		&stats.UnreadConversations,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
