package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, conversation_id, sender_id, receiver_id, content, type, status,
	metadata, archived, read_at, created_at
`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.Type,
		&m.Status,
		&m.Metadata,
		&m.Archived,
		&m.ReadAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type CreateMessageInput struct {
	ConversationID int64
	SenderID       int64
	ReceiverID     int64
	Content        string
	Type           models.MessageType
	Metadata       json.RawMessage
}

// Create inserts a message with status 'sent'. created_at is assigned by the
// database, which makes it the authoritative order within a conversation.
func (r *MessageRepository) Create(
	ctx context.Context,
	input CreateMessageInput,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, type, status, metadata)
		VALUES ($1, $2, $3, $4, $5, 'sent', $6)
		RETURNING ` + messageColumns

	return scanMessage(r.db.QueryRow(
		ctx,
		query,
		input.ConversationID,
		input.SenderID,
		input.ReceiverID,
		input.Content,
		input.Type,
		input.Metadata,
	))
}

type MessageListFilter struct {
	Type       models.MessageType
	Search     string
	UnreadOnly bool
	ReaderID   int64
	Limit      int
	Offset     int
}

// ListByConversation pages through a conversation newest-first.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
	filter MessageListFilter,
) ([]models.Message, int, error) {
	args := []any{conversationID}
	whereParts := []string{"conversation_id = $1"}

	if filter.Type != "" {
		args = append(args, filter.Type)
		whereParts = append(whereParts, fmt.Sprintf("type = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		whereParts = append(whereParts, fmt.Sprintf("content ILIKE $%d", len(args)))
	}
	if filter.UnreadOnly {
		args = append(args, filter.ReaderID)
		whereParts = append(whereParts, fmt.Sprintf(
			"receiver_id = $%d AND status <> 'read'", len(args),
		))
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM messages WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, messageColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, *message)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkConversationRead flips every not-yet-read message addressed to the
// reader and returns the affected ids. Already-read rows are untouched, so
// repeated calls are no-ops.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) ([]int64, error) {
	query := `
		UPDATE messages
		SET status = 'read', read_at = NOW()
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND status <> 'read'
		RETURNING id
	`
	return r.collectIDs(ctx, query, conversationID, readerID)
}

// MarkMessagesRead flips the listed messages, scoped to rows addressed to
// the reader and not yet read. An empty id list is a no-op, not an error.
func (r *MessageRepository) MarkMessagesRead(
	ctx context.Context,
	messageIDs []int64,
	readerID int64,
) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	query := `
		UPDATE messages
		SET status = 'read', read_at = NOW()
		WHERE id = ANY($1)
		  AND receiver_id = $2
		  AND status <> 'read'
		RETURNING id
	`
	return r.collectIDs(ctx, query, messageIDs, readerID)
}

// ArchiveForConversation flags every message of the conversation archived.
// Content stays immutable; the archived flag is the only mutation.
func (r *MessageRepository) ArchiveForConversation(
	ctx context.Context,
	conversationID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET archived = TRUE
		WHERE conversation_id = $1
		  AND NOT archived
	`, conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnreadForReader reports the reader's remaining unread messages in a
// conversation, used to keep the denormalized counter honest after partial
// mark-read calls.
func (r *MessageRepository) CountUnreadForReader(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND status <> 'read'
	`
	var count int
	if err := r.db.QueryRow(ctx, query, conversationID, readerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepository) collectIDs(
	ctx context.Context,
	query string,
	args ...any,
) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
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
