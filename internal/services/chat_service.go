package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
)

const (
	maxMessageLength = 2000
	previewLength    = 100
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// ChatService orchestrates conversation and message operations. Every
// operation first verifies the acting user is a participant of the target
// conversation; first-contact starts route through the permission resolver.
type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
	permissions      *PermissionService
}

// MessageDelivery is the confirmed wire shape handed to clients and to the
// gateway after a successful send.
type MessageDelivery struct {
	Message      *models.Message      `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
	RecipientID  int64                `json:"recipient_id"`
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	permissions *PermissionService,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		permissions:      permissions,
	}
}

// StartConversation opens (or reactivates) the conversation between a
// trainee and a coach. Non-admin actors must be one end of the pair and
// pass the permission check against the counterpart.
func (s *ChatService) StartConversation(
	ctx context.Context,
	actorID int64,
	actorRole models.Role,
	traineeID int64,
	coachID int64,
) (*models.Conversation, error) {
	if traineeID <= 0 || coachID <= 0 || traineeID == coachID {
		return nil, ErrInvalidInput
	}

	switch actorRole {
	case models.RoleAdmin:
		// Admin-initiated conversations skip the subscription gate.
	case models.RoleTrainee:
		if actorID != traineeID {
			return nil, ErrForbidden
		}
	case models.RoleCoach:
		if actorID != coachID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	trainee, err := s.lookupUser(ctx, traineeID, models.RoleTrainee)
	if err != nil {
		return nil, err
	}
	coach, err := s.lookupUser(ctx, coachID, models.RoleCoach)
	if err != nil {
		return nil, err
	}

	if actorRole != models.RoleAdmin {
		receiver := coach
		sender := trainee
		if actorRole == models.RoleCoach {
			sender, receiver = coach, trainee
		}
		decision, err := s.permissions.CanMessage(ctx, sender.ID, receiver.ID, sender.Role, receiver.Role)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, ErrForbidden
		}
	}

	return s.conversationRepo.GetOrCreate(ctx, traineeID, coachID)
}

func (s *ChatService) GetConversation(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.Conversation, error) {
	return s.participantConversation(ctx, actorID, conversationID)
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
	filter repository.ConversationListFilter,
) ([]models.Conversation, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidInput
	}
	return s.conversationRepo.List(ctx, actorID, filter)
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	filter repository.MessageListFilter,
) ([]models.Message, int, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, ErrInvalidInput
	}
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, 0, err
	}
	filter.ReaderID = actorID
	return s.messageRepo.ListByConversation(ctx, conversationID, filter)
}

type SendMessageInput struct {
	ConversationID int64
	Content        string
	Type           models.MessageType
	Metadata       json.RawMessage
}

// SendMessage appends a message to an active conversation. The insert, the
// conversation preview update and the receiver's unread bump commit in one
// transaction, so a crash cannot leave a message visible without its
// counter.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	input SendMessageInput,
) (*MessageDelivery, error) {
	content := strings.TrimSpace(input.Content)
	if input.ConversationID <= 0 || content == "" || len(content) > maxMessageLength {
		return nil, ErrInvalidInput
	}
	messageType := input.Type
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !messageType.Valid() {
		return nil, ErrInvalidInput
	}

	conversation, err := s.participantConversation(ctx, actorID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if conversation.Status != models.ConversationActive {
		return nil, ErrConversationInactive
	}

	receiverID := conversation.CounterpartOf(actorID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, repository.CreateMessageInput{
		ConversationID: input.ConversationID,
		SenderID:       actorID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           messageType,
		Metadata:       input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	updated, err := txConversationRepo.ApplyMessage(
		ctx,
		input.ConversationID,
		receiverID,
		truncatePreview(content),
		message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &MessageDelivery{
		Message:      message,
		Conversation: updated,
		RecipientID:  receiverID,
	}, nil
}

// ReadReceipt reports the outcome of a mark-read call: which messages
// actually flipped, and when.
type ReadReceipt struct {
	ConversationID int64     `json:"conversation_id"`
	ReaderID       int64     `json:"reader_id"`
	MessageIDs     []int64   `json:"message_ids"`
	ReadAt         time.Time `json:"read_at"`
}

// MarkConversationRead flips every unread message addressed to the reader
// and zeroes the reader's unread counter. Repeated calls change nothing.
func (s *ChatService) MarkConversationRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*ReadReceipt, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	ids, err := txMessageRepo.MarkConversationRead(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if err := txConversationRepo.SetUnread(ctx, conversationID, actorID, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ReadReceipt{
		ConversationID: conversationID,
		ReaderID:       actorID,
		MessageIDs:     ids,
		ReadAt:         time.Now().UTC(),
	}, nil
}

// MarkMessagesRead flips the listed messages for the reader and re-derives
// the reader's unread counter from what is actually left unread. An empty
// id list is a no-op.
func (s *ChatService) MarkMessagesRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	messageIDs []int64,
) (*ReadReceipt, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	receipt := &ReadReceipt{
		ConversationID: conversationID,
		ReaderID:       actorID,
		ReadAt:         time.Now().UTC(),
	}
	if len(messageIDs) == 0 {
		receipt.MessageIDs = []int64{}
		return receipt, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	ids, err := txMessageRepo.MarkMessagesRead(ctx, messageIDs, actorID)
	if err != nil {
		return nil, err
	}
	remaining, err := txMessageRepo.CountUnreadForReader(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if err := txConversationRepo.SetUnread(ctx, conversationID, actorID, remaining); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	receipt.MessageIDs = ids
	return receipt, nil
}

// UpdateSettings changes the caller's view of the conversation. The archive
// flag is per-participant and never affects the other side; archiving the
// whole conversation via status also flags its messages archived.
func (s *ChatService) UpdateSettings(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	update repository.ConversationSettingsUpdate,
) (*models.Conversation, error) {
	if update.Status == nil && update.Archived == nil {
		return nil, ErrInvalidInput
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, ErrInvalidInput
	}
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)

	conversation, err := txConversationRepo.UpdateSettings(ctx, conversationID, actorID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if update.Status != nil && *update.Status == models.ConversationArchived {
		txMessageRepo := repository.NewMessageRepository(tx)
		if _, err := txMessageRepo.ArchiveForConversation(ctx, conversationID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) GetStats(ctx context.Context, actorID int64) (*models.ConversationStats, error) {
	return s.conversationRepo.Stats(ctx, actorID)
}

// ListCounterpartIDs returns the other side of every conversation the user
// participates in; the gateway uses it for presence fan-out.
func (s *ChatService) ListCounterpartIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.conversationRepo.ListCounterpartIDs(ctx, userID)
}

// BlockForSubscriptionEnd revokes messaging for a pair whose engagement has
// ended. Sends only consult conversation status, so flipping the row to
// blocked is what makes the lapse effective.
func (s *ChatService) BlockForSubscriptionEnd(
	ctx context.Context,
	traineeID int64,
	coachID int64,
) error {
	return s.conversationRepo.BlockForPair(ctx, traineeID, coachID)
}

func (s *ChatService) participantConversation(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.Conversation, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !conversation.IsParticipant(actorID) {
		return nil, ErrForbidden
	}
	return conversation, nil
}

func (s *ChatService) lookupUser(
	ctx context.Context,
	userID int64,
	expected models.Role,
) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != expected {
		return nil, ErrInvalidInput
	}
	return user, nil
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}

// FormatEventTimestamp renders timestamps for the real-time event payloads.
func FormatEventTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
