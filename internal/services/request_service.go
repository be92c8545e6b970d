package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/repository"
)

const maxRequestMessageLength = 1000

type displayReader interface {
	userReader
	GetDisplayByID(ctx context.Context, id int64) (*models.UserDisplay, error)
}

// RequestService owns the message-request state machine:
// pending → accepted | rejected | expired, all transitions terminal.
type RequestService struct {
	db               *pgxpool.Pool
	requestRepo      *repository.MessageRequestRepository
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         displayReader
	permissions      *PermissionService
}

func NewRequestService(
	db *pgxpool.Pool,
	requestRepo *repository.MessageRequestRepository,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo displayReader,
	permissions *PermissionService,
) *RequestService {
	return &RequestService{
		db:               db,
		requestRepo:      requestRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		permissions:      permissions,
	}
}

type CreateRequestInput struct {
	CoachID       int64
	Message       string
	Reason        *string
	Urgency       *string
	PreferredTime *string
}

// CreateRequest opens a trainee's request toward a coach. Duplicate pending
// requests for the pair are rejected by the storage constraint, and a pair
// that already has an active conversation cannot open another request.
func (s *RequestService) CreateRequest(
	ctx context.Context,
	traineeID int64,
	input CreateRequestInput,
) (*models.MessageRequest, error) {
	message := strings.TrimSpace(input.Message)
	if input.CoachID <= 0 || input.CoachID == traineeID ||
		message == "" || len(message) > maxRequestMessageLength {
		return nil, ErrInvalidInput
	}

	trainee, err := s.lookupUser(ctx, traineeID, models.RoleTrainee)
	if err != nil {
		return nil, err
	}
	coach, err := s.lookupUser(ctx, input.CoachID, models.RoleCoach)
	if err != nil {
		return nil, err
	}

	decision, err := s.permissions.CanMessage(ctx, trainee.ID, coach.ID, trainee.Role, coach.Role)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrForbidden
	}

	// An already-active conversation is a separate guard from pending-request
	// uniqueness; both hold.
	existing, err := s.conversationRepo.GetByPair(ctx, traineeID, input.CoachID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.Status == models.ConversationActive {
		return nil, ErrConflict
	}

	snapshot, err := s.userRepo.GetDisplayByID(ctx, traineeID)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(models.RequestMetadata{
		Urgency:       input.Urgency,
		PreferredTime: input.PreferredTime,
		Trainee:       snapshot,
	})
	if err != nil {
		return nil, err
	}

	request, err := s.requestRepo.Create(ctx, repository.CreateRequestInput{
		TraineeID: traineeID,
		CoachID:   input.CoachID,
		Message:   message,
		Reason:    input.Reason,
		ExpiresAt: time.Now().UTC().Add(models.RequestTTL),
		Metadata:  metadata,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, err
	}
	return request, nil
}

type RequestAction string

const (
	RequestActionAccept RequestAction = "accept"
	RequestActionReject RequestAction = "reject"
)

func ParseRequestAction(value string) (RequestAction, bool) {
	switch RequestAction(strings.ToLower(strings.TrimSpace(value))) {
	case RequestActionAccept:
		return RequestActionAccept, true
	case RequestActionReject:
		return RequestActionReject, true
	default:
		return "", false
	}
}

// RequestOutcome is the result of a coach's response. Conversation is set
// only on accept.
type RequestOutcome struct {
	Request      *models.MessageRequest `json:"request"`
	Conversation *models.Conversation   `json:"conversation,omitempty"`
}

// Respond applies the coach's accept/reject. The transition is a
// compare-and-set against status='pending', so of two concurrent responses
// only the first wins. A request found past its expiry is flipped to
// expired instead, and the response fails with a conflict.
func (s *RequestService) Respond(
	ctx context.Context,
	requestID int64,
	coachID int64,
	action RequestAction,
	responseMessage *string,
) (*RequestOutcome, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if request.CoachID != coachID {
		return nil, ErrForbidden
	}
	if request.Status != models.RequestPending {
		return nil, ErrConflict
	}
	if request.Expired(time.Now().UTC()) {
		if _, err := s.requestRepo.MarkExpired(ctx, requestID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, ErrConflict
	}

	if action == RequestActionReject {
		rejected, err := s.requestRepo.RespondIfPending(ctx, requestID, models.RequestRejected, responseMessage)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return &RequestOutcome{Request: rejected}, nil
	}

	// Accept: the transition, the conversation and its seeded first message
	// commit together.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRequestRepo := repository.NewMessageRequestRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)
	txMessageRepo := repository.NewMessageRepository(tx)

	accepted, err := txRequestRepo.RespondIfPending(ctx, requestID, models.RequestAccepted, responseMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}

	conversation, err := txConversationRepo.GetOrCreate(ctx, accepted.TraineeID, accepted.CoachID)
	if err != nil {
		return nil, err
	}

	seed, err := txMessageRepo.Create(ctx, repository.CreateMessageInput{
		ConversationID: conversation.ID,
		SenderID:       accepted.TraineeID,
		ReceiverID:     accepted.CoachID,
		Content:        accepted.Message,
		Type:           models.MessageTypeText,
	})
	if err != nil {
		return nil, err
	}

	// The coach read the request text before accepting, so the seed lands
	// already read and both unread counters stay at zero.
	if _, err := txMessageRepo.MarkMessagesRead(ctx, []int64{seed.ID}, accepted.CoachID); err != nil {
		return nil, err
	}
	conversation, err = txConversationRepo.SetLastMessage(
		ctx,
		conversation.ID,
		truncatePreview(accepted.Message),
		seed.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &RequestOutcome{Request: accepted, Conversation: conversation}, nil
}

// Cancel hard-removes the trainee's own still-pending request.
func (s *RequestService) Cancel(ctx context.Context, requestID int64, traineeID int64) error {
	deleted, err := s.requestRepo.DeletePending(ctx, requestID, traineeID)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if request.TraineeID != traineeID {
		return ErrForbidden
	}
	return ErrConflict
}

// Get returns a request visible to one of its two parties.
func (s *RequestService) Get(
	ctx context.Context,
	actorID int64,
	requestID int64,
) (*models.MessageRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if request.TraineeID != actorID && request.CoachID != actorID {
		return nil, ErrNotFound
	}
	return request, nil
}

func (s *RequestService) List(
	ctx context.Context,
	actorID int64,
	filter repository.RequestListFilter,
) ([]models.MessageRequest, int, error) {
	return s.requestRepo.ListForUser(ctx, actorID, filter)
}

// SweepExpiredRequests expires every overdue pending request. The daily
// schedule belongs to an external scheduler; this operation is idempotent.
func (s *RequestService) SweepExpiredRequests(ctx context.Context) (int64, error) {
	return s.requestRepo.SweepExpired(ctx, time.Now().UTC())
}

func (s *RequestService) lookupUser(
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
