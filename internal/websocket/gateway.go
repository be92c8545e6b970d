package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
	"github.com/abdallahabusidu/coach-app-be-sub001/internal/services"
	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

// ChatProvider is the slice of the messaging service the gateway relays
// commands into.
type ChatProvider interface {
	GetConversation(ctx context.Context, actorID int64, conversationID int64) (*models.Conversation, error)
	SendMessage(ctx context.Context, actorID int64, input services.SendMessageInput) (*services.MessageDelivery, error)
	MarkConversationRead(ctx context.Context, actorID int64, conversationID int64) (*services.ReadReceipt, error)
	MarkMessagesRead(ctx context.Context, actorID int64, conversationID int64, messageIDs []int64) (*services.ReadReceipt, error)
	ListCounterpartIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RequestProvider is the slice of the request workflow the gateway relays
// commands into.
type RequestProvider interface {
	CreateRequest(ctx context.Context, traineeID int64, input services.CreateRequestInput) (*models.MessageRequest, error)
	Respond(ctx context.Context, requestID int64, coachID int64, action services.RequestAction, responseMessage *string) (*services.RequestOutcome, error)
}

// Gateway glues authenticated connections to the hub, the presence registry
// and the domain services. Domain errors stay private to the connection
// that caused them; they never reach the room.
type Gateway struct {
	hub      *Hub
	presence PresenceRegistry
	chat     ChatProvider
	requests RequestProvider
}

func NewGateway(hub *Hub, presence PresenceRegistry, chat ChatProvider, requests RequestProvider) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: presence,
		chat:     chat,
		requests: requests,
	}
}

// HandleConnection runs one authenticated connection until it closes.
func (g *Gateway) HandleConnection(conn *websocket.Conn, userID int64, role models.Role) {
	client := newClient(g.hub, conn, userID, role)
	g.hub.Register(client)
	g.announceConnect(client)

	go client.writePump()
	g.readPump(client)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.hub.Unregister(c)
		g.announceDisconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			g.writeError(c, "invalid command payload")
			continue
		}

		handler, ok := commandHandlers[cmd.Action]
		if !ok {
			g.writeError(c, "unsupported action")
			continue
		}
		handler(g, c, &cmd)
	}
}

// commandHandlers is the closed action → handler dispatch table.
var commandHandlers = map[string]func(*Gateway, *Client, *Command){
	ActionJoin:           (*Gateway).handleJoin,
	ActionLeave:          (*Gateway).handleLeave,
	ActionSend:           (*Gateway).handleSend,
	ActionTyping:         (*Gateway).handleTyping,
	ActionMarkRead:       (*Gateway).handleMarkRead,
	ActionSendRequest:    (*Gateway).handleSendRequest,
	ActionRespondRequest: (*Gateway).handleRespondRequest,
}

// handleJoin subscribes the connection to a conversation's room after
// verifying participant access, and marks the conversation read as a side
// effect of opening it.
func (g *Gateway) handleJoin(c *Client, cmd *Command) {
	ctx := context.Background()
	if _, err := g.chat.GetConversation(ctx, c.userID, cmd.ConversationID); err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}

	g.hub.Join(c, cmd.ConversationID)

	receipt, err := g.chat.MarkConversationRead(ctx, c.userID, cmd.ConversationID)
	if err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}
	if len(receipt.MessageIDs) > 0 {
		g.hub.EmitToRoom(cmd.ConversationID, newEvent(EventMessagesRead, receipt))
	}
}

func (g *Gateway) handleLeave(c *Client, cmd *Command) {
	g.hub.Leave(c, cmd.ConversationID)
}

func (g *Gateway) handleSend(c *Client, cmd *Command) {
	delivery, err := g.chat.SendMessage(context.Background(), c.userID, services.SendMessageInput{
		ConversationID: cmd.ConversationID,
		Content:        cmd.Content,
		Type:           cmd.Type,
		Metadata:       cmd.Metadata,
	})
	if err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}

	g.hub.EmitToRoom(cmd.ConversationID, newEvent(EventNewMessage, delivery.Message))
	g.hub.EmitToRoom(cmd.ConversationID, newEvent(EventConversationUpdated, delivery.Conversation))
	g.hub.SetTyping(c, cmd.ConversationID, false)
}

func (g *Gateway) handleTyping(c *Client, cmd *Command) {
	g.hub.SetTyping(c, cmd.ConversationID, cmd.IsTyping)
}

func (g *Gateway) handleMarkRead(c *Client, cmd *Command) {
	ctx := context.Background()

	var receipt *services.ReadReceipt
	var err error
	if len(cmd.MessageIDs) == 0 {
		receipt, err = g.chat.MarkConversationRead(ctx, c.userID, cmd.ConversationID)
	} else {
		receipt, err = g.chat.MarkMessagesRead(ctx, c.userID, cmd.ConversationID, cmd.MessageIDs)
	}
	if err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}
	if len(receipt.MessageIDs) > 0 {
		g.hub.EmitToRoom(cmd.ConversationID, newEvent(EventMessagesRead, receipt))
	}
}

// handleSendRequest pushes the new request straight to the coach's
// connections; no room exists yet for a pair without a conversation.
func (g *Gateway) handleSendRequest(c *Client, cmd *Command) {
	request, err := g.requests.CreateRequest(context.Background(), c.userID, services.CreateRequestInput{
		CoachID:       cmd.CoachID,
		Message:       cmd.Message,
		Reason:        cmd.Reason,
		Urgency:       cmd.Urgency,
		PreferredTime: cmd.PreferredTime,
	})
	if err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}

	event := newEvent(EventNewMessageRequest, request)
	g.hub.EmitToUsers(event, request.CoachID)
	g.writeEvent(c, event)
}

func (g *Gateway) handleRespondRequest(c *Client, cmd *Command) {
	action, ok := services.ParseRequestAction(cmd.RequestAction)
	if !ok {
		g.writeError(c, "invalid request action")
		return
	}

	outcome, err := g.requests.Respond(context.Background(), cmd.RequestID, c.userID, action, cmd.Response)
	if err != nil {
		g.writeError(c, domainErrorMessage(err))
		return
	}

	parties := []int64{outcome.Request.TraineeID, outcome.Request.CoachID}
	g.hub.EmitToUsers(newEvent(EventRequestResponse, outcome), parties...)
	if outcome.Conversation != nil {
		g.hub.EmitToUsers(newEvent(EventConversationCreated, outcome.Conversation), parties...)
	}
}

// announceConnect registers presence; the user's first connection makes
// them visible as online to every conversation counterpart.
func (g *Gateway) announceConnect(c *Client) {
	ctx := context.Background()
	first, err := g.presence.Connect(ctx, c.userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", c.userID).Msg("presence connect")
		return
	}
	if !first {
		return
	}

	counterparts, err := g.chat.ListCounterpartIDs(ctx, c.userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", c.userID).Msg("list counterparts")
		return
	}
	if len(counterparts) == 0 {
		return
	}
	g.hub.EmitToUsers(newEvent(EventPresenceChanged, presencePayload{
		UserID: c.userID,
		Online: true,
	}), counterparts...)
}

// announceDisconnect mirrors announceConnect: only the user's last
// connection going away marks them offline, with a last-seen timestamp.
func (g *Gateway) announceDisconnect(c *Client) {
	ctx := context.Background()
	last, err := g.presence.Disconnect(ctx, c.userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", c.userID).Msg("presence disconnect")
		return
	}
	if !last {
		return
	}

	counterparts, err := g.chat.ListCounterpartIDs(ctx, c.userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", c.userID).Msg("list counterparts")
		return
	}
	if len(counterparts) == 0 {
		return
	}
	lastSeen := services.FormatEventTimestamp(time.Now().UTC())
	g.hub.EmitToUsers(newEvent(EventPresenceChanged, presencePayload{
		UserID:   c.userID,
		Online:   false,
		LastSeen: &lastSeen,
	}), counterparts...)
}

// writeEvent hands the event to the hub, which owns the client's send
// channel. Writing from here directly could race the hub closing an evicted
// client's channel.
func (g *Gateway) writeEvent(c *Client, event *Event) {
	g.hub.EmitToClient(c, event)
}

// writeError reports a failed command to the originating connection only.
func (g *Gateway) writeError(c *Client, message string) {
	g.writeEvent(c, newEvent(EventError, errorPayload{Message: message}))
}

func domainErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "not found"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrConflict):
		return "conflict"
	case errors.Is(err, services.ErrConversationInactive):
		return "conversation is not active"
	case errors.Is(err, services.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid input"
	default:
		return "failed to process command"
	}
}
