package chatws

import (
	"encoding/json"
	"sort"

	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

// Hub owns every piece of shared connection state: the per-user client
// sets, the per-conversation rooms and the typing sets. All of it is
// mutated only inside Run's goroutine; the rest of the gateway talks to the
// hub through channels, which is what keeps join/leave/typing updates free
// of interleaving within one process.
type Hub struct {
	clients map[int64]map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}
	typing  map[int64]map[int64]struct{}

	register   chan *Client
	unregister chan *Client
	joins      chan roomChange
	leaves     chan roomChange
	typingCh   chan typingChange
	deliveries chan *delivery
	directs    chan directDelivery
}

// directDelivery targets a single connection. The hub checks the client is
// still registered before writing, so a send can never race an eviction.
type directDelivery struct {
	client *Client
	event  *Event
}

type roomChange struct {
	client         *Client
	conversationID int64
}

type typingChange struct {
	client         *Client
	conversationID int64
	isTyping       bool
}

// delivery targets an event at a room, a set of users, or both. An excluded
// client never receives the event on that delivery.
type delivery struct {
	event   *Event
	room    int64
	userIDs []int64
	exclude *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		rooms:      make(map[int64]map[*Client]struct{}),
		typing:     make(map[int64]map[int64]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joins:      make(chan roomChange),
		leaves:     make(chan roomChange),
		typingCh:   make(chan typingChange),
		deliveries: make(chan *delivery, 64),
		directs:    make(chan directDelivery, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case change := <-h.joins:
			h.joinRoom(change)
		case change := <-h.leaves:
			h.leaveRoom(change)
		case change := <-h.typingCh:
			h.setTyping(change)
		case d := <-h.deliveries:
			h.deliver(d)
		case d := <-h.directs:
			h.deliverDirect(d)
		}
	}
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

func (h *Hub) Join(client *Client, conversationID int64) {
	h.joins <- roomChange{client: client, conversationID: conversationID}
}

func (h *Hub) Leave(client *Client, conversationID int64) {
	h.leaves <- roomChange{client: client, conversationID: conversationID}
}

func (h *Hub) SetTyping(client *Client, conversationID int64, isTyping bool) {
	h.typingCh <- typingChange{client: client, conversationID: conversationID, isTyping: isTyping}
}

// EmitToRoom fans an event out to every connection subscribed to the
// conversation's room.
func (h *Hub) EmitToRoom(conversationID int64, event *Event) {
	h.deliveries <- &delivery{event: event, room: conversationID}
}

// EmitToUsers fans an event out to every connection of the listed users,
// whether or not they joined any room.
func (h *Hub) EmitToUsers(event *Event, userIDs ...int64) {
	h.deliveries <- &delivery{event: event, userIDs: userIDs}
}

// EmitToClient delivers an event to one specific connection. An already
// evicted client is silently skipped.
func (h *Hub) EmitToClient(client *Client, event *Event) {
	h.directs <- directDelivery{client: client, event: event}
}

func (h *Hub) addClient(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	set, ok := h.clients[client.userID]
	if ok {
		if _, exists := set[client]; exists {
			delete(set, client)
			close(client.send)
		}
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}

	for conversationID := range client.rooms {
		h.leaveRoom(roomChange{client: client, conversationID: conversationID})
	}
}

func (h *Hub) joinRoom(change roomChange) {
	room, ok := h.rooms[change.conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[change.conversationID] = room
	}
	room[change.client] = struct{}{}
	change.client.rooms[change.conversationID] = struct{}{}
}

// leaveRoom drops the client from the room and, when that was the user's
// last connection in it, withdraws their typing indicator.
func (h *Hub) leaveRoom(change roomChange) {
	room, ok := h.rooms[change.conversationID]
	if !ok {
		return
	}
	delete(room, change.client)
	delete(change.client.rooms, change.conversationID)
	if len(room) == 0 {
		delete(h.rooms, change.conversationID)
	}

	if h.userStillInRoom(change.conversationID, change.client.userID) {
		return
	}
	if typers, ok := h.typing[change.conversationID]; ok {
		if _, typed := typers[change.client.userID]; typed {
			delete(typers, change.client.userID)
			if len(typers) == 0 {
				delete(h.typing, change.conversationID)
			}
			h.deliver(&delivery{
				event: newEvent(EventTypingStatus, typingPayload{
					ConversationID: change.conversationID,
					TypingUserIDs:  h.typingUserIDs(change.conversationID),
				}),
				room: change.conversationID,
			})
		}
	}
}

func (h *Hub) setTyping(change typingChange) {
	typers, ok := h.typing[change.conversationID]
	if change.isTyping {
		if !ok {
			typers = make(map[int64]struct{})
			h.typing[change.conversationID] = typers
		}
		typers[change.client.userID] = struct{}{}
	} else {
		if !ok {
			return
		}
		if _, typed := typers[change.client.userID]; !typed {
			return
		}
		delete(typers, change.client.userID)
		if len(typers) == 0 {
			delete(h.typing, change.conversationID)
		}
	}

	h.deliver(&delivery{
		event: newEvent(EventTypingStatus, typingPayload{
			ConversationID: change.conversationID,
			TypingUserIDs:  h.typingUserIDs(change.conversationID),
		}),
		room: change.conversationID,
	})
}

func (h *Hub) typingUserIDs(conversationID int64) []int64 {
	ids := make([]int64, 0)
	for userID := range h.typing[conversationID] {
		ids = append(ids, userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *Hub) userStillInRoom(conversationID int64, userID int64) bool {
	for client := range h.rooms[conversationID] {
		if client.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) deliver(d *delivery) {
	payload, err := json.Marshal(d.event)
	if err != nil {
		logger.Error().Err(err).Str("event", d.event.Type).Msg("encode gateway event")
		return
	}

	sent := make(map[*Client]struct{})
	if d.room > 0 {
		for client := range h.rooms[d.room] {
			if client == d.exclude {
				continue
			}
			h.sendToClient(client, payload)
			sent[client] = struct{}{}
		}
	}
	for _, userID := range d.userIDs {
		for client := range h.clients[userID] {
			if client == d.exclude {
				continue
			}
			if _, already := sent[client]; already {
				continue
			}
			h.sendToClient(client, payload)
			sent[client] = struct{}{}
		}
	}
}

func (h *Hub) deliverDirect(d directDelivery) {
	set, ok := h.clients[d.client.userID]
	if !ok {
		return
	}
	if _, registered := set[d.client]; !registered {
		return
	}

	payload, err := json.Marshal(d.event)
	if err != nil {
		logger.Error().Err(err).Str("event", d.event.Type).Msg("encode gateway event")
		return
	}
	h.sendToClient(d.client, payload)
}

// sendToClient never blocks the hub: a client that cannot keep up is
// dropped rather than stalling delivery for the room.
func (h *Hub) sendToClient(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.removeClient(client)
	}
}
