package chatws

import (
	websocket "github.com/gofiber/contrib/websocket"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

// Client is one live connection. A user may hold several at once (one per
// device); presence only changes on the first and last of them.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	role   models.Role
	send   chan []byte

	// rooms is owned by the hub goroutine; the read pump never touches it.
	rooms map[int64]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, userID int64, role models.Role) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, 32),
		rooms:  make(map[int64]struct{}),
	}
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
