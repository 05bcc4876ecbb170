package websocket

import (
	"context"
	"net/http"

	"procurement/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Audience selects the connected principals a message is for.
// An approver audience with Level 0 reaches approvers of every level.
type Audience struct {
	Role  model.Role
	ID    uuid.UUID
	Level int
}

// Matches reports whether p belongs to the audience.
func (a Audience) Matches(p model.Principal) bool {
	if a.ID != uuid.Nil {
		return p.ID == a.ID
	}
	if p.Role != a.Role {
		return false
	}
	switch a.Role {
	case model.RoleApprover:
		return a.Level == 0 || p.Level == a.Level
	case model.RoleRequester, model.RoleFinance:
		return true
	default:
		return false
	}
}

type envelope struct {
	audience Audience
	data     []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	principal model.Principal
}

// Hub maintains the set of active clients and routes messages to their audience.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run dispatches until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.Debug("websocket client connected",
				zap.String("principal_id", client.principal.ID.String()),
				zap.String("role", client.principal.Role.String()))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("websocket client disconnected", zap.String("principal_id", client.principal.ID.String()))
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if !msg.audience.Matches(client.principal) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Publish queues data for the audience. It returns ctx.Err() if the queue stays full.
func (h *Hub) Publish(ctx context.Context, audience Audience, data []byte) error {
	select {
	case h.broadcast <- envelope{audience: audience, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		n := len(c.send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// PrincipalParser validates a token.
type PrincipalParser interface {
	ParsePrincipal(token string) (model.Principal, error)
}

// ServeWs authenticates the token query parameter and attaches the connection to the hub.
func ServeWs(hub *Hub, c *gin.Context, auth PrincipalParser) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	principal, err := auth.ParsePrincipal(tokenString)
	if err != nil {
		hub.log.Info("websocket connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), principal: principal}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
