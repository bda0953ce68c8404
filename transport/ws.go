// Package transport adapts the socket event surface and the REST endpoints
// onto the realtime core. It owns no state of its own beyond live sockets.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"campushub/contract"
	"campushub/domain"
	"campushub/domain/event"
	"campushub/realtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errSendBufferFull = fmt.Errorf("send buffer full, event dropped")
var errConnClosed = fmt.Errorf("connection closed")

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsConn adapts one websocket to contract.Connection. Deliver never blocks:
// a full send buffer drops the event rather than stalling dispatch.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn, sendBuffer int) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Deliver(e event.Outbound) error {
	frame, err := json.Marshal(envelope{Event: e.Name(), Data: e})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// writePump is the single writer on the underlying socket.
func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// WSHandler terminates websocket connections and routes inbound envelopes
// into the lifecycle controller.
type WSHandler struct {
	log        *slog.Logger
	controller *realtime.Controller
	sendBuffer int
}

func NewWSHandler(log *slog.Logger, controller *realtime.Controller, sendBuffer int) *WSHandler {
	return &WSHandler{log: log, controller: controller, sendBuffer: sendBuffer}
}

func (h *WSHandler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.serve))
}

// serve runs one connection from handshake to teardown. The handshake
// carries the credential; a failed authentication produces one error event
// and terminates before any state is created.
func (h *WSHandler) serve(c *websocket.Conn) {
	ctx := context.Background()
	wc := newWSConn(c, h.sendBuffer)
	go wc.writePump()

	identity, err := h.controller.Connect(ctx, c.Query("token"), wc)
	if err != nil {
		h.log.Info("connection refused", "err", err)
		frame, _ := json.Marshal(envelope{Event: "error", Data: event.Error{Message: "authentication failed"}})
		_ = c.WriteMessage(websocket.TextMessage, frame)
		_ = wc.Close()
		return
	}

	defer func() {
		h.controller.Disconnect(ctx, identity.ID, wc.ID())
		_ = wc.Close()
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(ctx, identity.ID, wc, data)
	}
}

// handleFrame decodes, validates, and routes one inbound frame. Every
// rejected frame answers with exactly one error event to this connection.
func (h *WSHandler) handleFrame(ctx context.Context, userID string, wc *wsConn, data []byte) {
	// Any inbound frame counts as activity, not only pings.
	h.controller.Touch(userID, wc.ID())

	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reject(wc, err)
		return
	}

	payload, err := event.DecodeInbound(env)
	if err != nil {
		h.reject(wc, err)
		return
	}

	if err := h.route(ctx, userID, wc, env.Event, payload); err != nil {
		h.reject(wc, err)
	}
}

func (h *WSHandler) route(ctx context.Context, userID string, wc *wsConn, name string, payload any) error {
	switch p := payload.(type) {
	case nil: // ping
		h.controller.Ping(userID, wc)
		return nil
	case *event.StatusUpdate:
		return h.controller.UpdateStatus(userID, domain.Status(p.Status))
	case *event.JoinRoom:
		return h.controller.JoinRoom(ctx, userID, wc, p.RoomID)
	case *event.LeaveRoom:
		return h.controller.LeaveRoom(userID, wc, p.RoomID)
	case *event.GetOnlineUsers:
		return h.controller.OnlineUsers(userID, wc, p.RoomID)
	case *event.Typing:
		if name == event.InTypingStart {
			return h.controller.TypingStart(userID, *p)
		}
		return h.controller.TypingStop(userID, *p)
	case *event.SendMessage:
		return h.controller.SendMessage(ctx, userID, *p)
	case *event.MarkRead:
		return h.controller.MarkRead(ctx, userID, *p)
	case *event.MarkDelivered:
		return h.controller.MarkDelivered(ctx, userID, *p)
	}
	return fmt.Errorf("unhandled event %q", name)
}

func (h *WSHandler) reject(wc *wsConn, err error) {
	if derr := wc.Deliver(event.Error{Message: err.Error()}); derr != nil {
		h.log.Debug("error event not delivered", "err", derr)
	}
}

var _ contract.Connection = (*wsConn)(nil)
