package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/models"
	"github.com/example/tandir/internal/realtime"
	"github.com/example/tandir/internal/services"
)

// LiveHandler serves the order websocket. Each connection gets its own
// reconciler and notifier: the server pushes a snapshot on connect, merges
// hub events into the connection's view, and ships the view plus any notices
// after every cycle. A client that reconnects simply gets a new connection
// and a fresh snapshot; nothing is replayed.
type LiveHandler struct {
	db     *gorm.DB
	orders *services.OrderService
	hub    *realtime.Hub
	limit  int
}

// NewLiveHandler constructs LiveHandler. limit bounds the snapshot size.
func NewLiveHandler(db *gorm.DB, orders *services.OrderService, hub *realtime.Hub, limit int) *LiveHandler {
	return &LiveHandler{db: db, orders: orders, hub: hub, limit: limit}
}

// Upgrade guards the route so only websocket requests reach Serve.
func (h *LiveHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

type liveFrame struct {
	Type    string               `json:"type"`
	Orders  []realtime.OrderView `json:"orders,omitempty"`
	Notices []realtime.Notice    `json:"notices,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type clientMessage struct {
	Type string `json:"type"`
}

// Serve runs one websocket connection until the client goes away.
func (h *LiveHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		rec := realtime.NewReconciler()
		not := realtime.NewNotifier(realtime.DefaultNoticeTTL, h.resolveStaff)

		// Subscribe before fetching the snapshot so an order committed while
		// the query runs lands in the channel buffer instead of being lost;
		// the reconciler drops whatever the snapshot already covered.
		events, unsubscribe := h.hub.Subscribe()
		defer unsubscribe()

		if err := h.sendSnapshot(conn, rec, not); err != nil {
			log.Printf("[Live] initial snapshot failed: %v", err)
			return
		}

		syncRequests := make(chan struct{}, 1)
		done := make(chan struct{})
		go h.readLoop(conn, syncRequests, done)

		for {
			select {
			case <-done:
				return
			case <-syncRequests:
				if err := h.sendSnapshot(conn, rec, not); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				changes := rec.ApplyEvent(ev)
				if err := h.sendView(conn, rec, not.Collect(changes, time.Now())); err != nil {
					return
				}
			}
		}
	})
}

// readLoop consumes client messages. A {"type":"sync"} message forces a fresh
// snapshot that replaces the connection's stale state.
func (h *LiveHandler) readLoop(conn *websocket.Conn, syncRequests chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Type == "sync" {
			select {
			case syncRequests <- struct{}{}:
			default:
			}
		}
	}
}

func (h *LiveHandler) sendSnapshot(conn *websocket.Conn, rec *realtime.Reconciler, not *realtime.Notifier) error {
	orders, err := h.orders.Recent(h.limit)
	if err != nil {
		return conn.WriteJSON(liveFrame{Type: "error", Error: "snapshot unavailable"})
	}

	changes := rec.MergeSnapshot(orders)
	notices := not.Collect(changes, time.Now())

	if err := conn.WriteJSON(liveFrame{Type: "snapshot", Orders: rec.Orders()}); err != nil {
		return err
	}
	if len(notices) > 0 {
		return conn.WriteJSON(liveFrame{Type: "notices", Notices: notices})
	}
	return nil
}

func (h *LiveHandler) sendView(conn *websocket.Conn, rec *realtime.Reconciler, notices []realtime.Notice) error {
	if err := conn.WriteJSON(liveFrame{Type: "orders", Orders: rec.Orders()}); err != nil {
		return err
	}
	if len(notices) > 0 {
		return conn.WriteJSON(liveFrame{Type: "notices", Notices: notices})
	}
	return nil
}

func (h *LiveHandler) resolveStaff(id uint) string {
	var user models.User
	if err := h.db.Select("full_name", "username").First(&user, "id = ?", id).Error; err != nil {
		return ""
	}
	if user.FullName != "" {
		return user.FullName
	}
	return user.Username
}
