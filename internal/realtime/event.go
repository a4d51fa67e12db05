// Package realtime carries committed order changes from the write path to
// connected clients: an in-process hub fans events out to subscribers, an
// optional Redis bridge relays them between instances, and per-connection
// reconcilers merge snapshots with the stream.
package realtime

import "time"

// Event types.
const (
	EventOrderCreated  = "order_created"
	EventStatusChanged = "status_changed"
)

// OrderEvent describes one committed order change. Delivery is best-effort,
// at-most-once per subscriber; anyone who misses events re-synchronizes with
// a fresh snapshot.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Channel     string    `json:"channel"`
	EmployeeID  *uint     `json:"employee_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
