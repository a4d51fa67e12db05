package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/example/tandir/internal/models"
)

// Phase tracks whether the reconciler has merged its first snapshot. The
// transition Bootstrapping -> Live happens exactly once; changes detected
// before it never reach the caller, so startup catch-up is silent.
type Phase int

const (
	PhaseBootstrapping Phase = iota
	PhaseLive
)

// OrderView is one order as the live view knows it.
type OrderView struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Channel     string    `json:"channel"`
	EmployeeID  *uint     `json:"employee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Change is a detected difference between an order's last-known state and its
// new one.
type Change struct {
	OrderID     uint
	OrderNumber string
	Prev        string
	Curr        string
	EmployeeID  *uint
	Created     bool
}

// Reconciler merges a snapshot with the live event stream into one
// deduplicated view, keyed by order id. It remembers the last-known status of
// every order seen this session, which is how transitions are detected even
// across snapshot replacements. It is safe for one reader and one writer; all
// methods lock.
type Reconciler struct {
	mu         sync.Mutex
	phase      Phase
	orders     map[uint]*OrderView
	lastStatus map[uint]string
	lastEvent  map[uint]time.Time
}

// NewReconciler constructs a Reconciler in the Bootstrapping phase.
func NewReconciler() *Reconciler {
	return &Reconciler{
		orders:     make(map[uint]*OrderView),
		lastStatus: make(map[uint]string),
		lastEvent:  make(map[uint]time.Time),
	}
}

// Phase returns the current phase.
func (r *Reconciler) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// MergeSnapshot replaces the current order view with a fresh snapshot and
// returns the changes it implies. The very first snapshot flips the phase to
// Live and returns nothing: every order in it is catch-up, not news. Later
// snapshots (resynchronization after a disconnect) do report orders that are
// new or transitioned since last seen.
func (r *Reconciler) MergeSnapshot(orders []models.Order) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[uint]*OrderView, len(orders))
	var changes []Change
	for i := range orders {
		o := &orders[i]
		fresh[o.ID] = &OrderView{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			Total:       o.Total,
			Channel:     o.Channel,
			EmployeeID:  o.EmployeeID,
			CreatedAt:   o.CreatedAt,
		}

		prev, seen := r.lastStatus[o.ID]
		switch {
		case !seen:
			changes = append(changes, Change{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Curr:        o.Status,
				EmployeeID:  o.EmployeeID,
				Created:     true,
			})
		case prev != o.Status:
			changes = append(changes, Change{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				Prev:        prev,
				Curr:        o.Status,
				EmployeeID:  o.EmployeeID,
			})
		}
		r.lastStatus[o.ID] = o.Status
		// The row's update time becomes the event floor for this order: a
		// delayed event from before the snapshot must not win over it.
		if o.UpdatedAt.After(r.lastEvent[o.ID]) {
			r.lastEvent[o.ID] = o.UpdatedAt
		}
	}

	r.orders = fresh

	if r.phase == PhaseBootstrapping {
		r.phase = PhaseLive
		return nil
	}
	return changes
}

// ApplyEvent folds one pushed event into the view and returns the change it
// implies, if any. Events are deduplicated by order id; an event at or below
// the order's last-applied timestamp (the previous event, or the snapshot
// row's update time) is dropped, which resolves out-of-order delivery by
// preferring the later state. Events arriving before the first snapshot
// update state but report nothing.
func (r *Reconciler) ApplyEvent(ev OrderEvent) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.lastEvent[ev.OrderID]; ok && !ev.Timestamp.After(last) {
		return nil
	}
	r.lastEvent[ev.OrderID] = ev.Timestamp

	prev, seen := r.lastStatus[ev.OrderID]
	view, exists := r.orders[ev.OrderID]
	if !exists {
		view = &OrderView{OrderID: ev.OrderID, CreatedAt: ev.Timestamp}
		r.orders[ev.OrderID] = view
	}
	view.OrderNumber = ev.OrderNumber
	view.Status = ev.Status
	view.Total = ev.Total
	view.Channel = ev.Channel
	view.EmployeeID = ev.EmployeeID

	var change *Change
	switch {
	case !seen:
		change = &Change{
			OrderID:     ev.OrderID,
			OrderNumber: ev.OrderNumber,
			Curr:        ev.Status,
			EmployeeID:  ev.EmployeeID,
			Created:     true,
		}
	case prev != ev.Status:
		change = &Change{
			OrderID:     ev.OrderID,
			OrderNumber: ev.OrderNumber,
			Prev:        prev,
			Curr:        ev.Status,
			EmployeeID:  ev.EmployeeID,
		}
	}
	r.lastStatus[ev.OrderID] = ev.Status

	if change == nil || r.phase == PhaseBootstrapping {
		return nil
	}
	return []Change{*change}
}

// Orders returns the merged view, newest first.
func (r *Reconciler) Orders() []OrderView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]OrderView, 0, len(r.orders))
	for _, v := range r.orders {
		views = append(views, *v)
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].OrderID > views[j].OrderID
	})
	return views
}
