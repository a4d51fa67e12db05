package realtime

import (
	"sync"
	"time"

	"github.com/example/tandir/internal/lifecycle"
)

// DefaultNoticeTTL is how long a notice stays on screen.
const DefaultNoticeTTL = 1500 * time.Millisecond

// Notice kinds.
const (
	NoticeNewOrder     = "new_order"
	NoticeStatusChange = "status_change"
)

// Notice is a transient, auto-expiring user notification about one order.
type Notice struct {
	Kind        string    `json:"kind"`
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	EmployeeID  *uint     `json:"employee_id,omitempty"`
	Employee    string    `json:"employee,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ResolveStaff maps an employee id to a display name, "" when unknown.
type ResolveStaff func(id uint) string

// Notifier turns reconciler changes into notices. New-order changes always
// produce a notice; of the status-transition changes in one cycle only the
// first produces one, the rest are suppressed for that cycle. Suppression of
// the initial snapshot happens upstream: the reconciler reports no changes
// for its bootstrapping batch, so nothing reaches the notifier.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	resolve ResolveStaff
	notices []Notice
}

// NewNotifier constructs a Notifier. resolve may be nil.
func NewNotifier(ttl time.Duration, resolve ResolveStaff) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notifier{ttl: ttl, resolve: resolve}
}

// Collect processes one cycle of changes and returns the notices it emitted.
func (n *Notifier) Collect(changes []Change, now time.Time) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	var emitted []Notice
	transitionShown := false
	for _, change := range changes {
		switch {
		case change.Created:
			emitted = append(emitted, n.notice(NoticeNewOrder, change, now))
		case !transitionShown && change.Curr != lifecycle.StatusPending && change.Prev != change.Curr:
			emitted = append(emitted, n.notice(NoticeStatusChange, change, now))
			transitionShown = true
		}
	}

	n.notices = append(n.notices, emitted...)
	return emitted
}

// Active returns the not-yet-expired notices and prunes the rest.
func (n *Notifier) Active(now time.Time) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	kept := n.notices[:0]
	for _, notice := range n.notices {
		if notice.ExpiresAt.After(now) {
			kept = append(kept, notice)
		}
	}
	n.notices = kept

	out := make([]Notice, len(kept))
	copy(out, kept)
	return out
}

func (n *Notifier) notice(kind string, change Change, now time.Time) Notice {
	notice := Notice{
		Kind:        kind,
		OrderID:     change.OrderID,
		OrderNumber: change.OrderNumber,
		Status:      change.Curr,
		EmployeeID:  change.EmployeeID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(n.ttl),
	}
	if n.resolve != nil && change.EmployeeID != nil {
		notice.Employee = n.resolve(*change.EmployeeID)
	}
	return notice
}
