// Package lifecycle defines the order state machine and the canonical status
// buckets shared by reporting and the live view. It is pure: no storage, no
// clock.
package lifecycle

import "github.com/example/tandir/internal/models"

// Lifecycle statuses. Which terminal status ends the path depends on the
// order's channel.
const (
	StatusPending        = "pending"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusServed         = "served"
	StatusCompleted      = "completed"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

// Canonical reporting buckets.
const (
	BucketPending   = "pending"
	BucketPreparing = "preparing"
	BucketReady     = "ready"
	BucketServed    = "served"
	BucketCancelled = "cancelled"
)

// Buckets lists the canonical buckets in display order.
var Buckets = []string{BucketPending, BucketPreparing, BucketReady, BucketServed, BucketCancelled}

// paths maps each channel to its status sequence, in order.
var paths = map[string][]string{
	models.ChannelDineIn:   {StatusPending, StatusPreparing, StatusReady, StatusServed},
	models.ChannelTakeaway: {StatusPending, StatusPreparing, StatusReady, StatusCompleted},
	models.ChannelDelivery: {StatusPending, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered},
	models.ChannelOnline:   {StatusPending, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered},
}

var terminal = map[string]bool{
	StatusServed:    true,
	StatusCompleted: true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// ValidChannel reports whether ch is a known order channel.
func ValidChannel(ch string) bool {
	_, ok := paths[ch]
	return ok
}

// IsTerminal reports whether status ends the lifecycle. Terminal orders are
// immutable except for payment-status corrections.
func IsTerminal(status string) bool {
	return terminal[status]
}

// NextStatus returns the immediate successor of from on the channel's path.
// The second result is false when from is terminal, unknown, or the channel
// is invalid.
func NextStatus(channel, from string) (string, bool) {
	path, ok := paths[channel]
	if !ok {
		return "", false
	}
	for i, s := range path {
		if s == from && i+1 < len(path) {
			return path[i+1], true
		}
	}
	return "", false
}

// CanTransition reports whether an order on the given channel may move from
// one status to another. Valid moves are the single next step on the
// channel's path, or cancellation from any non-terminal state.
func CanTransition(channel, from, to string) bool {
	if to == StatusCancelled {
		return !IsTerminal(from)
	}
	next, ok := NextStatus(channel, from)
	return ok && next == to
}

// Bucket coalesces a raw status into one of the five canonical buckets. The
// served bucket absorbs every fulfilled terminal label so that channel
// specific endings never split the counts. Unknown or empty statuses count
// as pending.
func Bucket(status string) string {
	switch status {
	case StatusPreparing:
		return BucketPreparing
	case StatusReady, StatusOutForDelivery:
		return BucketReady
	case StatusServed, StatusCompleted, StatusDelivered, "paid":
		return BucketServed
	case StatusCancelled:
		return BucketCancelled
	default:
		return BucketPending
	}
}

// Fulfilled reports whether the status lands in the served bucket, i.e. the
// order actually produced revenue.
func Fulfilled(status string) bool {
	return Bucket(status) == BucketServed
}
