package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const bridgeChannel = "tandir:order-events"

type bridgePayload struct {
	Instance string     `json:"instance"`
	Event    OrderEvent `json:"event"`
}

// Bridge relays order events between server instances over a Redis pub/sub
// channel so that clients connected to any instance see the same stream.
// Like the hub itself it is fire-and-forget: a relay miss is recovered by the
// client's next snapshot.
type Bridge struct {
	rdb      *redis.Client
	hub      *Hub
	instance string
	cancel   context.CancelFunc
}

// NewBridge connects to Redis and starts relaying foreign events into hub.
func NewBridge(redisURL string, hub *Hub) (*Bridge, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		rdb:      rdb,
		hub:      hub,
		instance: uuid.NewString(),
		cancel:   cancel,
	}
	go b.relay(ctx)
	return b, nil
}

// Publish forwards a locally committed event to the other instances.
func (b *Bridge) Publish(ev OrderEvent) {
	payload, err := json.Marshal(bridgePayload{Instance: b.instance, Event: ev})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(context.Background(), bridgeChannel, payload).Err(); err != nil {
		log.Printf("[Bridge] publish failed: %v", err)
	}
}

func (b *Bridge) relay(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, bridgeChannel)
	defer sub.Close()

	for msg := range sub.Channel() {
		var payload bridgePayload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("[Bridge] bad payload: %v", err)
			continue
		}
		if payload.Instance == b.instance {
			continue
		}
		b.hub.Publish(payload.Event)
	}
}

// Close stops the relay and releases the Redis connection.
func (b *Bridge) Close() error {
	b.cancel()
	return b.rdb.Close()
}
