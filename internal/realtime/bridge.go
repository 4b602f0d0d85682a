package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"huddle/api/internal/util"

	"github.com/redis/go-redis/v9"
)

const (
	bridgeChannel  = "huddle:realtime"
	publishTimeout = 5 * time.Second
)

type bridgeMsg struct {
	Instance  string `json:"instance"`
	Kind      Kind   `json:"kind"`
	ChannelID string `json:"channelId,omitempty"`
}

// Bridge relays hub events across instances through Redis pub/sub.
// Locally originated events are published; events published by other
// instances are rebroadcast to local clients. The instance id filters
// out our own publishes.
type Bridge struct {
	client   *redis.Client
	instance string
	cancel   context.CancelFunc
}

func NewBridge(client *redis.Client) *Bridge {
	return &Bridge{
		client:   client,
		instance: util.NewID("node"),
	}
}

// Publish sends a locally originated event to the shared channel.
func (b *Bridge) Publish(event Event) {
	payload, err := json.Marshal(bridgeMsg{
		Instance:  b.instance,
		Kind:      event.Kind,
		ChannelID: event.ChannelID,
	})
	if err != nil {
		log.Printf("realtime bridge: marshal: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, bridgeChannel, payload).Err(); err != nil {
		log.Printf("realtime bridge: publish: %v", err)
	}
}

// Listen subscribes to the shared channel and rebroadcasts remote
// events into the hub. Runs until Close is called.
func (b *Bridge) Listen(hub *Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	sub := b.client.Subscribe(ctx, bridgeChannel)

	go func() {
		defer sub.Close()
		for msg := range sub.Channel() {
			var m bridgeMsg
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Printf("realtime bridge: unmarshal: %v", err)
				continue
			}
			if m.Instance == b.instance {
				continue
			}
			hub.rebroadcast(Event{Kind: m.Kind, ChannelID: m.ChannelID})
		}
	}()
}

// Close stops the subscription. The shared Redis client is owned by
// the session store and is not closed here.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
