package realtime

import (
	"encoding/json"
	"log"
)

// ConnGauge is satisfied by prometheus.Gauge; nil disables counting.
type ConnGauge interface {
	Inc()
	Dec()
}

type broadcast struct {
	sender *Client
	event  Event
	// fromBridge marks events rebroadcast from another instance; they
	// are delivered locally but never published back to Redis.
	fromBridge bool
}

// Hub tracks connected clients and fans events out to them. The sender
// of an event never receives it back. Clients that joined channel
// topics only receive events for those channels; clients with no joins
// receive everything.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan broadcast
	done       chan struct{}

	gauge  ConnGauge
	bridge *Bridge
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan broadcast, 64),
		done:       make(chan struct{}),
	}
}

// SetGauge wires a connection gauge. Call before Run.
func (h *Hub) SetGauge(g ConnGauge) { h.gauge = g }

// SetBridge wires a cross-instance bridge. Call before Run.
func (h *Hub) SetBridge(b *Bridge) { h.bridge = b }

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.gauge != nil {
				h.gauge.Inc()
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				if h.gauge != nil {
					h.gauge.Dec()
				}
			}
		case b := <-h.events:
			h.deliver(b.sender, b.event)
			if !b.fromBridge && h.bridge != nil {
				h.bridge.Publish(b.event)
			}
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues an event for delivery to every client except the
// sender. A nil sender delivers to everyone; that is the path used by
// server-side mutations. The event is also published to the bridge
// when one is wired.
func (h *Hub) Broadcast(sender *Client, event Event) {
	select {
	case h.events <- broadcast{sender: sender, event: event}:
	case <-h.done:
	}
}

// rebroadcast delivers an event received from another instance to
// local clients without publishing it back to the bridge.
func (h *Hub) rebroadcast(event Event) {
	select {
	case h.events <- broadcast{event: event, fromBridge: true}:
	case <-h.done:
	}
}

func (h *Hub) deliver(sender *Client, event Event) {
	payload, err := json.Marshal(event.frame())
	if err != nil {
		log.Printf("realtime: marshal event: %v", err)
		return
	}
	for c := range h.clients {
		if c == sender {
			continue
		}
		if !c.wants(event.ChannelID) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop the connection rather than block
			// the hub.
			delete(h.clients, c)
			close(c.send)
			if h.gauge != nil {
				h.gauge.Dec()
			}
		}
	}
}
