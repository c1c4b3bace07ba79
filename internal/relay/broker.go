// Package relay fans chart lifecycle events out to connected browsers over
// WebSocket and SSE.
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

const (
	EventCreate  = "create"
	EventUpdate  = "update"
	EventRelease = "release"
)

// Event is one chart lifecycle message. Payload is the full JSON frame sent to clients.
type Event struct {
	Type    string
	NodeID  string
	Payload []byte
}

// NewEvent encodes a wire frame {"type","node_id",field:body}. body may be nil.
func NewEvent(typ, nodeID, field string, body any) (Event, error) {
	frame := map[string]any{"type": typ, "node_id": nodeID}
	if field != "" && body != nil {
		frame[field] = body
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return Event{}, fmt.Errorf("relay: encode %s event for %s: %w", typ, nodeID, err)
	}
	return Event{Type: typ, NodeID: nodeID, Payload: data}, nil
}

// Broker fans out events to every subscribed client.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The returned channel is buffered; slow
// consumers have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a client was full.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// Close disconnects every subscriber.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
