// Package chartjs drives Chart.js instances in connected browsers by
// publishing create, update and release frames through the relay.
package chartjs

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/relay"
)

// Publisher receives encoded frames.
type Publisher interface {
	Publish(evt relay.Event)
}

// Backend keeps the latest spec of every live chart so late clients can be
// brought up to date with Replay.
type Backend struct {
	pub Publisher

	mu   sync.Mutex
	live map[string]*chartbind.Spec
}

func New(pub Publisher) *Backend {
	return &Backend{pub: pub, live: make(map[string]*chartbind.Spec)}
}

type handle struct {
	b      *Backend
	canvas chartbind.Canvas
}

func (h *handle) Release() error {
	h.b.mu.Lock()
	_, ok := h.b.live[h.canvas.ID]
	delete(h.b.live, h.canvas.ID)
	h.b.mu.Unlock()
	if !ok {
		return fmt.Errorf("chartjs: canvas %s already released", h.canvas.ID)
	}
	return h.b.publish(relay.EventRelease, h.canvas.ID, "", nil)
}

func (b *Backend) Create(canvas chartbind.Canvas, spec *chartbind.Spec) (chartbind.Handle, error) {
	if canvas.ID == "" {
		return nil, fmt.Errorf("chartjs: canvas has no id")
	}
	b.mu.Lock()
	if _, exists := b.live[canvas.ID]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("chartjs: canvas %s already has a chart", canvas.ID)
	}
	b.live[canvas.ID] = spec
	b.mu.Unlock()

	if err := b.publish(relay.EventCreate, canvas.ID, "spec", spec); err != nil {
		b.mu.Lock()
		delete(b.live, canvas.ID)
		b.mu.Unlock()
		return nil, err
	}
	return &handle{b: b, canvas: canvas}, nil
}

func (b *Backend) Update(h chartbind.Handle, spec *chartbind.Spec) error {
	hd, ok := h.(*handle)
	if !ok || hd.b != b {
		return fmt.Errorf("chartjs: foreign handle %T", h)
	}
	b.mu.Lock()
	if _, live := b.live[hd.canvas.ID]; !live {
		b.mu.Unlock()
		return fmt.Errorf("chartjs: canvas %s was released", hd.canvas.ID)
	}
	b.live[hd.canvas.ID] = spec
	b.mu.Unlock()
	return b.publish(relay.EventUpdate, hd.canvas.ID, "data", spec.Data)
}

func (b *Backend) publish(typ, nodeID, field string, body any) error {
	evt, err := relay.NewEvent(typ, nodeID, field, body)
	if err != nil {
		return err
	}
	b.pub.Publish(evt)
	slog.Debug("chartjs frame published", "type", typ, "node_id", nodeID, "bytes", len(evt.Payload))
	return nil
}

// Replay returns a create frame for every live chart, ordered by canvas ID.
func (b *Backend) Replay() []relay.Event {
	b.mu.Lock()
	ids := make([]string, 0, len(b.live))
	for id := range b.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	specs := make([]*chartbind.Spec, len(ids))
	for i, id := range ids {
		specs[i] = b.live[id]
	}
	b.mu.Unlock()

	out := make([]relay.Event, 0, len(ids))
	for i, id := range ids {
		evt, err := relay.NewEvent(relay.EventCreate, id, "spec", specs[i])
		if err != nil {
			slog.Warn("chartjs replay encode failed", "node_id", id, "error", err)
			continue
		}
		out = append(out, evt)
	}
	return out
}
