// Package chartbind binds serialized chart payloads on host nodes to live
// rendering-backend instances: parse, build, create, update in place, release.
package chartbind

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Canvas is the drawing surface a node exposes to the backend.
type Canvas struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Node is the host element a hook binds to.
type Node interface {
	ID() string
	// Dataset returns the value of a data attribute.
	Dataset(key string) (string, bool)
	Canvas() Canvas
}

// Handle is a live chart owned by exactly one bound node.
type Handle interface {
	Release() error
}

// Backend draws charts. Create and Update receive copies of the spec.
type Backend interface {
	Create(canvas Canvas, spec *Spec) (Handle, error)
	Update(h Handle, spec *Spec) error
}

type instance struct {
	spec   *Spec
	handle Handle
	canvas Canvas
}

// Hook runs the mount/update/unmount lifecycle for every node bound to it.
type Hook struct {
	name    string
	builder Builder
	backend Backend

	mu        sync.Mutex
	instances map[string]*instance
}

func NewHook(name string, builder Builder, backend Backend) *Hook {
	return &Hook{
		name:      name,
		builder:   builder,
		backend:   backend,
		instances: make(map[string]*instance),
	}
}

func (h *Hook) Name() string { return h.name }

// Attribute is the data attribute this hook reads payloads from.
func (h *Hook) Attribute() string { return h.builder.Attribute() }

func (h *Hook) build(n Node) (*Spec, error) {
	attr := h.builder.Attribute()
	raw, ok := n.Dataset(attr)
	if !ok {
		return nil, newError(CodeMalformedPayload, fmt.Sprintf("node %s has no data-%s attribute", n.ID(), attr), nil)
	}
	spec, err := h.builder.Build([]byte(raw))
	if err != nil {
		return nil, newError(CodeMalformedPayload, fmt.Sprintf("node %s", n.ID()), err)
	}
	return spec, nil
}

// Mount parses the node's payload and creates its chart. On failure nothing is
// retained and the node stays unbound.
func (h *Hook) Mount(n Node) error {
	id := n.ID()
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.instances[id]; ok {
		return newError(CodeAlreadyBound, fmt.Sprintf("node %s is already bound to %s", id, h.name), nil)
	}

	spec, err := h.build(n)
	if err != nil {
		slog.Warn("chart mount rejected payload", "hook", h.name, "node_id", id, "error", err)
		return err
	}

	canvas := n.Canvas()
	handle, err := h.backend.Create(canvas, spec.Clone())
	if err != nil {
		slog.Error("chart backend create failed", "hook", h.name, "node_id", id, "error", err)
		return newError(CodeRenderBackend, fmt.Sprintf("create chart for node %s", id), err)
	}

	h.instances[id] = &instance{spec: spec, handle: handle, canvas: canvas}
	slog.Debug("chart mounted", "hook", h.name, "node_id", id, "datasets", len(spec.Data.Datasets))
	return nil
}

// Update re-parses the node's payload and swaps labels and dataset data on the
// existing chart. On failure the previous chart is left as it was.
func (h *Hook) Update(n Node) error {
	id := n.ID()
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.instances[id]
	if !ok {
		return newError(CodeNotBound, fmt.Sprintf("node %s is not bound to %s", id, h.name), nil)
	}

	next, err := h.build(n)
	if err != nil {
		slog.Warn("chart update rejected payload", "hook", h.name, "node_id", id, "error", err)
		return err
	}

	prev := inst.spec.Data.Clone()
	replaceData(&inst.spec.Data, next.Data)
	if err := h.backend.Update(inst.handle, inst.spec.Clone()); err != nil {
		inst.spec.Data = prev
		slog.Error("chart backend update failed", "hook", h.name, "node_id", id, "error", err)
		return newError(CodeRenderBackend, fmt.Sprintf("update chart for node %s", id), err)
	}
	slog.Debug("chart updated", "hook", h.name, "node_id", id, "labels", len(inst.spec.Data.Labels))
	return nil
}

// replaceData swaps labels and each dataset's data in place, keeping styling.
func replaceData(live *Data, next Data) {
	live.Labels = next.Labels
	for i := range next.Datasets {
		if i >= len(live.Datasets) {
			live.Datasets = append(live.Datasets, next.Datasets[i])
			continue
		}
		live.Datasets[i].Points = next.Datasets[i].Points
		live.Datasets[i].Values = next.Datasets[i].Values
		live.Datasets[i].Label = next.Datasets[i].Label
	}
	live.Datasets = live.Datasets[:len(next.Datasets)]
}

// Unmount releases the node's chart. Unmounting an unbound node is a no-op.
// The instance is dropped even when the backend fails to release it.
func (h *Hook) Unmount(n Node) error {
	return h.unmount(n.ID())
}

func (h *Hook) unmount(id string) error {
	h.mu.Lock()
	inst, ok := h.instances[id]
	delete(h.instances, id)
	h.mu.Unlock()
	if !ok {
		return nil
	}

	if err := inst.handle.Release(); err != nil {
		slog.Error("chart backend release failed", "hook", h.name, "node_id", id, "error", err)
		return newError(CodeRenderBackend, fmt.Sprintf("release chart for node %s", id), err)
	}
	slog.Debug("chart unmounted", "hook", h.name, "node_id", id)
	return nil
}

// Spec returns a copy of the live spec of a bound node.
func (h *Hook) Spec(nodeID string) (*Spec, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[nodeID]
	if !ok {
		return nil, false
	}
	return inst.spec.Clone(), true
}

// Bound reports whether the node currently has a chart.
func (h *Hook) Bound(nodeID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.instances[nodeID]
	return ok
}

// Count returns the number of live charts.
func (h *Hook) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.instances)
}

// BoundIDs returns the IDs of bound nodes in sorted order.
func (h *Hook) BoundIDs() []string {
	h.mu.Lock()
	ids := make([]string, 0, len(h.instances))
	for id := range h.instances {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close releases every live chart.
func (h *Hook) Close() error {
	var errs []error
	for _, id := range h.BoundIDs() {
		if err := h.unmount(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
