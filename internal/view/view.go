// Package view hosts chart elements server-side and drives each element's
// hook through mount, update and unmount.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/journal"
	"github.com/dgnsrekt/growthchart/internal/tracing"
)

const (
	defaultWidth  = 800
	defaultHeight = 450
)

// Journal receives lifecycle records.
type Journal interface {
	Write(rec journal.Record) error
}

// View is the element tree. Lifecycle dispatch is serialised per view.
type View struct {
	reg     *chartbind.Registry
	journal Journal

	mu       sync.Mutex
	elements map[string]*Element
	order    []string
}

// New builds a view over reg. j may be nil.
func New(reg *chartbind.Registry, j Journal) *View {
	return &View{
		reg:      reg,
		journal:  j,
		elements: make(map[string]*Element),
	}
}

// Registry returns the hook table the view dispatches to.
func (v *View) Registry() *chartbind.Registry { return v.reg }

func notFound(id string) error {
	return &chartbind.CodedError{Code: chartbind.CodeNodeNotFound, Message: fmt.Sprintf("node %s not found", id)}
}

// dispatch runs one lifecycle call inside a span and journals its outcome.
func (v *View) dispatch(ctx context.Context, event string, hook *chartbind.Hook, el *Element, call func() error) error {
	_, span := tracing.Start(ctx, event, hook.Name(), el.id)
	err := call()
	tracing.End(span, err)

	rec := journal.Record{Event: event, Hook: hook.Name(), NodeID: el.id, OK: err == nil}
	if err != nil {
		var coded *chartbind.CodedError
		if errors.As(err, &coded) {
			rec.Code = coded.Code
		}
		rec.Error = err.Error()
	} else if spec, ok := hook.Spec(el.id); ok {
		rec.Datasets = len(spec.Data.Datasets)
		rec.Labels = len(spec.Data.Labels)
	}
	if v.journal != nil {
		if jerr := v.journal.Write(rec); jerr != nil {
			slog.Debug("journal write skipped", "node_id", el.id, "error", jerr)
		}
	}
	return err
}

// Insert adds an element and mounts its hook. The element is only kept when
// the mount succeeds.
func (v *View) Insert(ctx context.Context, spec ElementSpec) (ElementInfo, error) {
	hook, err := v.reg.Lookup(spec.Hook)
	if err != nil {
		return ElementInfo{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.elements[spec.NodeID]; exists {
		return ElementInfo{}, &chartbind.CodedError{Code: chartbind.CodeAlreadyBound, Message: fmt.Sprintf("node %s already exists", spec.NodeID)}
	}

	el := &Element{
		id:     spec.NodeID,
		hook:   spec.Hook,
		width:  spec.Width,
		height: spec.Height,
		attrs:  map[string]string{hook.Attribute(): spec.Payload},
	}
	if el.width <= 0 {
		el.width = defaultWidth
	}
	if el.height <= 0 {
		el.height = defaultHeight
	}

	if err := v.dispatch(ctx, "mount", hook, el, func() error { return hook.Mount(el) }); err != nil {
		return ElementInfo{}, err
	}
	v.elements[el.id] = el
	v.order = append(v.order, el.id)
	slog.Info("chart element inserted", "node_id", el.id, "hook", el.hook)
	return v.infoLocked(el), nil
}

// SetPayload replaces the element's payload and updates its chart. On failure
// the previous payload is restored so the page matches the live chart.
func (v *View) SetPayload(ctx context.Context, nodeID, payload string) (ElementInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	el, ok := v.elements[nodeID]
	if !ok {
		return ElementInfo{}, notFound(nodeID)
	}
	hook, err := v.reg.Lookup(el.hook)
	if err != nil {
		return ElementInfo{}, err
	}

	attr := hook.Attribute()
	prev := el.attrs[attr]
	el.attrs[attr] = payload
	if err := v.dispatch(ctx, "update", hook, el, func() error { return hook.Update(el) }); err != nil {
		el.attrs[attr] = prev
		return ElementInfo{}, err
	}
	return v.infoLocked(el), nil
}

// Remove unmounts the element and drops it from the tree.
func (v *View) Remove(ctx context.Context, nodeID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	el, ok := v.elements[nodeID]
	if !ok {
		return notFound(nodeID)
	}
	delete(v.elements, nodeID)
	for i, id := range v.order {
		if id == nodeID {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return v.unmountLocked(ctx, el)
}

func (v *View) unmountLocked(ctx context.Context, el *Element) error {
	hook, err := v.reg.Lookup(el.hook)
	if err != nil {
		return err
	}
	return v.dispatch(ctx, "unmount", hook, el, func() error { return hook.Unmount(el) })
}

// Get returns one element.
func (v *View) Get(nodeID string) (ElementInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	el, ok := v.elements[nodeID]
	if !ok {
		return ElementInfo{}, notFound(nodeID)
	}
	return v.infoLocked(el), nil
}

// List returns every element in insertion order.
func (v *View) List() []ElementInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ElementInfo, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.infoLocked(v.elements[id]))
	}
	return out
}

// Spec returns a copy of the element's live chart spec.
func (v *View) Spec(nodeID string) (*chartbind.Spec, ElementInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	el, ok := v.elements[nodeID]
	if !ok {
		return nil, ElementInfo{}, notFound(nodeID)
	}
	hook, err := v.reg.Lookup(el.hook)
	if err != nil {
		return nil, ElementInfo{}, err
	}
	spec, ok := hook.Spec(nodeID)
	if !ok {
		return nil, ElementInfo{}, &chartbind.CodedError{Code: chartbind.CodeNotBound, Message: fmt.Sprintf("node %s has no chart", nodeID)}
	}
	return spec, v.infoLocked(el), nil
}

// BoundCount returns the number of live charts.
func (v *View) BoundCount() int { return v.reg.Count() }

// Close unmounts every element, newest first.
func (v *View) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var errs []error
	for i := len(v.order) - 1; i >= 0; i-- {
		el := v.elements[v.order[i]]
		if err := v.unmountLocked(ctx, el); err != nil {
			errs = append(errs, err)
		}
	}
	v.elements = make(map[string]*Element)
	v.order = nil
	return errors.Join(errs...)
}

func (v *View) infoLocked(el *Element) ElementInfo {
	info := ElementInfo{
		NodeID: el.id,
		Hook:   el.hook,
		Width:  el.width,
		Height: el.height,
	}
	hook, err := v.reg.Lookup(el.hook)
	if err != nil {
		return info
	}
	info.Attribute = hook.Attribute()
	info.Payload = el.attrs[info.Attribute]
	if spec, ok := hook.Spec(el.id); ok {
		info.Bound = true
		info.Datasets = len(spec.Data.Datasets)
		info.Labels = len(spec.Data.Labels)
	}
	return info
}
