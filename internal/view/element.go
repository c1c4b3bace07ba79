package view

import "github.com/dgnsrekt/growthchart/internal/chartbind"

// Element is a canvas node in the view tree. Its data attributes carry the
// serialized payload its hook reads.
type Element struct {
	id     string
	hook   string
	width  int
	height int
	attrs  map[string]string
}

func (e *Element) ID() string { return e.id }

func (e *Element) Dataset(key string) (string, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// Canvas uses the node ID as the canvas ID; browser frames are keyed by it.
func (e *Element) Canvas() chartbind.Canvas {
	return chartbind.Canvas{ID: e.id, Width: e.width, Height: e.height}
}

// ElementSpec describes an element to insert.
type ElementSpec struct {
	NodeID  string
	Hook    string
	Width   int
	Height  int
	Payload string
}

// ElementInfo is a read-only view of an element and its binding state.
type ElementInfo struct {
	NodeID    string `json:"node_id"`
	Hook      string `json:"hook"`
	Attribute string `json:"attribute"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bound     bool   `json:"bound"`
	Datasets  int    `json:"datasets"`
	Labels    int    `json:"labels"`
	Payload   string `json:"-"`
}
