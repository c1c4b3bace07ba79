// Package growth decodes and validates the serialized growth payload attached to a
// chart node: the child's measurements plus the standard-deviation reference curves
// they are plotted against.
package growth

import (
	"encoding/json"
	"fmt"
)

// Curve identifies one of the fixed standard-deviation reference curves.
type Curve int

const (
	SD3Neg Curve = iota
	SD2Neg
	SD1Neg
	Median
	SD1
	SD2
	SD3
)

// Curves lists every reference curve in display order (lowest band first).
var Curves = [...]Curve{SD3Neg, SD2Neg, SD1Neg, Median, SD1, SD2, SD3}

var curveKeys = [...]string{"sd3neg", "sd2neg", "sd1neg", "median", "sd1", "sd2", "sd3"}

// Key returns the canonical payload key for the curve.
func (c Curve) Key() string {
	if c < SD3Neg || c > SD3 {
		return fmt.Sprintf("curve(%d)", int(c))
	}
	return curveKeys[c]
}

func (c Curve) String() string { return c.Key() }

// Offset returns the signed number of standard deviations the curve sits from the median.
func (c Curve) Offset() int { return int(c) - int(Median) }

// ParseCurve resolves a canonical key back to its Curve.
func ParseCurve(key string) (Curve, bool) {
	for i, k := range curveKeys {
		if k == key {
			return Curve(i), true
		}
	}
	return 0, false
}

// Point is one (age, measurement) sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is a validated growth payload. A Series is never mutated after Parse
// returns it; a new payload produces a new Series.
type Series struct {
	Labels    []float64
	Child     []Point
	Curves    map[Curve][]Point
	AxisLabel string
}

// Curve returns the points of one reference curve.
func (s *Series) Curve(c Curve) []Point {
	return s.Curves[c]
}

// AgeRange returns the smallest and largest label. Labels are non-decreasing, so
// these are the first and last elements.
func (s *Series) AgeRange() (float64, float64) {
	if len(s.Labels) == 0 {
		return 0, 0
	}
	return s.Labels[0], s.Labels[len(s.Labels)-1]
}

// MarshalJSON encodes the series with canonical keys, the form Parse accepts.
func (s Series) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(curveKeys)+3)
	labels := s.Labels
	if labels == nil {
		labels = []float64{}
	}
	child := s.Child
	if child == nil {
		child = []Point{}
	}
	out["labels"] = labels
	out["child"] = child
	out["label"] = s.AxisLabel
	for _, c := range Curves {
		pts := s.Curves[c]
		if pts == nil {
			pts = []Point{}
		}
		out[c.Key()] = pts
	}
	return json.Marshal(out)
}
