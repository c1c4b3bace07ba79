package growth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformed is wrapped by every error Parse returns.
var ErrMalformed = errors.New("malformed growth payload")

// alignTolerance bounds the difference allowed between a curve point's x and its label.
const alignTolerance = 1e-9

// Aliases maps each curve to the payload keys accepted for it, in precedence order.
type Aliases map[Curve][]string

// DefaultAliases accepts the canonical key for every curve and the "sd0" and "m"
// spellings for the median.
func DefaultAliases() Aliases {
	a := make(Aliases, len(Curves))
	for _, c := range Curves {
		a[c] = []string{c.Key()}
	}
	a[Median] = []string{"median", "sd0", "m"}
	return a
}

type wirePoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func malformed(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, field, fmt.Sprintf(format, args...))
}

// Parse decodes a JSON payload into a validated Series. Keys not named by the
// schema or by aliases are ignored. A nil aliases value means DefaultAliases.
func Parse(raw []byte, aliases Aliases) (*Series, error) {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, malformed("payload", "empty")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed("payload", "not a JSON object: %v", err)
	}

	s := &Series{Curves: make(map[Curve][]Point, len(Curves))}

	labelsRaw, ok := present(fields, "labels")
	if !ok {
		return nil, malformed("labels", "missing")
	}
	if err := json.Unmarshal(labelsRaw, &s.Labels); err != nil {
		return nil, malformed("labels", "%v", err)
	}
	if len(s.Labels) == 0 {
		return nil, malformed("labels", "empty")
	}

	axisRaw, ok := present(fields, "label")
	if !ok {
		return nil, malformed("label", "missing")
	}
	if err := json.Unmarshal(axisRaw, &s.AxisLabel); err != nil {
		return nil, malformed("label", "%v", err)
	}

	childRaw, ok := fields["child"]
	if !ok {
		return nil, malformed("child", "missing")
	}
	child, err := decodePoints("child", childRaw)
	if err != nil {
		return nil, err
	}
	s.Child = child

	for _, c := range Curves {
		key, curveRaw, err := resolveCurve(fields, c, aliases[c])
		if err != nil {
			return nil, err
		}
		pts, err := decodePoints(key, curveRaw)
		if err != nil {
			return nil, err
		}
		s.Curves[c] = pts
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// present returns the raw value for key when it exists and is not JSON null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := fields[key]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func resolveCurve(fields map[string]json.RawMessage, c Curve, keys []string) (string, json.RawMessage, error) {
	if len(keys) == 0 {
		keys = []string{c.Key()}
	}
	var found []string
	var raw json.RawMessage
	for _, k := range keys {
		if v, ok := present(fields, k); ok {
			if raw == nil {
				raw = v
			}
			found = append(found, k)
		}
	}
	switch len(found) {
	case 0:
		return "", nil, malformed(c.Key(), "missing (accepted keys: %s)", strings.Join(keys, ", "))
	case 1:
		return found[0], raw, nil
	default:
		return "", nil, malformed(c.Key(), "ambiguous, payload carries %s", strings.Join(found, " and "))
	}
}

func decodePoints(field string, raw json.RawMessage) ([]Point, error) {
	var wire []wirePoint
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, malformed(field, "%v", err)
	}
	pts := make([]Point, len(wire))
	for i, wp := range wire {
		if wp.X == nil || wp.Y == nil {
			return nil, malformed(field, "point %d needs both x and y", i)
		}
		pts[i] = Point{X: *wp.X, Y: *wp.Y}
	}
	return pts, nil
}

func (s *Series) validate() error {
	for i := 1; i < len(s.Labels); i++ {
		if s.Labels[i] < s.Labels[i-1] {
			return malformed("labels", "decreasing at index %d (%g after %g)", i, s.Labels[i], s.Labels[i-1])
		}
	}

	for _, c := range Curves {
		pts := s.Curves[c]
		if len(pts) != len(s.Labels) {
			return malformed(c.Key(), "has %d points, labels has %d", len(pts), len(s.Labels))
		}
		for i, p := range pts {
			if math.Abs(p.X-s.Labels[i]) > alignTolerance {
				return malformed(c.Key(), "point %d at x=%g, label is %g", i, p.X, s.Labels[i])
			}
		}
	}

	if len(s.Child) > len(s.Labels) {
		return malformed("child", "has %d points, labels has %d", len(s.Child), len(s.Labels))
	}
	lo, hi := s.AgeRange()
	for i, p := range s.Child {
		if p.X < lo || p.X > hi {
			return malformed("child", "point %d at x=%g outside [%g, %g]", i, p.X, lo, hi)
		}
	}
	return nil
}
