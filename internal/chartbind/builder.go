package chartbind

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/growthchart/internal/growth"
)

// Builder turns a node's serialized payload into a full chart spec.
type Builder interface {
	// Attribute is the data attribute the payload is read from.
	Attribute() string
	Build(raw []byte) (*Spec, error)
}

// GrowthBuilder builds growth charts for one profile.
type GrowthBuilder struct {
	Profile Profile
}

func (b GrowthBuilder) Attribute() string {
	if b.Profile.Attribute == "" {
		return DefaultAttribute
	}
	return b.Profile.Attribute
}

func (b GrowthBuilder) Build(raw []byte) (*Spec, error) {
	s, err := growth.Parse(raw, b.Profile.Aliases())
	if err != nil {
		return nil, err
	}
	return GrowthSpec(b.Profile, s), nil
}

// GrowthSpec lays a validated series out as a scatter chart: the child's
// points first, then the reference curves lowest band first.
func GrowthSpec(p Profile, s *growth.Series) *Spec {
	labels := make([]any, len(s.Labels))
	for i, l := range s.Labels {
		labels[i] = l
	}

	datasets := make([]Dataset, 0, len(growth.Curves)+1)
	datasets = append(datasets, Dataset{
		Key:             ChildKey,
		Kind:            KindPoints,
		Label:           p.ChildLabel,
		Points:          append([]growth.Point(nil), s.Child...),
		BorderColor:     p.ChildColor,
		BackgroundColor: p.ChildColor,
		PointRadius:     ChildRadius,
	})
	for _, c := range growth.Curves {
		style := p.Style(c)
		datasets = append(datasets, Dataset{
			Key:         c.Key(),
			Kind:        KindCurve,
			Label:       style.Label,
			Points:      append([]growth.Point(nil), s.Curve(c)...),
			BorderColor: style.Color,
			BorderDash:  append([]int(nil), style.Dash...),
			BorderWidth: style.Width,
		})
	}

	return &Spec{
		Type: "scatter",
		Data: Data{Labels: labels, Datasets: datasets},
		Options: Options{
			Responsive: true,
			Scales: Scales{
				X: Axis{Type: "linear", Title: AxisTitle{Display: true, Text: p.AgeAxisTitle}},
				Y: Axis{Type: "linear", Title: AxisTitle{Display: true, Text: s.AxisLabel}},
			},
		},
	}
}

// DashboardAttribute is the data attribute of the dashboard chart.
const DashboardAttribute = "chart-data"

var dashboardPalette = []string{"#36a2eb", "#ff6384", "#4bc0c0", "#ff9f40", "#9966ff", "#ffcd56", "#c9cbcf"}

// DashboardBuilder builds a categorical line chart whose y-axis starts at zero.
type DashboardBuilder struct{}

type dashboardPayload struct {
	Labels   []string `json:"labels"`
	Datasets []struct {
		Label string     `json:"label"`
		Data  *[]float64 `json:"data"`
	} `json:"datasets"`
}

func (DashboardBuilder) Attribute() string { return DashboardAttribute }

func (DashboardBuilder) Build(raw []byte) (*Spec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: payload: empty", growth.ErrMalformed)
	}
	var p dashboardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", growth.ErrMalformed, err)
	}
	if len(p.Labels) == 0 {
		return nil, fmt.Errorf("%w: labels: missing or empty", growth.ErrMalformed)
	}
	if len(p.Datasets) == 0 {
		return nil, fmt.Errorf("%w: datasets: missing or empty", growth.ErrMalformed)
	}

	labels := make([]any, len(p.Labels))
	for i, l := range p.Labels {
		labels[i] = l
	}
	datasets := make([]Dataset, len(p.Datasets))
	for i, ds := range p.Datasets {
		if ds.Data == nil {
			return nil, fmt.Errorf("%w: datasets[%d]: data missing", growth.ErrMalformed, i)
		}
		if len(*ds.Data) > len(p.Labels) {
			return nil, fmt.Errorf("%w: datasets[%d]: %d values for %d labels", growth.ErrMalformed, i, len(*ds.Data), len(p.Labels))
		}
		color := dashboardPalette[i%len(dashboardPalette)]
		datasets[i] = Dataset{
			Key:             fmt.Sprintf("dataset-%d", i),
			Kind:            KindValues,
			Label:           ds.Label,
			Values:          append([]float64(nil), *ds.Data...),
			BorderColor:     color,
			BackgroundColor: color,
		}
	}

	return &Spec{
		Type: "line",
		Data: Data{Labels: labels, Datasets: datasets},
		Options: Options{
			Responsive: true,
			Scales: Scales{
				Y: Axis{BeginAtZero: true},
			},
		},
	}, nil
}
