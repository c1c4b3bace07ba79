package chartbind

import (
	"encoding/json"

	"github.com/dgnsrekt/growthchart/internal/growth"
)

// Kind tells backends how a dataset is drawn.
type Kind string

const (
	KindPoints Kind = "points" // discrete markers, no connecting line
	KindCurve  Kind = "curve"  // line without markers
	KindValues Kind = "values" // plain numbers aligned with categorical labels
)

// ChildKey is the dataset key of the subject's measurements.
const ChildKey = "child"

// Spec mirrors the Chart.js configuration object and marshals to it verbatim.
type Spec struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

// Data is the replaceable part of a Spec; updates swap its contents in place.
type Data struct {
	Labels   []any     `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one drawn series. Growth datasets carry Points; dashboard datasets carry Values.
type Dataset struct {
	Key             string
	Kind            Kind
	Label           string
	Points          []growth.Point
	Values          []float64
	BorderColor     string
	BackgroundColor string
	BorderDash      []int
	BorderWidth     int
	PointRadius     int
}

type datasetWire struct {
	Label           string `json:"label"`
	Data            any    `json:"data"`
	BorderColor     string `json:"borderColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BorderDash      []int  `json:"borderDash,omitempty"`
	BorderWidth     int    `json:"borderWidth,omitempty"`
	PointRadius     *int   `json:"pointRadius,omitempty"`
	ShowLine        *bool  `json:"showLine,omitempty"`
	Fill            *bool  `json:"fill,omitempty"`
}

// ShowLine reports whether the dataset connects its points.
func (d Dataset) ShowLine() bool { return d.Kind != KindPoints }

// Len returns the number of data entries.
func (d Dataset) Len() int {
	if d.Kind == KindValues {
		return len(d.Values)
	}
	return len(d.Points)
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	w := datasetWire{
		Label:           d.Label,
		BorderColor:     d.BorderColor,
		BackgroundColor: d.BackgroundColor,
		BorderDash:      d.BorderDash,
		BorderWidth:     d.BorderWidth,
	}
	if d.Kind == KindValues {
		values := d.Values
		if values == nil {
			values = []float64{}
		}
		w.Data = values
		return json.Marshal(w)
	}

	points := d.Points
	if points == nil {
		points = []growth.Point{}
	}
	w.Data = points
	radius := d.PointRadius
	showLine := d.ShowLine()
	fill := false
	w.PointRadius = &radius
	w.ShowLine = &showLine
	w.Fill = &fill
	return json.Marshal(w)
}

type Options struct {
	Responsive bool   `json:"responsive"`
	Scales     Scales `json:"scales"`
}

type Scales struct {
	X Axis `json:"x"`
	Y Axis `json:"y"`
}

type Axis struct {
	Type        string    `json:"type,omitempty"`
	Title       AxisTitle `json:"title"`
	BeginAtZero bool      `json:"beginAtZero"`
}

type AxisTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

// Clone returns a deep copy.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = s.Data.Clone()
	return &out
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	out := Data{
		Labels:   append([]any(nil), d.Labels...),
		Datasets: make([]Dataset, len(d.Datasets)),
	}
	for i, ds := range d.Datasets {
		ds.Points = append([]growth.Point(nil), ds.Points...)
		ds.Values = append([]float64(nil), ds.Values...)
		ds.BorderDash = append([]int(nil), ds.BorderDash...)
		out.Datasets[i] = ds
	}
	return out
}

// Dataset returns the dataset with the given key.
func (s *Spec) Dataset(key string) (Dataset, bool) {
	for _, ds := range s.Data.Datasets {
		if ds.Key == key {
			return ds, true
		}
	}
	return Dataset{}, false
}
