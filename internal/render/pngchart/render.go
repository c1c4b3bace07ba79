// Package pngchart rasterises chart specs to PNG or SVG with go-chart.
package pngchart

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
)

// Format selects the output encoding.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

const (
	defaultWidth  = 800
	defaultHeight = 450
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() (chart.RendererProvider, error) {
	switch f {
	case PNG:
		return chart.PNG, nil
	case SVG:
		return chart.SVG, nil
	default:
		return nil, fmt.Errorf("pngchart: unsupported format %q", f)
	}
}

func color(hex string) drawing.Color {
	if hex == "" {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(trimHash(hex))
}

func trimHash(hex string) string {
	if len(hex) > 0 && hex[0] == '#' {
		return hex[1:]
	}
	return hex
}

func dash(ds chartbind.Dataset) []float64 {
	if len(ds.BorderDash) == 0 {
		return nil
	}
	out := make([]float64, len(ds.BorderDash))
	for i, d := range ds.BorderDash {
		out[i] = float64(d)
	}
	return out
}

// bounds tracks the data extent so single-valued axes still get a non-zero range.
type bounds struct{ min, max float64 }

func newBounds() bounds { return bounds{min: math.Inf(1), max: math.Inf(-1)} }

func (b *bounds) add(v float64) {
	b.min = math.Min(b.min, v)
	b.max = math.Max(b.max, v)
}

func (b bounds) rangeOf(fromZero bool) *chart.ContinuousRange {
	lo, hi := b.min, b.max
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if fromZero && lo > 0 {
		lo = 0
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// Build lays out spec as a go-chart Chart.
func Build(spec *chartbind.Spec, canvas chartbind.Canvas) (*chart.Chart, error) {
	if spec == nil {
		return nil, fmt.Errorf("pngchart: nil spec")
	}
	w, h := canvas.Width, canvas.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}

	xb, yb := newBounds(), newBounds()
	var series []chart.Series
	var ticks []chart.Tick

	for _, ds := range spec.Data.Datasets {
		var xs, ys []float64
		switch ds.Kind {
		case chartbind.KindValues:
			for i, v := range ds.Values {
				xs = append(xs, float64(i))
				ys = append(ys, v)
			}
		default:
			for _, p := range ds.Points {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
		}
		if len(xs) == 0 {
			continue
		}
		for i := range xs {
			xb.add(xs[i])
			yb.add(ys[i])
		}

		style := chart.Style{
			StrokeColor:     color(ds.BorderColor),
			StrokeWidth:     float64(max(ds.BorderWidth, 1)),
			StrokeDashArray: dash(ds),
		}
		if ds.Kind == chartbind.KindPoints {
			style = chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    color(ds.BackgroundColor),
				DotWidth:    float64(ds.PointRadius),
			}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			Style:   style,
			XValues: xs,
			YValues: ys,
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("pngchart: spec has no data to draw")
	}

	xAxis := chart.XAxis{Name: spec.Options.Scales.X.Title.Text, Range: xb.rangeOf(false)}
	if spec.Type != "scatter" {
		for i, l := range spec.Data.Labels {
			ticks = append(ticks, chart.Tick{Value: float64(i), Label: fmt.Sprint(l)})
		}
		xAxis.Ticks = ticks
		xAxis.Range = &chart.ContinuousRange{Min: 0, Max: math.Max(float64(len(spec.Data.Labels)-1), 1)}
	}

	graph := &chart.Chart{
		Width:  w,
		Height: h,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: xAxis,
		YAxis: chart.YAxis{
			Name:  spec.Options.Scales.Y.Title.Text,
			Range: yb.rangeOf(spec.Options.Scales.Y.BeginAtZero),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	return graph, nil
}

// Render draws spec to w in the given format.
func Render(w io.Writer, spec *chartbind.Spec, canvas chartbind.Canvas, format Format) error {
	provider, err := format.provider()
	if err != nil {
		return err
	}
	graph, err := Build(spec, canvas)
	if err != nil {
		return err
	}
	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("pngchart: render %s: %w", format, err)
	}
	return nil
}

// Backend rasterises every create and update to PNG and keeps the latest image.
type Backend struct {
	mu     sync.RWMutex
	images map[string][]byte
}

func New() *Backend {
	return &Backend{images: make(map[string][]byte)}
}

type handle struct {
	b      *Backend
	canvas chartbind.Canvas
}

func (h *handle) Release() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if _, ok := h.b.images[h.canvas.ID]; !ok {
		return fmt.Errorf("pngchart: canvas %s already released", h.canvas.ID)
	}
	delete(h.b.images, h.canvas.ID)
	return nil
}

func (b *Backend) draw(canvas chartbind.Canvas, spec *chartbind.Spec) error {
	var buf bytes.Buffer
	if err := Render(&buf, spec, canvas, PNG); err != nil {
		return err
	}
	b.mu.Lock()
	b.images[canvas.ID] = buf.Bytes()
	b.mu.Unlock()
	return nil
}

func (b *Backend) Create(canvas chartbind.Canvas, spec *chartbind.Spec) (chartbind.Handle, error) {
	if err := b.draw(canvas, spec); err != nil {
		return nil, err
	}
	return &handle{b: b, canvas: canvas}, nil
}

func (b *Backend) Update(h chartbind.Handle, spec *chartbind.Spec) error {
	hd, ok := h.(*handle)
	if !ok || hd.b != b {
		return fmt.Errorf("pngchart: foreign handle %T", h)
	}
	return b.draw(hd.canvas, spec)
}

// Image returns the last PNG drawn for a canvas.
func (b *Backend) Image(canvasID string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	img, ok := b.images[canvasID]
	return img, ok
}

// Live returns the latest image of a canvas with its content type.
func (b *Backend) Live(canvasID string) ([]byte, string, bool) {
	img, ok := b.Image(canvasID)
	return img, PNG.ContentType(), ok
}
