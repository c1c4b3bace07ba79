// Package echarts renders chart specs to standalone HTML pages with go-echarts.
package echarts

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
)

const (
	defaultWidth  = 800
	defaultHeight = 450
)

func initOpts(title string, canvas chartbind.Canvas) opts.Initialization {
	w, h := canvas.Width, canvas.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return opts.Initialization{
		PageTitle: title,
		Width:     fmt.Sprintf("%dpx", w),
		Height:    fmt.Sprintf("%dpx", h),
	}
}

func lineType(ds chartbind.Dataset) string {
	if len(ds.BorderDash) > 0 {
		return "dashed"
	}
	return "solid"
}

func width(ds chartbind.Dataset) float32 {
	if ds.BorderWidth <= 0 {
		return 1
	}
	return float32(ds.BorderWidth)
}

// Render writes an HTML page drawing spec.
func Render(w io.Writer, spec *chartbind.Spec, canvas chartbind.Canvas) error {
	if spec == nil {
		return fmt.Errorf("echarts: nil spec")
	}
	var err error
	if spec.Type == "scatter" {
		err = renderGrowth(w, spec, canvas)
	} else {
		err = renderValues(w, spec, canvas)
	}
	if err != nil {
		return fmt.Errorf("echarts: render %s chart: %w", spec.Type, err)
	}
	return nil
}

func renderGrowth(w io.Writer, spec *chartbind.Spec, canvas chartbind.Canvas) error {
	yTitle := spec.Options.Scales.Y.Title.Text
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(yTitle, canvas)),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.Options.Scales.X.Title.Text, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yTitle, Type: "value", Scale: !spec.Options.Scales.Y.BeginAtZero}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)

	var curves []charts.Overlaper
	for _, ds := range spec.Data.Datasets {
		switch ds.Kind {
		case chartbind.KindPoints:
			data := make([]opts.ScatterData, len(ds.Points))
			for i, p := range ds.Points {
				data[i] = opts.ScatterData{Value: []interface{}{p.X, p.Y}, SymbolSize: ds.PointRadius * 2}
			}
			scatter.AddSeries(ds.Label, data,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.BackgroundColor}))
		case chartbind.KindCurve:
			line := charts.NewLine()
			data := make([]opts.LineData, len(ds.Points))
			for i, p := range ds.Points {
				data[i] = opts.LineData{Value: []interface{}{p.X, p.Y}, Symbol: "none"}
			}
			line.AddSeries(ds.Label, data,
				charts.WithLineStyleOpts(opts.LineStyle{Color: ds.BorderColor, Width: width(ds), Type: lineType(ds)}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.BorderColor}))
			curves = append(curves, line)
		}
	}
	scatter.Overlap(curves...)
	return scatter.Render(w)
}

func renderValues(w io.Writer, spec *chartbind.Spec, canvas chartbind.Canvas) error {
	labels := make([]string, len(spec.Data.Labels))
	for i, l := range spec.Data.Labels {
		labels[i] = fmt.Sprint(l)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts("Dashboard", canvas)),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.Options.Scales.X.Title.Text}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.Options.Scales.Y.Title.Text, Scale: !spec.Options.Scales.Y.BeginAtZero}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)
	line.SetXAxis(labels)
	for _, ds := range spec.Data.Datasets {
		data := make([]opts.LineData, len(ds.Values))
		for i, v := range ds.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(ds.Label, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: ds.BorderColor, Width: width(ds), Type: lineType(ds)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.BorderColor}))
	}
	return line.Render(w)
}

// Backend keeps the latest rendered page of every live chart.
type Backend struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

func New() *Backend {
	return &Backend{pages: make(map[string][]byte)}
}

type handle struct {
	b      *Backend
	canvas chartbind.Canvas
}

func (h *handle) Release() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if _, ok := h.b.pages[h.canvas.ID]; !ok {
		return fmt.Errorf("echarts: canvas %s already released", h.canvas.ID)
	}
	delete(h.b.pages, h.canvas.ID)
	return nil
}

func (b *Backend) draw(canvas chartbind.Canvas, spec *chartbind.Spec) error {
	var buf bytes.Buffer
	if err := Render(&buf, spec, canvas); err != nil {
		return err
	}
	b.mu.Lock()
	b.pages[canvas.ID] = buf.Bytes()
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
		return fmt.Errorf("echarts: foreign handle %T", h)
	}
	return b.draw(hd.canvas, spec)
}

// Page returns the last page rendered for a canvas.
func (b *Backend) Page(canvasID string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	page, ok := b.pages[canvasID]
	return page, ok
}

// Live returns the latest page of a canvas with its content type.
func (b *Backend) Live(canvasID string) ([]byte, string, bool) {
	page, ok := b.Page(canvasID)
	return page, "text/html; charset=utf-8", ok
}
