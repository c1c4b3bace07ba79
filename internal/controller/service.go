// Package controller exposes chart element, export and snapshot operations
// over the view, the render exporters and the snapshot store.
package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/render/echarts"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
	"github.com/dgnsrekt/growthchart/internal/view"
)

const maxCanvasSide = 4096

const (
	SourceRaster  = "raster"
	SourceBrowser = "browser"
)

var nodeIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Capturer screenshots a rendered canvas from a page URL.
type Capturer interface {
	Capture(ctx context.Context, pageURL, nodeID string, width, height int) ([]byte, error)
}

// LiveSource is a server-side backend that keeps the latest output of every
// live chart.
type LiveSource interface {
	Live(canvasID string) ([]byte, string, bool)
}

// Service wraps chart element operations.
type Service struct {
	view     *view.View
	snaps    *snapshot.Store
	capture  Capturer
	live     LiveSource
	profiles map[string]chartbind.Profile
	baseURL  string
}

// NewService builds a service. capture may be nil, in which case browser
// snapshots fail with CAPTURE_FAILED. baseURL is the address the capturer
// loads node pages from.
func NewService(v *view.View, snaps *snapshot.Store, capture Capturer, profiles map[string]chartbind.Profile, baseURL string) *Service {
	return &Service{
		view:     v,
		snaps:    snaps,
		capture:  capture,
		profiles: profiles,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// WithLiveSource serves LiveOutput from src. Without one, LiveOutput fails
// with VALIDATION since the browser draws the charts.
func (s *Service) WithLiveSource(src LiveSource) *Service {
	s.live = src
	return s
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &chartbind.CodedError{Code: chartbind.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) requireNodeID(id string) error {
	if !nodeIDRe.MatchString(id) {
		return &chartbind.CodedError{Code: chartbind.CodeValidation, Message: fmt.Sprintf("node_id %q must match %s", id, nodeIDRe)}
	}
	return nil
}

func requireSide(value int, fieldName string) error {
	if value < 0 || value > maxCanvasSide {
		return &chartbind.CodedError{Code: chartbind.CodeValidation, Message: fmt.Sprintf("%s must be between 0 and %d", fieldName, maxCanvasSide)}
	}
	return nil
}

// --- Registry methods ---

func (s *Service) Hooks() []string {
	return s.view.Registry().Names()
}

func (s *Service) Profiles() []chartbind.Profile {
	out := make([]chartbind.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) BoundCount() int {
	return s.view.BoundCount()
}

// --- Node methods ---

func (s *Service) ListNodes(ctx context.Context) []view.ElementInfo {
	return s.view.List()
}

func (s *Service) CreateNode(ctx context.Context, nodeID, hook string, width, height int, payload string) (view.ElementInfo, error) {
	nodeID = strings.TrimSpace(nodeID)
	if err := s.requireNodeID(nodeID); err != nil {
		return view.ElementInfo{}, err
	}
	if err := s.requireNonEmpty(hook, "hook"); err != nil {
		return view.ElementInfo{}, err
	}
	if err := requireSide(width, "width"); err != nil {
		return view.ElementInfo{}, err
	}
	if err := requireSide(height, "height"); err != nil {
		return view.ElementInfo{}, err
	}
	return s.view.Insert(ctx, view.ElementSpec{
		NodeID:  nodeID,
		Hook:    strings.TrimSpace(hook),
		Width:   width,
		Height:  height,
		Payload: payload,
	})
}

func (s *Service) GetNode(ctx context.Context, nodeID string) (view.ElementInfo, error) {
	if err := s.requireNodeID(nodeID); err != nil {
		return view.ElementInfo{}, err
	}
	return s.view.Get(nodeID)
}

func (s *Service) SetPayload(ctx context.Context, nodeID, payload string) (view.ElementInfo, error) {
	if err := s.requireNodeID(nodeID); err != nil {
		return view.ElementInfo{}, err
	}
	return s.view.SetPayload(ctx, nodeID, payload)
}

func (s *Service) DeleteNode(ctx context.Context, nodeID string) error {
	if err := s.requireNodeID(nodeID); err != nil {
		return err
	}
	return s.view.Remove(ctx, nodeID)
}

func (s *Service) NodeSpec(ctx context.Context, nodeID string) (*chartbind.Spec, error) {
	if err := s.requireNodeID(nodeID); err != nil {
		return nil, err
	}
	spec, _, err := s.view.Spec(nodeID)
	return spec, err
}

// --- Page methods ---

func (s *Service) RenderPage(w io.Writer) error {
	return s.view.RenderPage(w)
}

func (s *Service) RenderNodePage(w io.Writer, nodeID string) error {
	if err := s.requireNodeID(nodeID); err != nil {
		return err
	}
	return s.view.RenderNodePage(w, nodeID)
}

// --- Export methods ---

func canvasOf(info view.ElementInfo) chartbind.Canvas {
	return chartbind.Canvas{ID: info.NodeID, Width: info.Width, Height: info.Height}
}

func (s *Service) liveSpec(nodeID string) (*chartbind.Spec, view.ElementInfo, error) {
	if err := s.requireNodeID(nodeID); err != nil {
		return nil, view.ElementInfo{}, err
	}
	return s.view.Spec(nodeID)
}

// RenderImage rasterises the node's live chart.
func (s *Service) RenderImage(ctx context.Context, nodeID string, format pngchart.Format) ([]byte, error) {
	spec, info, err := s.liveSpec(nodeID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pngchart.Render(&buf, spec, canvasOf(info), format); err != nil {
		return nil, &chartbind.CodedError{Code: chartbind.CodeRenderBackend, Message: "render " + string(format), Cause: err}
	}
	return buf.Bytes(), nil
}

// RenderHTML renders the node's live chart as a standalone echarts page.
func (s *Service) RenderHTML(ctx context.Context, nodeID string) ([]byte, error) {
	spec, info, err := s.liveSpec(nodeID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := echarts.Render(&buf, spec, canvasOf(info)); err != nil {
		return nil, &chartbind.CodedError{Code: chartbind.CodeRenderBackend, Message: "render html", Cause: err}
	}
	return buf.Bytes(), nil
}

// LiveOutput returns what the server-side backend last drew for the node.
func (s *Service) LiveOutput(ctx context.Context, nodeID string) ([]byte, string, error) {
	info, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, "", err
	}
	if s.live == nil {
		return nil, "", &chartbind.CodedError{Code: chartbind.CodeValidation, Message: "live output needs the echarts or png backend"}
	}
	data, contentType, ok := s.live.Live(info.NodeID)
	if !ok || !info.Bound {
		return nil, "", &chartbind.CodedError{Code: chartbind.CodeNotBound, Message: fmt.Sprintf("node %s has no live chart", nodeID)}
	}
	return data, contentType, nil
}

// --- Snapshot methods ---

// TakeSnapshot stores an export of the node's chart. Raster snapshots are drawn
// server-side; browser snapshots screenshot the Chart.js canvas.
func (s *Service) TakeSnapshot(ctx context.Context, nodeID, source, format, notes string) (snapshot.Meta, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = SourceRaster
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = string(pngchart.PNG)
	}

	switch {
	case source != SourceRaster && source != SourceBrowser:
		return snapshot.Meta{}, &chartbind.CodedError{Code: chartbind.CodeValidation, Message: "source must be \"raster\" or \"browser\""}
	case format != string(pngchart.PNG) && format != string(pngchart.SVG):
		return snapshot.Meta{}, &chartbind.CodedError{Code: chartbind.CodeValidation, Message: "format must be \"png\" or \"svg\""}
	case source == SourceBrowser && format != string(pngchart.PNG):
		return snapshot.Meta{}, &chartbind.CodedError{Code: chartbind.CodeValidation, Message: "browser snapshots are png only"}
	}

	spec, info, err := s.liveSpec(nodeID)
	if err != nil {
		return snapshot.Meta{}, err
	}

	var imageData []byte
	if source == SourceBrowser {
		imageData, err = s.captureNode(ctx, info)
	} else {
		imageData, err = s.RenderImage(ctx, nodeID, pngchart.Format(format))
	}
	if err != nil {
		return snapshot.Meta{}, err
	}

	meta := snapshot.Meta{
		ID:        uuid.New().String(),
		NodeID:    info.NodeID,
		Hook:      info.Hook,
		Source:    source,
		Format:    format,
		Width:     info.Width,
		Height:    info.Height,
		CreatedAt: time.Now().UTC(),
		AxisLabel: spec.Options.Scales.Y.Title.Text,
		Notes:     strings.TrimSpace(notes),
	}
	if err := s.snaps.Save(meta, imageData); err != nil {
		return snapshot.Meta{}, fmt.Errorf("save snapshot: %w", err)
	}
	meta.SizeBytes = len(imageData)
	slog.Info("snapshot taken", "id", meta.ID, "node_id", meta.NodeID, "source", source, "format", format)
	return meta, nil
}

func (s *Service) captureNode(ctx context.Context, info view.ElementInfo) ([]byte, error) {
	if s.capture == nil || s.baseURL == "" {
		return nil, &chartbind.CodedError{Code: chartbind.CodeCaptureFailed, Message: "browser capture is not configured"}
	}
	pageURL := s.baseURL + "/nodes/" + info.NodeID
	data, err := s.capture.Capture(ctx, pageURL, info.NodeID, info.Width, info.Height)
	if err != nil {
		return nil, &chartbind.CodedError{Code: chartbind.CodeCaptureFailed, Message: "capture " + info.NodeID, Cause: err}
	}
	return data, nil
}

func snapshotErr(err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return &chartbind.CodedError{Code: chartbind.CodeSnapshotNotFound, Message: err.Error()}
	}
	return &chartbind.CodedError{Code: chartbind.CodeValidation, Message: err.Error()}
}

func (s *Service) ListSnapshots(ctx context.Context, nodeID string) ([]snapshot.Meta, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID != "" {
		if err := s.requireNodeID(nodeID); err != nil {
			return nil, err
		}
	}
	return s.snaps.List(nodeID)
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	if err != nil {
		return snapshot.Meta{}, snapshotErr(err)
	}
	return meta, nil
}

func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return nil, "", err
	}
	data, format, err := s.snaps.ReadImage(strings.TrimSpace(id))
	if err != nil {
		return nil, "", snapshotErr(err)
	}
	return data, format, nil
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return err
	}
	if err := s.snaps.Delete(strings.TrimSpace(id)); err != nil {
		return snapshotErr(err)
	}
	return nil
}
