// Package api serves the chart page, backend event streams and the huma REST
// API over chi.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
	"github.com/dgnsrekt/growthchart/internal/view"
)

type Service interface {
	Hooks() []string
	Profiles() []chartbind.Profile
	BoundCount() int
	ListNodes(ctx context.Context) []view.ElementInfo
	CreateNode(ctx context.Context, nodeID, hook string, width, height int, payload string) (view.ElementInfo, error)
	GetNode(ctx context.Context, nodeID string) (view.ElementInfo, error)
	SetPayload(ctx context.Context, nodeID, payload string) (view.ElementInfo, error)
	DeleteNode(ctx context.Context, nodeID string) error
	NodeSpec(ctx context.Context, nodeID string) (*chartbind.Spec, error)
	RenderImage(ctx context.Context, nodeID string, format pngchart.Format) ([]byte, error)
	RenderHTML(ctx context.Context, nodeID string) ([]byte, error)
	LiveOutput(ctx context.Context, nodeID string) ([]byte, string, error)
	RenderPage(w io.Writer) error
	RenderNodePage(w io.Writer, nodeID string) error
	TakeSnapshot(ctx context.Context, nodeID, source, format, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context, nodeID string) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Streams are the push transports mounted next to the API. Nil handlers are
// not mounted.
type Streams struct {
	WS     http.Handler
	Events http.Handler
}

type nodeIDInput struct {
	NodeID string `path:"node_id" doc:"Element node ID" example:"baby-1"`
}

func NewServer(svc Service, streams Streams) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Growth Chart API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := writeDocs(w, streams); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, svc.RenderPage)
	})
	router.Get("/nodes/{node_id}", func(w http.ResponseWriter, r *http.Request) {
		nodeID := chi.URLParam(r, "node_id")
		writePage(w, func(buf io.Writer) error { return svc.RenderNodePage(buf, nodeID) })
	})
	if streams.WS != nil {
		router.Handle("/ws", streams.WS)
	}
	if streams.Events != nil {
		router.Handle("/events", streams.Events)
	}

	registerMiscHandlers(api, svc)
	registerNodeHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

// writePage renders into a buffer first so a failed render still gets a
// proper status code.
func writePage(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		status := http.StatusInternalServerError
		if se, ok := mapErr(err).(huma.StatusError); ok {
			status = se.GetStatus()
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("page response write failed", "error", err)
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *chartbind.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case chartbind.CodeValidation, chartbind.CodeUnknownHook:
			return huma.Error400BadRequest(coded.Message)
		case chartbind.CodeNodeNotFound, chartbind.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case chartbind.CodeNotBound, chartbind.CodeAlreadyBound:
			return huma.Error409Conflict(coded.Message)
		case chartbind.CodeMalformedPayload:
			return huma.Error422UnprocessableEntity(coded.Error())
		case chartbind.CodeRenderBackend, chartbind.CodeCaptureFailed:
			return huma.Error502BadGateway(coded.Error())
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
