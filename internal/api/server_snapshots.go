package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/snapshot"
)

type snapshotIDInput struct {
	SnapshotID string `path:"snapshot_id" doc:"Snapshot UUID"`
}

type snapshotOutput struct {
	Body snapshot.Meta
}

func registerSnapshotHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "take-snapshot",
		Method:        http.MethodPost,
		Path:          "/api/v1/nodes/{node_id}/snapshots",
		Summary:       "Store a snapshot of a chart",
		Description:   "Source \"raster\" (default) draws the chart server-side as png or svg. Source \"browser\" screenshots the live Chart.js canvas in headless Chromium (png only).",
		Tags:          []string{"Snapshots"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		NodeID string `path:"node_id"`
		Body   struct {
			Source string `json:"source,omitempty" enum:"raster,browser" doc:"Export source"`
			Format string `json:"format,omitempty" enum:"png,svg" doc:"Image format"`
			Notes  string `json:"notes,omitempty" doc:"Free-form notes"`
		}
	}) (*snapshotOutput, error) {
		meta, err := svc.TakeSnapshot(ctx, input.NodeID, input.Body.Source, input.Body.Format, input.Body.Notes)
		if err != nil {
			return nil, mapErr(err)
		}
		return &snapshotOutput{Body: meta}, nil
	})

	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			NodeID string `query:"node_id" doc:"Only snapshots of this node"`
		}) (*listSnapshotsOutput, error) {
			metas, err := svc.ListSnapshots(ctx, input.NodeID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = metas
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}/metadata", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*snapshotOutput, error) {
			meta, err := svc.GetSnapshot(ctx, input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotOutput{Body: meta}, nil
		})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/image",
		Summary:     "Get snapshot image",
		Tags:        []string{"Snapshots"},
		Responses:   binaryResponse("image/png", "Snapshot image"),
	}, func(ctx context.Context, input *snapshotIDInput) (*renderOutput, error) {
		data, format, err := svc.ReadSnapshotImage(ctx, input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &renderOutput{ContentType: pngchart.Format(format).ContentType(), Body: data}, nil
	})

	type deleteSnapshotOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete a snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
			if err := svc.DeleteSnapshot(ctx, input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSnapshotOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
