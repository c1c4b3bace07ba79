package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
	"github.com/dgnsrekt/growthchart/internal/render/pngchart"
	"github.com/dgnsrekt/growthchart/internal/view"
)

// payloadText turns a request payload into the data attribute text. A string
// is taken verbatim so callers can send pre-serialised payloads; any other
// JSON value is re-encoded.
func payloadText(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", huma.Error400BadRequest("payload is not encodable JSON")
	}
	return string(raw), nil
}

type nodeOutput struct {
	Body view.ElementInfo
}

func registerNodeHandlers(api huma.API, svc Service) {
	type listNodesOutput struct {
		Body struct {
			Nodes []view.ElementInfo `json:"nodes"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-nodes", Method: http.MethodGet, Path: "/api/v1/nodes", Summary: "List chart elements", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *struct{}) (*listNodesOutput, error) {
			out := &listNodesOutput{}
			out.Body.Nodes = svc.ListNodes(ctx)
			return out, nil
		})

	huma.Register(api, huma.Operation{
		OperationID:   "create-node",
		Method:        http.MethodPost,
		Path:          "/api/v1/nodes",
		Summary:       "Insert a chart element",
		Description:   "Adds an element to the page and mounts its hook. A malformed payload returns 422 and leaves no element behind.",
		Tags:          []string{"Nodes"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body struct {
			NodeID  string `json:"node_id" doc:"Unique element ID" example:"baby-1"`
			Hook    string `json:"hook" doc:"Hook name" example:"GrowthChart"`
			Width   int    `json:"width,omitempty" doc:"Canvas width in px (default 800)"`
			Height  int    `json:"height,omitempty" doc:"Canvas height in px (default 450)"`
			Payload any    `json:"payload" doc:"Chart payload as a JSON value or a JSON-encoded string"`
		}
	}) (*nodeOutput, error) {
		payload, err := payloadText(input.Body.Payload)
		if err != nil {
			return nil, err
		}
		info, err := svc.CreateNode(ctx, input.Body.NodeID, input.Body.Hook, input.Body.Width, input.Body.Height, payload)
		if err != nil {
			return nil, mapErr(err)
		}
		return &nodeOutput{Body: info}, nil
	})

	huma.Register(api, huma.Operation{OperationID: "get-node", Method: http.MethodGet, Path: "/api/v1/nodes/{node_id}", Summary: "Get a chart element", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *nodeIDInput) (*nodeOutput, error) {
			info, err := svc.GetNode(ctx, input.NodeID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &nodeOutput{Body: info}, nil
		})

	huma.Register(api, huma.Operation{
		OperationID: "set-node-payload",
		Method:      http.MethodPut,
		Path:        "/api/v1/nodes/{node_id}/payload",
		Summary:     "Replace an element's payload",
		Description: "Updates the live chart in place. A malformed payload returns 422 and the previous chart stays.",
		Tags:        []string{"Nodes"},
	}, func(ctx context.Context, input *struct {
		NodeID string `path:"node_id"`
		Body   struct {
			Payload any `json:"payload"`
		}
	}) (*nodeOutput, error) {
		payload, err := payloadText(input.Body.Payload)
		if err != nil {
			return nil, err
		}
		info, err := svc.SetPayload(ctx, input.NodeID, payload)
		if err != nil {
			return nil, mapErr(err)
		}
		return &nodeOutput{Body: info}, nil
	})

	type deleteNodeOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-node", Method: http.MethodDelete, Path: "/api/v1/nodes/{node_id}", Summary: "Remove a chart element", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *nodeIDInput) (*deleteNodeOutput, error) {
			if err := svc.DeleteNode(ctx, input.NodeID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteNodeOutput{}
			out.Body.Status = "removed"
			return out, nil
		})

	type specOutput struct {
		Body *chartbind.Spec
	}
	huma.Register(api, huma.Operation{OperationID: "get-node-spec", Method: http.MethodGet, Path: "/api/v1/nodes/{node_id}/spec", Summary: "Get the live Chart.js spec", Tags: []string{"Nodes"}},
		func(ctx context.Context, input *nodeIDInput) (*specOutput, error) {
			spec, err := svc.NodeSpec(ctx, input.NodeID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &specOutput{Body: spec}, nil
		})

	registerRenderHandlers(api, svc)
}

type renderOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func binaryResponse(contentType, desc string) map[string]*huma.Response {
	return map[string]*huma.Response{
		"200": {
			Description: desc,
			Content: map[string]*huma.MediaType{
				contentType: {
					Schema: &huma.Schema{Type: "string", Format: "binary"},
				},
			},
		},
	}
}

func registerRenderHandlers(api huma.API, svc Service) {
	for _, format := range []pngchart.Format{pngchart.PNG, pngchart.SVG} {
		huma.Register(api, huma.Operation{
			OperationID: "render-node-" + string(format),
			Method:      http.MethodGet,
			Path:        "/api/v1/nodes/{node_id}/render." + string(format),
			Summary:     "Render the chart as " + string(format),
			Tags:        []string{"Export"},
			Responses:   binaryResponse(format.ContentType(), "Rendered chart"),
		}, func(ctx context.Context, input *nodeIDInput) (*renderOutput, error) {
			data, err := svc.RenderImage(ctx, input.NodeID, format)
			if err != nil {
				return nil, mapErr(err)
			}
			return &renderOutput{ContentType: format.ContentType(), Body: data}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "render-node-html",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes/{node_id}/render.html",
		Summary:     "Render the chart as a standalone echarts page",
		Tags:        []string{"Export"},
		Responses:   binaryResponse("text/html", "Chart page"),
	}, func(ctx context.Context, input *nodeIDInput) (*renderOutput, error) {
		data, err := svc.RenderHTML(ctx, input.NodeID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &renderOutput{ContentType: "text/html; charset=utf-8", Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-node-live",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes/{node_id}/live",
		Summary:     "Get the backend's live output",
		Description: "Returns the page (echarts backend) or PNG (png backend) redrawn on every mount and update. With the chartjs backend the browser draws the chart and this returns 400.",
		Tags:        []string{"Export"},
	}, func(ctx context.Context, input *nodeIDInput) (*renderOutput, error) {
		data, contentType, err := svc.LiveOutput(ctx, input.NodeID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &renderOutput{ContentType: contentType, Body: data}, nil
	})
}
