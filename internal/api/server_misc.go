package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/growthchart/internal/chartbind"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status     string `json:"status"`
			BoundNodes int    `json:"bound_nodes"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.BoundNodes = svc.BoundCount()
			return out, nil
		})

	type hooksOutput struct {
		Body struct {
			Hooks []string `json:"hooks"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-hooks", Method: http.MethodGet, Path: "/api/v1/hooks", Summary: "List registered hooks", Tags: []string{"Registry"}},
		func(ctx context.Context, input *struct{}) (*hooksOutput, error) {
			out := &hooksOutput{}
			out.Body.Hooks = svc.Hooks()
			return out, nil
		})

	type profilesOutput struct {
		Body struct {
			Profiles []chartbind.Profile `json:"profiles"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-profiles", Method: http.MethodGet, Path: "/api/v1/profiles", Summary: "List chart profiles", Description: "Named styling profiles available to the GrowthChart hook.", Tags: []string{"Registry"}},
		func(ctx context.Context, input *struct{}) (*profilesOutput, error) {
			out := &profilesOutput{}
			out.Body.Profiles = svc.Profiles()
			return out, nil
		})
}
