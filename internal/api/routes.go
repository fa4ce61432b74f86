// Package api defines the Huma API routes and handlers.
//
// Node paths travel in a single path segment with their slashes escaped,
// e.g. /api/v1/nodes/city%2Ftransport%2Froads. The leading service id may be
// omitted.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Layer  *service.LayerService
	Source *service.SourceService
	DB     *sql.DB // nil when DuckDB is unavailable
}

// Types

type PathInput struct {
	Path string `path:"path" doc:"Node path, slashes escaped as %2F" example:"transport%2Froads"`
}

// NodeBody is a node snapshot with state-dependent action links.
type NodeBody struct {
	layertree.Info
}

var (
	nodeActions = []humastar.ActionDef{
		{Rel: "status", Pattern: "/api/v1/nodes/%s/status", Method: "PUT", Title: "Set status"},
	}
	layerActions = []humastar.ActionDef{
		{Rel: "filter", Pattern: "/api/v1/layers/%s/filter", Method: "GET", Title: "Final filter"},
		{Rel: "style", Pattern: "/api/v1/layers/%s/style", Method: "GET", Title: "Symbology"},
		{Rel: "visibility", Pattern: "/api/v1/layers/%s/visibility", Method: "PUT", Title: "Show or hide every entry"},
	}
	loadedActions = []humastar.ActionDef{
		{Rel: "features", Pattern: "/api/v1/layers/%s/features", Method: "GET", Title: "Matching source features"},
	}
	tableActions = []humastar.ActionDef{
		{Rel: "count", Pattern: "/api/v1/layers/%s/count", Method: "GET", Title: "Count matching rows"},
	}
)

// Actions implements humastar.Actor.
func (b NodeBody) Actions() []humastar.Action {
	actions := humastar.ActionsFor(b.Path, nodeActions)
	if b.Kind != layertree.LayerKind.String() {
		return actions
	}
	actions = append(actions, humastar.ActionsFor(b.Path, layerActions)...)
	if b.Status.Weight() >= layertree.Loaded.Weight() && b.Status != layertree.Error && b.Source != "" {
		actions = append(actions, humastar.ActionsFor(b.Path, loadedActions)...)
	}
	if b.Table != "" {
		actions = append(actions, humastar.ActionsFor(b.Path, tableActions)...)
	}
	return actions
}

type NodeOutput struct {
	Body NodeBody
}

type NodesOutput struct {
	Body humastar.PageBody[NodeBody]
}

type StatusInput struct {
	PathInput
	Body struct {
		Status layertree.Status `json:"status" doc:"New lifecycle status" example:"loaded"`
	}
}

type ReadyInput struct {
	Threshold string `query:"threshold" default:"loaded" doc:"Status every node must have reached" example:"loaded"`
}

type ReadyBody struct {
	Ready     bool             `json:"ready" doc:"Whether every node reached the threshold"`
	Threshold layertree.Status `json:"threshold" doc:"Threshold that was checked"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/ready", h.GetReady, huma.OperationTags("health"))
}

// RegisterNodes registers the tree and lifecycle routes.
func (h *APIHandler) RegisterNodes(api huma.API) {
	huma.Get(api, "/api/v1/nodes", h.ListNodes, huma.OperationTags("nodes"))
	huma.Get(api, "/api/v1/nodes/{path}", h.GetNode, huma.OperationTags("nodes"))
	huma.Put(api, "/api/v1/nodes/{path}/status", h.PutStatus, huma.OperationTags("nodes"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetReady(ctx context.Context, input *ReadyInput) (*struct{ Body ReadyBody }, error) {
	threshold, err := layertree.ParseStatus(input.Threshold)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return &struct{ Body ReadyBody }{Body: ReadyBody{
		Ready:     h.svc.Layer.Ready(threshold),
		Threshold: threshold,
	}}, nil
}

func (h *APIHandler) ListNodes(ctx context.Context, input *humastar.PageInput) (*NodesOutput, error) {
	infos := h.svc.Layer.List()
	nodes := make([]NodeBody, len(infos))
	for i, info := range infos {
		nodes[i] = NodeBody{info}
	}
	return &NodesOutput{Body: humastar.Paginate(nodes, *input)}, nil
}

func (h *APIHandler) GetNode(ctx context.Context, input *PathInput) (*NodeOutput, error) {
	info, err := h.svc.Layer.Get(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	return &NodeOutput{Body: NodeBody{info}}, nil
}

// PutStatus sets a node's status and propagates it to the ancestors.
func (h *APIHandler) PutStatus(ctx context.Context, input *StatusInput) (*NodeOutput, error) {
	info, err := h.svc.Layer.UpdateStatus(input.Path, input.Body.Status)
	if err != nil {
		return nil, apiError(err)
	}
	return &NodeOutput{Body: NodeBody{info}}, nil
}

// RegisterRoutes registers every REST route of svc on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}
