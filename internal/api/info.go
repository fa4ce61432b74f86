package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/service"
)

type InfoHandler struct {
	dataDir string
	svc     *Services
}

func NewInfoHandler(dataDir string, svc *Services) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Service  string   `json:"service" doc:"Id of the layer tree root" example:"city"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"lifecycle", "filters", "events"}
	if h.svc.Source != nil {
		features = append(features, "features")
	}
	if h.svc.DB != nil {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-layers",
		Version:  "0.1.0",
		Service:  h.svc.Layer.ServiceID(),
		DataDir:  h.dataDir,
		DB:       h.svc.DB != nil,
		Features: features,
	}}, nil
}

func (h *InfoHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}
