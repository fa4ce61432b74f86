package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/db"
)

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

type CountBody struct {
	Table  string `json:"table" doc:"DuckDB table of the layer"`
	Filter string `json:"filter" doc:"Final filter used as the WHERE clause"`
	Count  int64  `json:"count" doc:"Rows matching the filter"`
}

type ImportBody struct {
	Source string `json:"source" doc:"GeoJSON source that was imported"`
	Table  string `json:"table" doc:"Table that was (re)created"`
	Rows   int    `json:"rows" doc:"Number of imported features"`
}

// RegisterDB registers the DuckDB routes.
func (h *APIHandler) RegisterDB(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/layers/{path}/count", h.GetCount, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{path}/import", h.ImportLayer, huma.OperationTags("layers"))
}

// ListTables returns all DuckDB tables.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(ctx, h.svc.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// GetCount counts the rows of the layer's table that satisfy its filter.
func (h *APIHandler) GetCount(ctx context.Context, input *PathInput) (*struct{ Body CountBody }, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	_, table, err := h.svc.Layer.DataBinding(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	if table == "" {
		return nil, huma.Error404NotFound("layer has no table")
	}
	lf, err := h.svc.Layer.Filter(input.Path)
	if err != nil {
		return nil, apiError(err)
	}

	n, err := db.CountMatching(ctx, h.svc.DB, table, lf.Filter)
	if err != nil {
		return nil, apiError(err)
	}
	return &struct{ Body CountBody }{Body: CountBody{Table: table, Filter: lf.Filter, Count: n}}, nil
}

// ImportLayer loads the layer's GeoJSON source into its DuckDB table.
func (h *APIHandler) ImportLayer(ctx context.Context, input *PathInput) (*struct{ Body ImportBody }, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if h.svc.Source == nil {
		return nil, huma.Error503ServiceUnavailable("Sources not available")
	}
	source, table, err := h.svc.Layer.DataBinding(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	if source == "" || table == "" {
		return nil, huma.Error400BadRequest("layer needs both a source and a table to import")
	}

	fc, err := h.svc.Source.Read(source)
	if err != nil {
		return nil, apiError(err)
	}
	n, err := db.ImportFeatures(ctx, h.svc.DB, table, fc)
	if err != nil {
		return nil, apiError(err)
	}
	return &struct{ Body ImportBody }{Body: ImportBody{Source: source, Table: table, Rows: n}}, nil
}
