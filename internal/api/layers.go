package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-layers/internal/service"
	"github.com/joeblew999/plat-layers/internal/style"
)

type FilterOutput struct {
	Body service.LayerFilter
}

type PutFilterInput struct {
	PathInput
	Body struct {
		Filter string `json:"filter" doc:"Free-text filter, ANDed with the style filter; empty clears it" example:"lanes >= 1"`
	}
}

type StyleBody struct {
	Path   string       `json:"path" doc:"Layer path"`
	Style  style.Model  `json:"style" doc:"Symbology keyed by geometry type"`
	Fields style.Fields `json:"fields" doc:"Field metadata"`
}

type VisibleBody struct {
	Visible bool `json:"visible" doc:"Show (true) or hide (false)"`
}

type EntryInput struct {
	PathInput
	Geometry string `path:"geometry" enum:"point,multiPoint,lineString,multiLineString,polygon,multiPolygon" doc:"Geometry type of the setting"`
	Index    int    `path:"index" minimum:"0" doc:"Entry index within the setting"`
	Body     VisibleBody
}

type AllVisibleInput struct {
	PathInput
	Body VisibleBody
}

type FeaturesInput struct {
	PathInput
	BBox  []float64 `query:"bbox" doc:"minX,minY,maxX,maxY; only features intersecting it are returned"`
	Limit int       `query:"limit" minimum:"0" maximum:"10000" default:"1000" doc:"Maximum number of features, 0 for no cap"`
}

type FeaturesBody struct {
	Filter   string                     `json:"filter" doc:"Final filter applied to the source"`
	Total    int                        `json:"total" doc:"Features in the source"`
	Matched  int                        `json:"matched" doc:"Features matching the filter and bbox"`
	BBox     []float64                  `json:"bbox,omitempty" doc:"Bounds of the matched features"`
	Features *geojson.FeatureCollection `json:"features" doc:"Matched features, up to limit"`
}

// RegisterLayers registers filter, style and feature routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers/{path}/filter", h.GetFilter, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{path}/filter", h.PutFilter, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{path}/style", h.GetStyle, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{path}/style/{geometry}/entries/{index}", h.PutEntryVisibility, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{path}/visibility", h.PutVisibility, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{path}/features", h.GetFeatures, huma.OperationTags("layers"))
}

func (h *APIHandler) GetFilter(ctx context.Context, input *PathInput) (*FilterOutput, error) {
	lf, err := h.svc.Layer.Filter(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	return &FilterOutput{Body: lf}, nil
}

func (h *APIHandler) PutFilter(ctx context.Context, input *PutFilterInput) (*FilterOutput, error) {
	lf, err := h.svc.Layer.SetFilter(input.Path, input.Body.Filter)
	if err != nil {
		return nil, apiError(err)
	}
	return &FilterOutput{Body: lf}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *PathInput) (*struct{ Body StyleBody }, error) {
	m, fields, err := h.svc.Layer.Style(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	info, err := h.svc.Layer.Get(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	if m == nil {
		m = style.Model{}
	}
	if fields == nil {
		fields = style.Fields{}
	}
	return &struct{ Body StyleBody }{Body: StyleBody{Path: info.Path, Style: m, Fields: fields}}, nil
}

// PutEntryVisibility shows or hides one style entry and returns the
// recomputed filter.
func (h *APIHandler) PutEntryVisibility(ctx context.Context, input *EntryInput) (*FilterOutput, error) {
	lf, err := h.svc.Layer.SetVisibility(input.Path, style.GeometryType(input.Geometry), input.Index, input.Body.Visible)
	if err != nil {
		return nil, apiError(err)
	}
	return &FilterOutput{Body: lf}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *AllVisibleInput) (*FilterOutput, error) {
	lf, err := h.svc.Layer.SetAllVisible(input.Path, input.Body.Visible)
	if err != nil {
		return nil, apiError(err)
	}
	return &FilterOutput{Body: lf}, nil
}

// GetFeatures applies the layer's final filter to its GeoJSON source.
func (h *APIHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*struct{ Body FeaturesBody }, error) {
	if h.svc.Source == nil {
		return nil, huma.Error503ServiceUnavailable("Sources not available")
	}
	source, _, err := h.svc.Layer.DataBinding(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	if source == "" {
		return nil, huma.Error404NotFound("layer has no source")
	}

	q := service.FeatureQuery{Limit: input.Limit}
	switch len(input.BBox) {
	case 0:
	case 4:
		q.Within = orb.Bound{
			Min: orb.Point{input.BBox[0], input.BBox[1]},
			Max: orb.Point{input.BBox[2], input.BBox[3]},
		}
	default:
		return nil, huma.Error400BadRequest("bbox needs four numbers: minX,minY,maxX,maxY")
	}

	lf, err := h.svc.Layer.Filter(input.Path)
	if err != nil {
		return nil, apiError(err)
	}
	q.Filter = lf.Filter

	res, err := h.svc.Source.Features(source, q)
	if err != nil {
		return nil, apiError(err)
	}
	body := FeaturesBody{
		Filter:   lf.Filter,
		Total:    res.Total,
		Matched:  res.Matched,
		Features: res.Features,
	}
	if res.Matched > 0 {
		body.BBox = []float64{res.Bound.Min[0], res.Bound.Min[1], res.Bound.Max[0], res.Bound.Max[1]}
	}
	return &struct{ Body FeaturesBody }{Body: body}, nil
}
