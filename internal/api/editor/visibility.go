package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/service"
)

// VisibilityHandler toggles style entries from the editor legend.
type VisibilityHandler struct {
	humastar.Handler
	layers *service.LayerService
}

func NewVisibilityHandler(layers *service.LayerService) *VisibilityHandler {
	return &VisibilityHandler{layers: layers}
}

func (h *VisibilityHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/editor/visibility", h.Toggle, huma.OperationTags("editor"))
}

// Toggle applies a visibility change and patches the recomputed filter back
// into the page signals.
func (h *VisibilityHandler) Toggle(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	v := ParseVisibilitySignals(signals)
	if v.Path == "" {
		return nil, huma.Error400BadRequest("Layer path is required")
	}
	if !v.All() && v.Geometry == "" {
		return nil, huma.Error400BadRequest("Geometry type is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := h.apply(sse, v); err != nil {
			slog.Debug("visibility stream closed", "path", v.Path, "err", err)
		}
	}), nil
}

// legend is the part of an SSE stream a visibility change writes to.
type legend interface {
	Signals(signals any) error
	Success(msg string) error
	Error(msg string) error
}

// apply performs the change described by v and reports it on out. It stops
// at the first failed write.
func (h *VisibilityHandler) apply(out legend, v VisibilitySignals) error {
	var (
		lf  service.LayerFilter
		err error
	)
	if v.All() {
		lf, err = h.layers.SetAllVisible(v.Path, v.Visible)
	} else {
		lf, err = h.layers.SetVisibility(v.Path, v.GeometryType(), v.Index, v.Visible)
	}
	if err != nil {
		return out.Error(err.Error())
	}

	if err := out.Signals(map[string]any{"filter": lf.Filter}); err != nil {
		return err
	}
	state := "hidden"
	if v.Visible {
		state = "shown"
	}
	return out.Success(fmt.Sprintf("%s: entries %s", lf.Path, state))
}
