package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/service"
)

// EventHandler streams layer tree events to the Datastar UI via SSE.
type EventHandler struct {
	humastar.Handler
	layers *service.LayerService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(layers *service.LayerService) *EventHandler {
	return &EventHandler{layers: layers}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("editor"),
		huma.OperationDescription("Server-sent status and filter changes, as Datastar signal patches"),
	)
}

// Events sends the readiness signal, then one signal patch and one
// "layer-event" custom event per bus event until the client goes away.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		bus := h.layers.Bus()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		if err := sse.Signals(map[string]any{"ready": h.layers.Ready(layertree.Loaded)}); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := sse.Signals(h.eventSignals(ev)); err != nil {
					return
				}
				if err := sse.DispatchCustomEvent("layer-event", ev); err != nil {
					return
				}
			}
		}
	}), nil
}

func (h *EventHandler) eventSignals(ev service.Event) map[string]any {
	signals := map[string]any{
		"lastpath":   ev.Path,
		"laststatus": ev.Status.String(),
		"ready":      h.layers.Ready(layertree.Loaded),
	}
	if ev.Type == service.FilterEvent {
		signals["filter"] = ev.Filter
	}
	return signals
}
