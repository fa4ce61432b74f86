// Package editor contains Datastar SSE handlers for the layer editor UI.
package editor

import (
	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/style"
)

// VisibilitySignals are the signals a visibility toggle posts.
// Signal names are lowercase due to data-bind behavior.
type VisibilitySignals struct {
	Path     string `json:"path" signal:"path" doc:"Layer path" example:"city/transport/roads"`
	Geometry string `json:"geometry" signal:"geometry" doc:"Geometry type of the style setting" example:"lineString"`
	Index    int    `json:"index" signal:"index" doc:"Entry index, -1 for every entry"`
	Visible  bool   `json:"visible" signal:"visible" doc:"Show or hide"`
}

// ParseVisibilitySignals reads a visibility toggle from Datastar signals.
// A missing index means every entry.
func ParseVisibilitySignals(s humastar.Signals) VisibilitySignals {
	v := VisibilitySignals{
		Path:     s.String("path"),
		Geometry: s.String("geometry"),
		Index:    -1,
		Visible:  s.Bool("visible"),
	}
	if s.Has("index") {
		v.Index = s.Int("index")
	}
	return v
}

// All reports whether the toggle targets every entry of the layer.
func (v VisibilitySignals) All() bool {
	return v.Index < 0
}

// GeometryType returns the geometry as a style geometry type.
func (v VisibilitySignals) GeometryType() style.GeometryType {
	return style.GeometryType(v.Geometry)
}
