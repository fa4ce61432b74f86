// Package service contains the business logic of the layer server: the layer
// tree with its lifecycle and filters, and access to the layers' source data.
package service

// LayerFilter is the final filter of a layer and how it was obtained.
type LayerFilter struct {
	Path     string   `json:"path" doc:"Layer path" example:"city/transport/roads"`
	Filter   string   `json:"filter" doc:"Final filter: compiled style filter AND free-text filter" example:"NOT (type IN ('track')) and (lanes >= 1)"`
	Compiled string   `json:"compiled,omitempty" doc:"Filter compiled from the style visibility alone" example:"NOT (type IN ('track'))"`
	FreeText string   `json:"freeText,omitempty" doc:"Free-text layer filter" example:"lanes >= 1"`
	Fallback bool     `json:"fallback,omitempty" doc:"Style could not be compiled; Filter is the last known-good filter"`
	Warnings []string `json:"warnings,omitempty" doc:"Non-fatal problems met while compiling"`
}

// SourceFile represents a source data file (GeoJSON, etc.).
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"roads.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type: GeoJSON, CSV or GeoParquet" example:"GeoJSON"`
}
