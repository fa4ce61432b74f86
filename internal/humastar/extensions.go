// x-datastar extensions for OpenAPI schemas.
//
// InjectExtensions walks registered schemas and adds:
//   - x-datastar (per-schema): signal prefix and the endpoint consuming it
//   - x-signal, x-sse (per-property): from Go struct tags
//
// A Datastar page can then bind its signals from the OpenAPI document
// instead of hard-coding names.
package humastar

import (
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// DatastarSchema is the "x-datastar" extension value.
type DatastarSchema struct {
	Prefix   string `json:"prefix"`
	Endpoint string `json:"endpoint,omitempty"`
}

// DatastarSchemaConfig registers a Go type for extension injection.
type DatastarSchemaConfig struct {
	Type     reflect.Type
	Prefix   string // signal prefix (e.g. "visibility")
	Endpoint string // path of the endpoint reading the signals
}

// InjectExtensions adds x-datastar, x-signal and x-sse extensions to the
// schemas of the configured types. Call after all routes are registered so
// schemas exist. It returns the number of schemas it touched.
func InjectExtensions(api huma.API, configs []DatastarSchemaConfig) int {
	schemas := api.OpenAPI().Components.Schemas.Map()

	n := 0
	for _, cfg := range configs {
		schema, ok := schemas[cfg.Type.Name()]
		if !ok {
			continue
		}
		if schema.Extensions == nil {
			schema.Extensions = map[string]any{}
		}
		schema.Extensions["x-datastar"] = DatastarSchema{
			Prefix:   cfg.Prefix,
			Endpoint: cfg.Endpoint,
		}
		injectPropertyExtensions(schema, cfg.Type)
		n++
	}
	return n
}

func injectPropertyExtensions(schema *huma.Schema, t reflect.Type) {
	for i := range t.NumField() {
		sf := t.Field(i)

		jsonName, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if jsonName == "" || jsonName == "-" {
			continue
		}
		prop, ok := schema.Properties[jsonName]
		if !ok {
			continue
		}

		ext := map[string]any{}
		if sig := sf.Tag.Get("signal"); sig != "" {
			ext["x-signal"] = sig
		}
		if sse := sf.Tag.Get("sse"); sse != "" {
			ext["x-sse"] = sse
		}
		if len(ext) == 0 {
			continue
		}
		if prop.Extensions == nil {
			prop.Extensions = map[string]any{}
		}
		for k, v := range ext {
			prop.Extensions[k] = v
		}
	}
}
