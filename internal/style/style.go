// Package style holds the passive symbology model attached to layer nodes.
//
// A layer's Model carries one Setting per geometry type. A Setting is either a
// single simple style, a unique-value classification over one or more fields,
// or a class-break classification over a single numeric field. Each category
// of a classification is an Entry with its own visibility flag; the filter
// compiler turns those flags into a query predicate.
package style

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind is the symbology kind of a Setting.
type Kind string

const (
	Simple      Kind = "simple"
	UniqueValue Kind = "uniqueValue"
	ClassBreaks Kind = "classBreaks"
)

// Valid reports whether k is a known symbology kind.
func (k Kind) Valid() bool {
	switch k {
	case Simple, UniqueValue, ClassBreaks:
		return true
	}
	return false
}

// GeometryType names the geometry a Setting applies to.
type GeometryType string

const (
	Point           GeometryType = "point"
	MultiPoint      GeometryType = "multiPoint"
	LineString      GeometryType = "lineString"
	MultiLineString GeometryType = "multiLineString"
	Polygon         GeometryType = "polygon"
	MultiPolygon    GeometryType = "multiPolygon"
)

// ErrNoEntry is returned when a visibility change names a missing entry.
var ErrNoEntry = errors.New("no such style entry")

// GeometryTypes lists the known geometry types in canonical order.
var GeometryTypes = []GeometryType{Point, MultiPoint, LineString, MultiLineString, Polygon, MultiPolygon}

// Entry is one category (unique value) or range (class break) of a Setting.
type Entry struct {
	// Visible is nil when the entry inherits the default visibility (shown).
	Visible *bool        `json:"visible,omitempty" doc:"Whether features of this category are shown (default true)"`
	Label   string       `json:"label" doc:"Legend label"`
	Values  []FieldValue `json:"values,omitempty" doc:"Field values (unique value) or [min, max] (class breaks)"`
}

// IsVisible resolves the inherited visibility.
func (e Entry) IsVisible() bool {
	return e.Visible == nil || *e.Visible
}

// Setting is the symbology for one geometry type.
type Setting struct {
	Kind       Kind     `json:"kind" enum:"simple,uniqueValue,classBreaks" doc:"Symbology kind"`
	Fields     []string `json:"fields,omitempty" doc:"Classification fields, in value order. Plain identifiers only"`
	HasDefault bool     `json:"hasDefault,omitempty" doc:"Last entry is the catch-all default category"`
	Entries    []Entry  `json:"entries" doc:"Categories or ranges"`
}

// Categories returns the entries that discriminate on values, i.e. every
// entry except the trailing default one.
func (s *Setting) Categories() []Entry {
	if s.HasDefault && len(s.Entries) > 0 {
		return s.Entries[:len(s.Entries)-1]
	}
	return s.Entries
}

// Default returns the default entry, if the setting has one.
func (s *Setting) Default() (Entry, bool) {
	if s.HasDefault && len(s.Entries) > 0 {
		return s.Entries[len(s.Entries)-1], true
	}
	return Entry{}, false
}

// AllVisible reports whether no entry is hidden.
func (s *Setting) AllVisible() bool {
	for _, e := range s.Entries {
		if !e.IsVisible() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the setting.
func (s *Setting) Clone() *Setting {
	c := &Setting{
		Kind:       s.Kind,
		Fields:     slices.Clone(s.Fields),
		HasDefault: s.HasDefault,
		Entries:    make([]Entry, len(s.Entries)),
	}
	for i, e := range s.Entries {
		c.Entries[i] = Entry{Label: e.Label, Values: slices.Clone(e.Values)}
		if e.Visible != nil {
			v := *e.Visible
			c.Entries[i].Visible = &v
		}
	}
	return c
}

// Validate checks the structural rules a compiler relies on.
func (s *Setting) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown style kind %q", s.Kind)
	}
	if len(s.Entries) == 0 {
		return errors.New("style has no entries")
	}
	if s.Kind == Simple {
		return nil
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%s style has no fields", s.Kind)
	}
	for _, f := range s.Fields {
		if err := checkFieldName(f); err != nil {
			return err
		}
	}
	for i, e := range s.Categories() {
		switch s.Kind {
		case UniqueValue:
			if len(e.Values) != len(s.Fields) {
				return fmt.Errorf("entry %d (%q): has %d values for %d fields", i, e.Label, len(e.Values), len(s.Fields))
			}
		case ClassBreaks:
			if len(e.Values) != 2 {
				return fmt.Errorf("entry %d (%q): class break needs [min, max], got %d values", i, e.Label, len(e.Values))
			}
		}
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkFieldName accepts names that can be written unquoted in a filter.
func checkFieldName(name string) error {
	if !fieldName.MatchString(name) {
		return fmt.Errorf("field %q is not a plain identifier", name)
	}
	switch strings.ToLower(name) {
	case "and", "or", "not", "in", "date":
		return fmt.Errorf("field %q is a filter keyword", name)
	}
	return nil
}

// Model is the full symbology of a layer, one Setting per geometry type.
type Model map[GeometryType]*Setting

// GeometryTypes returns the geometry types present in m, in canonical order.
// Unknown geometry types sort after the known ones, alphabetically.
func (m Model) GeometryTypes() []GeometryType {
	var out []GeometryType
	for _, g := range GeometryTypes {
		if _, ok := m[g]; ok {
			out = append(out, g)
		}
	}
	var extra []GeometryType
	for g := range m {
		if !slices.Contains(GeometryTypes, g) {
			extra = append(extra, g)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	if m == nil {
		return nil
	}
	c := make(Model, len(m))
	for g, s := range m {
		c[g] = s.Clone()
	}
	return c
}

// SetVisible sets the visibility of one entry of the setting for geometry g.
func (m Model) SetVisible(g GeometryType, index int, visible bool) error {
	s, ok := m[g]
	if !ok {
		return fmt.Errorf("%w: no style for geometry type %q", ErrNoEntry, g)
	}
	if index < 0 || index >= len(s.Entries) {
		return fmt.Errorf("%w: entry index %d out of range [0,%d)", ErrNoEntry, index, len(s.Entries))
	}
	s.Entries[index].Visible = &visible
	return nil
}

// SetAllVisible sets the visibility of every entry of every setting.
func (m Model) SetAllVisible(visible bool) {
	for _, s := range m {
		for i := range s.Entries {
			v := visible
			s.Entries[i].Visible = &v
		}
	}
}

// Bool returns a pointer to b, for building entries literally.
func Bool(b bool) *bool {
	return &b
}
