// Package filter compiles the visibility state of a layer's symbology into a
// boolean query predicate, and combines it with the layer's own filter.
//
// The emitted language is a small SQL subset: comparisons (=, <, <=, >, >=),
// IN lists, AND, OR, NOT, parentheses, numbers, 'strings' and date 'literals'.
// It is accepted as-is by DuckDB, Esri layerDefs and CQL-style filters.
package filter

import (
	"strings"

	"github.com/joeblew999/plat-layers/internal/style"
)

const (
	// AlwaysTrue selects every feature.
	AlwaysTrue = "(1=1)"
	// AlwaysFalse selects no feature.
	AlwaysFalse = "(1=0)"
)

// Result is a compiled filter plus the non-fatal problems met on the way.
type Result struct {
	Filter   string
	Warnings []error
}

// Compiler turns style settings into filter expressions. The zero value uses
// DistinctValuesFirst ordering. A Compiler holds no state between calls and
// may be shared across goroutines.
type Compiler struct {
	Ordering FieldOrderingStrategy
}

func (c *Compiler) ordering() FieldOrderingStrategy {
	if c == nil || c.Ordering == nil {
		return DistinctValuesFirst{}
	}
	return c.Ordering
}

// Compile returns the predicate selecting the visible categories of s.
// Field metadata only drives literal formatting.
func Compile(s *style.Setting, fields style.Fields) (string, error) {
	res, err := (*Compiler)(nil).Compile(s, fields)
	return res.Filter, err
}

// Compile returns the predicate selecting the visible categories of s.
func (c *Compiler) Compile(s *style.Setting, fields style.Fields) (Result, error) {
	if s == nil {
		return Result{}, &MalformedStyleError{Err: errNilSetting}
	}
	if err := s.Validate(); err != nil {
		return Result{}, &MalformedStyleError{Err: err}
	}

	lits := newLiterals(fields)
	var out string
	switch s.Kind {
	case style.Simple:
		out = AlwaysTrue
	case style.UniqueValue:
		out = c.uniqueValue(s, lits)
	case style.ClassBreaks:
		out = classBreaks(s, lits)
	}
	return Result{Filter: out, Warnings: lits.warnings}, nil
}

// CompileModel compiles every geometry type of m and ORs the distinct
// results. A model without settings, or with any setting showing everything,
// compiles to AlwaysTrue.
func (c *Compiler) CompileModel(m style.Model, fields style.Fields) (Result, error) {
	var (
		res   Result
		parts []string
		seen  = map[string]bool{}
	)
	for _, g := range m.GeometryTypes() {
		r, err := c.Compile(m[g], fields)
		if err != nil {
			if mse, ok := err.(*MalformedStyleError); ok {
				mse.Geometry = g
			}
			return Result{}, err
		}
		res.Warnings = append(res.Warnings, r.Warnings...)
		if r.Filter == AlwaysTrue {
			res.Filter = AlwaysTrue
			return res, nil
		}
		if !seen[r.Filter] {
			seen[r.Filter] = true
			parts = append(parts, r.Filter)
		}
	}

	switch len(parts) {
	case 0:
		res.Filter = AlwaysTrue
	case 1:
		res.Filter = parts[0]
	default:
		res.Filter = "(" + strings.Join(parts, " OR ") + ")"
	}
	return res, nil
}

// uniqueValue renders the visible categories as a decision trie.
//
// When the default category is visible, everything not explicitly hidden is
// shown, so the expression negates the hidden categories instead. A value
// tuple that appears both visible and hidden counts as visible.
func (c *Compiler) uniqueValue(s *style.Setting, lits *literals) string {
	if s.AllVisible() {
		return AlwaysTrue
	}

	var visible, hidden [][]style.FieldValue
	visibleKeys := map[string]bool{}
	for _, e := range s.Categories() {
		if e.IsVisible() {
			visible = append(visible, e.Values)
			visibleKeys[tupleKey(e.Values)] = true
		}
	}
	for _, e := range s.Categories() {
		if !e.IsVisible() && !visibleKeys[tupleKey(e.Values)] {
			hidden = append(hidden, e.Values)
		}
	}

	if def, ok := s.Default(); ok && def.IsVisible() {
		if len(hidden) == 0 {
			return AlwaysTrue
		}
		return "NOT " + wrap(c.renderTrie(s.Fields, hidden, lits))
	}
	if len(visible) == 0 {
		return AlwaysFalse
	}
	return wrap(c.renderTrie(s.Fields, visible, lits))
}

func (c *Compiler) renderTrie(fields []string, tuples [][]style.FieldValue, lits *literals) string {
	order := c.ordering().Order(fields, tuples)
	r := &trieRenderer{fields: fields, order: order, lits: lits}
	return r.render(buildTrie(tuples, order), 0)
}

// wrap parenthesizes a bare IN comparison; trie output that already starts
// with a parenthesis is a complete group.
func wrap(expr string) string {
	if strings.HasPrefix(expr, "(") {
		return expr
	}
	return "(" + expr + ")"
}

func tupleKey(vals []style.FieldValue) string {
	keys := make([]string, len(vals))
	for i, v := range vals {
		keys[i] = v.Key()
	}
	return strings.Join(keys, "\x00")
}
