package filter

import (
	"fmt"
	"strings"

	"github.com/joeblew999/plat-layers/internal/filter/expr"
	"github.com/joeblew999/plat-layers/internal/layertree"
)

// Combine ANDs a compiled style filter with a free-text filter. An empty
// compiled filter counts as AlwaysTrue; an empty free-text filter leaves the
// compiled one as is.
func Combine(compiled, freeText string) string {
	compiled = strings.TrimSpace(compiled)
	if compiled == "" {
		compiled = AlwaysTrue
	}
	free := strings.TrimSpace(freeText)
	if free == "" {
		return compiled
	}
	return compiled + " and (" + free + ")"
}

// CheckFreeText accepts an empty free-text filter or a single boolean
// expression of the filter language. Anything else, such as extra SQL
// statements, fails with ErrInvalidFreeText.
func CheckFreeText(freeText string) error {
	if strings.TrimSpace(freeText) == "" {
		return nil
	}
	if _, err := expr.Parse(freeText); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFreeText, err)
	}
	return nil
}

// Outcome is the final filter of a layer.
type Outcome struct {
	Filter string
	// Compiled is the style part alone; empty on fallback.
	Compiled string
	// Fallback is set when compiling failed and Filter is the last known-good
	// filter (or AlwaysTrue).
	Fallback bool
	Warnings []error
}

// Combinator produces the final filter of layer nodes.
type Combinator struct {
	Compiler *Compiler
}

// LayerFilter compiles the style of layer n, combines it with the layer's
// free-text filter and records the result as the layer's known-good filter.
//
// A malformed style does not fail the call: the previous known-good filter is
// returned with Fallback set, and the compile error is the first warning. Only
// a node that is not a layer yields an error.
func (c *Combinator) LayerFilter(t *layertree.Tree, n layertree.NodeID) (Outcome, error) {
	info, err := t.Info(n)
	if err != nil {
		return Outcome{}, err
	}
	if t.Kind(n) != layertree.LayerKind {
		return Outcome{}, fmt.Errorf("%s: %w", info.Path, layertree.ErrNotLayer)
	}

	res, err := c.Compiler.CompileModel(t.Style(n), t.Fields(n))
	if err != nil {
		prev, ok := t.AppliedFilter(n)
		if !ok {
			prev = AlwaysTrue
		}
		return Outcome{Filter: prev, Fallback: true, Warnings: []error{err}}, nil
	}

	out := Outcome{
		Filter:   Combine(res.Filter, t.Filter(n)),
		Compiled: res.Filter,
		Warnings: res.Warnings,
	}
	if err := t.SetAppliedFilter(n, out.Filter); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
