package filter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/joeblew999/plat-layers/internal/style"
)

// span is one range of a class-break style. The default span, when present,
// is last and stands for everything above the last break.
type span struct {
	min, max  style.FieldValue
	visible   bool
	isDefault bool
}

// classBreaks renders the visible runs of consecutive ranges of s.
//
// A run starts with >= on its own minimum when it is the first range and with
// > on the previous range's maximum otherwise. It ends with <= on its own
// maximum, or is left open when it includes the visible default.
func classBreaks(s *style.Setting, lits *literals) string {
	if s.AllVisible() {
		return AlwaysTrue
	}

	spans := sortedSpans(s.Categories())
	if def, ok := s.Default(); ok {
		spans = append(spans, span{visible: def.IsVisible(), isDefault: true})
	}

	field := s.Fields[0]
	var runs []string
	for i := 0; i < len(spans); {
		if !spans[i].visible {
			i++
			continue
		}
		j := i
		for j+1 < len(spans) && spans[j+1].visible {
			j++
		}

		var bounds []string
		switch {
		case i == 0 && !spans[0].isDefault:
			bounds = append(bounds, field+" >= "+lits.format(field, spans[0].min))
		case i > 0:
			bounds = append(bounds, field+" > "+lits.format(field, spans[i-1].max))
		}
		if !spans[j].isDefault {
			bounds = append(bounds, field+" <= "+lits.format(field, spans[j].max))
		}
		if len(bounds) == 0 {
			return AlwaysTrue
		}
		runs = append(runs, "("+strings.Join(bounds, " AND ")+")")
		i = j + 1
	}

	switch len(runs) {
	case 0:
		return AlwaysFalse
	case 1:
		return runs[0]
	}
	return "(" + strings.Join(runs, " OR ") + ")"
}

// sortedSpans orders the ranges by their minimum when every minimum is
// numeric, and keeps the declared order otherwise.
func sortedSpans(entries []style.Entry) []span {
	spans := make([]span, len(entries))
	numeric := true
	for i, e := range entries {
		spans[i] = span{min: e.Values[0], max: e.Values[1], visible: e.IsVisible()}
		_, ok := e.Values[0].Float()
		numeric = numeric && ok
	}
	if numeric {
		slices.SortStableFunc(spans, func(a, b span) int {
			fa, _ := a.min.Float()
			fb, _ := b.min.Float()
			return cmp.Compare(fa, fb)
		})
	}
	return spans
}
