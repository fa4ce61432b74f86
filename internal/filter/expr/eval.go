package expr

import (
	"cmp"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record holds the attribute values of one feature.
type Record map[string]any

// Match parses filter and evaluates it against rec.
func Match(filter string, rec Record) (bool, error) {
	e, err := Parse(filter)
	if err != nil {
		return false, err
	}
	return e.Eval(rec), nil
}

// truth is a three-valued SQL truth value.
type truth int8

const (
	unknown truth = iota
	no
	yes
)

func truthOf(b bool) truth {
	if b {
		return yes
	}
	return no
}

// Eval reports whether rec satisfies e. A comparison involving a missing or
// null attribute is unknown, as in SQL: NOT keeps it unknown, AND and OR
// follow SQL's three-valued logic and an unknown result does not match.
func (e *Expression) Eval(rec Record) bool {
	return e.eval(rec) == yes
}

func (e *Expression) eval(rec Record) truth {
	out := no
	for _, a := range e.Or {
		switch a.eval(rec) {
		case yes:
			return yes
		case unknown:
			out = unknown
		}
	}
	return out
}

func (a *AndTerm) eval(rec Record) truth {
	out := yes
	for _, n := range a.And {
		switch n.eval(rec) {
		case no:
			return no
		case unknown:
			out = unknown
		}
	}
	return out
}

func (n *NotTerm) eval(rec Record) truth {
	if n.Not != nil {
		switch n.Not.eval(rec) {
		case yes:
			return no
		case no:
			return yes
		}
		return unknown
	}
	if n.Primary.Sub != nil {
		return n.Primary.Sub.eval(rec)
	}
	return n.Primary.Cmp.eval(rec)
}

func (c *Comparison) eval(rec Record) truth {
	left := c.Left.value(rec)
	if left.kind == nullValue {
		return unknown
	}
	if c.Right == nil {
		out := no
		for _, l := range c.In {
			r, ok := compare(left, l.value())
			switch {
			case !ok:
				out = unknown
			case r == 0:
				return yes
			}
		}
		return out
	}

	r, ok := compare(left, c.Right.value(rec))
	if !ok {
		return unknown
	}
	switch c.Op {
	case "=":
		return truthOf(r == 0)
	case "<>", "!=":
		return truthOf(r != 0)
	case "<":
		return truthOf(r < 0)
	case "<=":
		return truthOf(r <= 0)
	case ">":
		return truthOf(r > 0)
	case ">=":
		return truthOf(r >= 0)
	}
	return unknown
}

type valueKind int

const (
	nullValue valueKind = iota
	numValue
	strValue
	dateValue
)

type value struct {
	kind valueKind
	num  float64
	str  string
	t    time.Time
}

func (o *Operand) value(rec Record) value {
	if o.Lit != nil {
		return o.Lit.value()
	}
	v, ok := rec[*o.Field]
	if !ok {
		return value{}
	}
	return fromAny(v)
}

func (l *Literal) value() value {
	switch {
	case l.Date != nil:
		t, ok := parseDate(unquote(*l.Date))
		if !ok {
			return value{}
		}
		return value{kind: dateValue, t: t}
	case l.Number != nil:
		return value{kind: numValue, num: *l.Number}
	case l.Str != nil:
		return value{kind: strValue, str: unquote(*l.Str)}
	}
	return value{}
}

func fromAny(v any) value {
	switch x := v.(type) {
	case nil:
		return value{}
	case float64:
		return value{kind: numValue, num: x}
	case float32:
		return value{kind: numValue, num: float64(x)}
	case int:
		return value{kind: numValue, num: float64(x)}
	case int32:
		return value{kind: numValue, num: float64(x)}
	case int64:
		return value{kind: numValue, num: float64(x)}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return value{kind: strValue, str: x.String()}
		}
		return value{kind: numValue, num: f}
	case bool:
		if x {
			return value{kind: numValue, num: 1}
		}
		return value{kind: numValue, num: 0}
	case time.Time:
		return value{kind: dateValue, t: x}
	case string:
		return value{kind: strValue, str: x}
	}
	return value{}
}

// compare orders a against b. Dates win over the other kinds, then numbers;
// strings that do not parse as the other side's kind compare as text.
func compare(a, b value) (int, bool) {
	if a.kind == nullValue || b.kind == nullValue {
		return 0, false
	}
	if a.kind == dateValue || b.kind == dateValue {
		ta, okA := asDate(a)
		tb, okB := asDate(b)
		if !okA || !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if a.kind == numValue || b.kind == numValue {
		fa, okA := asNum(a)
		fb, okB := asNum(b)
		if okA && okB {
			return cmp.Compare(fa, fb), true
		}
	}
	return strings.Compare(asText(a), asText(b)), true
}

func asDate(v value) (time.Time, bool) {
	switch v.kind {
	case dateValue:
		return v.t, true
	case numValue:
		return time.UnixMilli(int64(v.num)).UTC(), true
	case strValue:
		return parseDate(v.str)
	}
	return time.Time{}, false
}

func asNum(v value) (float64, bool) {
	switch v.kind {
	case numValue:
		return v.num, true
	case strValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return f, err == nil
	}
	return 0, false
}

func asText(v value) string {
	if v.kind == numValue {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return strings.ReplaceAll(s, "''", "'")
}
