// Package expr parses and evaluates the filter language emitted by package
// filter, so that a filter can be applied in-process to feature properties.
//
// Grammar, loosest binding first:
//
//	expression = and { OR and }
//	and        = not { AND not }
//	not        = NOT not | "(" expression ")" | comparison
//	comparison = operand ( op operand | IN "(" literal { "," literal } ")" )
//	operand    = literal | field
//	literal    = number | 'string' | DATE 'string'
//
// Keywords are case-insensitive. Free-text layer filters that stay within
// this subset can be evaluated too.
package expr

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i:AND|OR|NOT|IN|DATE)\b`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
	{Name: "Number", Pattern: `[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|=|<|>`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is a parsed filter: a disjunction of conjunctions.
type Expression struct {
	Or []*AndTerm `@@ ( "OR" @@ )*`
}

type AndTerm struct {
	And []*NotTerm `@@ ( "AND" @@ )*`
}

type NotTerm struct {
	Not     *NotTerm `  "NOT" @@`
	Primary *Primary `| @@`
}

type Primary struct {
	Sub *Expression `  "(" @@ ")"`
	Cmp *Comparison `| @@`
}

type Comparison struct {
	Left  *Operand   `@@`
	Op    string     `( @Operator`
	Right *Operand   `  @@`
	In    []*Literal `| "IN" "(" @@ ( "," @@ )* ")" )`
}

type Operand struct {
	Lit   *Literal `  @@`
	Field *string  `| @Ident`
}

type Literal struct {
	Date   *string  `  "DATE" @String`
	Number *float64 `| @Number`
	Str    *string  `| @String`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// Parse parses a filter expression.
func Parse(filter string) (*Expression, error) {
	e, err := parser.ParseString("", filter)
	if err != nil {
		return nil, fmt.Errorf("parsing filter: %w", err)
	}
	return e, nil
}

// Fields returns the field names referenced by e, in order of first use.
func (e *Expression) Fields() []string {
	var out []string
	seen := map[string]bool{}
	add := func(o *Operand) {
		if o != nil && o.Field != nil && !seen[*o.Field] {
			seen[*o.Field] = true
			out = append(out, *o.Field)
		}
	}
	var walk func(*Expression)
	var walkNot func(*NotTerm)
	walkNot = func(n *NotTerm) {
		switch {
		case n.Not != nil:
			walkNot(n.Not)
		case n.Primary.Sub != nil:
			walk(n.Primary.Sub)
		default:
			add(n.Primary.Cmp.Left)
			add(n.Primary.Cmp.Right)
		}
	}
	walk = func(x *Expression) {
		for _, a := range x.Or {
			for _, n := range a.And {
				walkNot(n)
			}
		}
	}
	walk(e)
	return out
}
