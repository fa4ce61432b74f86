package filter

import (
	"strings"

	"github.com/joeblew999/plat-layers/internal/style"
)

// trieNode is one value test of the decision trie. The root carries no value;
// nodes at depth d test the field at position d of the ordering.
type trieNode struct {
	value    style.FieldValue
	children []*trieNode
	index    map[string]*trieNode
}

func (n *trieNode) child(v style.FieldValue) *trieNode {
	key := v.Key()
	if c, ok := n.index[key]; ok {
		return c
	}
	if n.index == nil {
		n.index = map[string]*trieNode{}
	}
	c := &trieNode{value: v}
	n.index[key] = c
	n.children = append(n.children, c)
	return c
}

// buildTrie inserts the tuples, in order, following the field ordering.
// Equal prefixes share nodes.
func buildTrie(tuples [][]style.FieldValue, order []int) *trieNode {
	root := &trieNode{}
	for _, t := range tuples {
		cur := root
		for _, fi := range order {
			cur = cur.child(t[fi])
		}
	}
	return root
}

// trieRenderer writes a trie as a boolean expression.
type trieRenderer struct {
	fields []string
	order  []int
	lits   *literals
}

// render writes the children of n, which test the field at position level of
// the ordering. The result is either a bare IN comparison or a parenthesized
// expression, so it can be nested without further wrapping.
func (r *trieRenderer) render(n *trieNode, level int) string {
	field := r.fields[r.order[level]]

	if level == len(r.order)-1 {
		vals := make([]string, len(n.children))
		for i, c := range n.children {
			vals[i] = r.lits.format(field, c.value)
		}
		return field + " IN (" + strings.Join(vals, ", ") + ")"
	}

	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = "(" + field + " = " + r.lits.format(field, c.value) + " AND " + r.render(c, level+1) + ")"
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
