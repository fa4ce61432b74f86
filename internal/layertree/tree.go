// Package layertree models a map's layer configuration as a tree of groups and
// layers, and coordinates each node's loading lifecycle.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID. Each
// node keeps the index of its parent instead of a pointer, so walking towards
// the root is a plain loop bounded by the tree's depth.
//
// The tree is not safe for concurrent use. Callers serialize mutations per map
// instance (see service.LayerService).
package layertree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joeblew999/plat-layers/internal/style"
)

// NodeID addresses a node in its Tree's arena.
type NodeID int

// None is the parent of the root.
const None NodeID = -1

// Kind tells groups from layers.
type Kind uint8

const (
	GroupKind Kind = iota
	LayerKind
)

func (k Kind) String() string {
	if k == LayerKind {
		return "layer"
	}
	return "group"
}

// node is the arena record. Group nodes only use children; layer nodes only
// use the layer fields.
type node struct {
	id       string
	path     string
	kind     Kind
	status   Status
	parent   NodeID
	children []NodeID

	// layer fields
	style         style.Model
	filter        string
	fields        style.Fields
	source        string
	table         string
	appliedFilter string
}

// Tree is the layer configuration tree of one map service.
type Tree struct {
	nodes  []node
	byPath map[string]NodeID
}

// New creates a tree whose root group is the service itself.
func New(serviceID string) (*Tree, error) {
	if err := checkID(serviceID); err != nil {
		return nil, err
	}
	t := &Tree{byPath: make(map[string]NodeID)}
	t.nodes = append(t.nodes, node{id: serviceID, path: serviceID, kind: GroupKind, parent: None})
	t.byPath[serviceID] = 0
	return t, nil
}

// Root returns the service node.
func (t *Tree) Root() NodeID {
	return 0
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// AddGroup appends a group named id under parent.
func (t *Tree) AddGroup(parent NodeID, id string) (NodeID, error) {
	return t.add(parent, id, GroupKind)
}

// AddLayer appends a layer named id under parent.
func (t *Tree) AddLayer(parent NodeID, id string) (NodeID, error) {
	return t.add(parent, id, LayerKind)
}

func (t *Tree) add(parent NodeID, id string, kind Kind) (NodeID, error) {
	if !t.valid(parent) {
		return None, fmt.Errorf("parent %d: %w", parent, ErrNotFound)
	}
	if err := checkID(id); err != nil {
		return None, err
	}
	p := &t.nodes[parent]
	if p.kind != GroupKind {
		return None, fmt.Errorf("%s: %w", p.path, ErrNotGroup)
	}
	path := p.path + "/" + id
	if _, exists := t.byPath[path]; exists {
		return None, fmt.Errorf("%s: %w", path, ErrDuplicateID)
	}

	n := NodeID(len(t.nodes))
	p.children = append(p.children, n)
	t.nodes = append(t.nodes, node{id: id, path: path, kind: kind, parent: parent})
	t.byPath[path] = n
	return n, nil
}

func checkID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return nil
}

func (t *Tree) valid(n NodeID) bool {
	return n >= 0 && int(n) < len(t.nodes)
}

// Lookup finds a node by its path.
func (t *Tree) Lookup(path string) (NodeID, bool) {
	n, ok := t.byPath[strings.Trim(path, "/")]
	return n, ok
}

// ID returns the node's id among its siblings.
func (t *Tree) ID(n NodeID) string {
	if !t.valid(n) {
		return ""
	}
	return t.nodes[n].id
}

// Path returns the slash-separated path from the root to n.
func (t *Tree) Path(n NodeID) string {
	if !t.valid(n) {
		return ""
	}
	return t.nodes[n].path
}

// Kind returns whether n is a group or a layer.
func (t *Tree) Kind(n NodeID) Kind {
	if !t.valid(n) {
		return GroupKind
	}
	return t.nodes[n].kind
}

// Status returns the node's current status.
func (t *Tree) Status(n NodeID) Status {
	if !t.valid(n) {
		return NewInstance
	}
	return t.nodes[n].status
}

// Parent returns the node's parent, or None for the root.
func (t *Tree) Parent(n NodeID) NodeID {
	if !t.valid(n) {
		return None
	}
	return t.nodes[n].parent
}

// Children returns a copy of the group's ordered children.
func (t *Tree) Children(n NodeID) []NodeID {
	if !t.valid(n) {
		return nil
	}
	return slices.Clone(t.nodes[n].children)
}

// Depth returns the number of edges between n and the root.
func (t *Tree) Depth(n NodeID) int {
	d := 0
	for p := t.Parent(n); p != None; p = t.Parent(p) {
		d++
	}
	return d
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(n NodeID, fn func(NodeID) bool) {
	if !t.valid(n) {
		return
	}
	stack := []NodeID{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		kids := t.nodes[cur].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Layers returns every layer under n (n included), in pre-order.
func (t *Tree) Layers(n NodeID) []NodeID {
	var out []NodeID
	t.Walk(n, func(c NodeID) bool {
		if t.nodes[c].kind == LayerKind {
			out = append(out, c)
		}
		return true
	})
	return out
}

func (t *Tree) layer(n NodeID) (*node, error) {
	if !t.valid(n) {
		return nil, fmt.Errorf("node %d: %w", n, ErrNotFound)
	}
	nd := &t.nodes[n]
	if nd.kind != LayerKind {
		return nil, fmt.Errorf("%s: %w", nd.path, ErrNotLayer)
	}
	return nd, nil
}

// Style returns the layer's symbology, or nil when it has none.
func (t *Tree) Style(n NodeID) style.Model {
	if nd, err := t.layer(n); err == nil {
		return nd.style
	}
	return nil
}

// SetStyle attaches a symbology to a layer.
func (t *Tree) SetStyle(n NodeID, m style.Model) error {
	nd, err := t.layer(n)
	if err != nil {
		return err
	}
	nd.style = m
	return nil
}

// Filter returns the layer's free-text filter.
func (t *Tree) Filter(n NodeID) string {
	if nd, err := t.layer(n); err == nil {
		return nd.filter
	}
	return ""
}

// SetFilter sets the layer's free-text filter.
func (t *Tree) SetFilter(n NodeID, filter string) error {
	nd, err := t.layer(n)
	if err != nil {
		return err
	}
	nd.filter = filter
	return nil
}

// Fields returns the layer's field metadata.
func (t *Tree) Fields(n NodeID) style.Fields {
	if nd, err := t.layer(n); err == nil {
		return nd.fields
	}
	return nil
}

// SetFields sets the layer's field metadata.
func (t *Tree) SetFields(n NodeID, fields style.Fields) error {
	nd, err := t.layer(n)
	if err != nil {
		return err
	}
	nd.fields = fields
	return nil
}

// Source returns the layer's data source (a file name under the sources
// directory).
func (t *Tree) Source(n NodeID) string {
	if nd, err := t.layer(n); err == nil {
		return nd.source
	}
	return ""
}

// Table returns the layer's DuckDB table name.
func (t *Tree) Table(n NodeID) string {
	if nd, err := t.layer(n); err == nil {
		return nd.table
	}
	return ""
}

// SetData binds a layer to its source file and table.
func (t *Tree) SetData(n NodeID, source, table string) error {
	nd, err := t.layer(n)
	if err != nil {
		return err
	}
	nd.source, nd.table = source, table
	return nil
}

// AppliedFilter returns the last filter successfully computed for the layer.
func (t *Tree) AppliedFilter(n NodeID) (string, bool) {
	nd, err := t.layer(n)
	if err != nil || nd.appliedFilter == "" {
		return "", false
	}
	return nd.appliedFilter, true
}

// SetAppliedFilter records the last known-good filter of a layer.
func (t *Tree) SetAppliedFilter(n NodeID, filter string) error {
	nd, err := t.layer(n)
	if err != nil {
		return err
	}
	nd.appliedFilter = filter
	return nil
}

// Info is a read-only snapshot of a node.
type Info struct {
	Node     NodeID   `json:"-"`
	ID       string   `json:"id" doc:"Node id, unique among siblings" example:"highways"`
	Path     string   `json:"path" doc:"Slash-separated path from the service root" example:"roads/highways"`
	Kind     string   `json:"kind" enum:"group,layer" doc:"Node kind"`
	Status   Status   `json:"status" doc:"Lifecycle status"`
	Parent   string   `json:"parent,omitempty" doc:"Parent path"`
	Children []string `json:"children,omitempty" doc:"Child paths (groups only)"`
	Filter   string   `json:"filter,omitempty" doc:"Free-text layer filter (layers only)"`
	Source   string   `json:"source,omitempty" doc:"Source file (layers only)"`
	Table    string   `json:"table,omitempty" doc:"DuckDB table (layers only)"`
}

// Info returns a snapshot of n.
func (t *Tree) Info(n NodeID) (Info, error) {
	if !t.valid(n) {
		return Info{}, fmt.Errorf("node %d: %w", n, ErrNotFound)
	}
	nd := t.nodes[n]
	info := Info{
		Node:   n,
		ID:     nd.id,
		Path:   nd.path,
		Kind:   nd.kind.String(),
		Status: nd.status,
		Filter: nd.filter,
		Source: nd.source,
		Table:  nd.table,
	}
	if nd.parent != None {
		info.Parent = t.nodes[nd.parent].path
	}
	for _, c := range nd.children {
		info.Children = append(info.Children, t.nodes[c].path)
	}
	return info, nil
}
