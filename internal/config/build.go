package config

import (
	"fmt"

	"github.com/joeblew999/plat-layers/internal/filter"
	"github.com/joeblew999/plat-layers/internal/layertree"
)

// Build creates the layer tree described by d. Every node starts as
// NewInstance.
func (d *Document) Build() (*layertree.Tree, error) {
	t, err := layertree.New(d.Service)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	for _, n := range d.Layers {
		if err := addNode(t, t.Root(), n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func addNode(t *layertree.Tree, parent layertree.NodeID, n Node) error {
	switch n.Kind {
	case KindGroup:
		g, err := t.AddGroup(parent, n.ID)
		if err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := addNode(t, g, c); err != nil {
				return err
			}
		}
		return nil

	case KindLayer:
		if len(n.Children) > 0 {
			return fmt.Errorf("%s/%s: %w", t.Path(parent), n.ID, layertree.ErrNotGroup)
		}
		l, err := t.AddLayer(parent, n.ID)
		if err != nil {
			return err
		}
		if err := t.SetData(l, n.Source, n.Table); err != nil {
			return err
		}
		if err := filter.CheckFreeText(n.Filter); err != nil {
			return fmt.Errorf("%s: %w", t.Path(l), err)
		}
		if err := t.SetFilter(l, n.Filter); err != nil {
			return err
		}
		if err := t.SetFields(l, n.Fields); err != nil {
			return err
		}
		return t.SetStyle(l, n.Style)
	}
	return fmt.Errorf("%s/%s: unknown node kind %q", t.Path(parent), n.ID, n.Kind)
}

// FromTree describes t as a document, including current style visibility
// and free-text filters. Statuses are runtime state and are not saved.
func FromTree(t *layertree.Tree) *Document {
	d := &Document{Service: t.ID(t.Root())}
	for _, c := range t.Children(t.Root()) {
		d.Layers = append(d.Layers, nodeOf(t, c))
	}
	return d
}

func nodeOf(t *layertree.Tree, n layertree.NodeID) Node {
	if t.Kind(n) == layertree.GroupKind {
		out := Node{Kind: KindGroup, ID: t.ID(n)}
		for _, c := range t.Children(n) {
			out.Children = append(out.Children, nodeOf(t, c))
		}
		return out
	}
	return Node{
		Kind:   KindLayer,
		ID:     t.ID(n),
		Source: t.Source(n),
		Table:  t.Table(n),
		Filter: t.Filter(n),
		Fields: t.Fields(n),
		Style:  t.Style(n).Clone(),
	}
}
