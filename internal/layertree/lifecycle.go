package layertree

import (
	"fmt"
	"slices"
)

// Observer receives status change events.
type Observer func(StatusChanged)

// Coordinator applies lifecycle transitions to a Tree and keeps group
// statuses in line with their children.
type Coordinator struct {
	tree      *Tree
	observers []subscription
	nextSub   int
}

type subscription struct {
	id int
	fn Observer
}

// NewCoordinator returns a coordinator over t.
func NewCoordinator(t *Tree) *Coordinator {
	return &Coordinator{tree: t}
}

// Tree returns the coordinated tree.
func (c *Coordinator) Tree() *Tree {
	return c.tree
}

// Subscribe registers fn for every StatusChanged event. The returned func
// removes the subscription.
func (c *Coordinator) Subscribe(fn Observer) (cancel func()) {
	id := c.nextSub
	c.nextSub++
	c.observers = append(c.observers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range c.observers {
			if s.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

func (c *Coordinator) emit(n NodeID) {
	ev := StatusChanged{LayerPath: c.tree.nodes[n].path, Status: c.tree.nodes[n].status}
	for _, s := range slices.Clone(c.observers) {
		s.fn(ev)
	}
}

// SetStatus moves n to status s.
//
// A status lower than the current one is rejected with a
// *StatusRegressionError, except Loading which is always accepted so that a
// loaded or failed layer can be fetched again. Setting the current status is
// a no-op and emits nothing.
func (c *Coordinator) SetStatus(n NodeID, s Status) error {
	if !c.tree.valid(n) {
		return fmt.Errorf("node %d: %w", n, ErrNotFound)
	}
	if !s.Valid() {
		return fmt.Errorf("%s: invalid status %d", c.tree.nodes[n].path, int(s))
	}
	nd := &c.tree.nodes[n]
	if s == nd.status {
		return nil
	}
	if s != Loading && s.Weight() < nd.status.Weight() {
		return &StatusRegressionError{Path: nd.path, From: nd.status, To: s}
	}
	nd.status = s
	c.emit(n)
	return nil
}

// PropagateToAncestors recomputes the status of each ancestor of n from its
// direct children, stopping at the first ancestor whose status does not
// change.
func (c *Coordinator) PropagateToAncestors(n NodeID) {
	if !c.tree.valid(n) {
		return
	}
	for p := c.tree.nodes[n].parent; p != None; p = c.tree.nodes[p].parent {
		next, ok := c.derive(p)
		if !ok || next == c.tree.nodes[p].status {
			return
		}
		c.tree.nodes[p].status = next
		c.emit(p)
	}
}

// derive computes a group's status from its children. ok is false when the
// children do not determine a status.
func (c *Coordinator) derive(g NodeID) (s Status, ok bool) {
	kids := c.tree.nodes[g].children
	if len(kids) == 0 {
		return 0, false
	}
	allLoaded, allSettled := true, true
	for _, k := range kids {
		switch c.tree.nodes[k].status {
		case Loading:
			return Loading, true
		case Loaded:
		case Error:
			allLoaded = false
		default:
			allLoaded, allSettled = false, false
		}
	}
	switch {
	case allLoaded:
		return Loaded, true
	case allSettled:
		return Error, true
	}
	return 0, false
}

// Update sets n's status and propagates the change to its ancestors. This is
// what a loader calls when a layer changes phase.
func (c *Coordinator) Update(n NodeID, s Status) error {
	if err := c.SetStatus(n, s); err != nil {
		return err
	}
	c.PropagateToAncestors(n)
	return nil
}

// AllStatusesAtLeast reports whether every layer under the given nodes has at
// least the weight of threshold. Groups are unwrapped recursively; a group
// without layers does not block.
func (c *Coordinator) AllStatusesAtLeast(nodes []NodeID, threshold Status) bool {
	for _, n := range nodes {
		if !c.tree.valid(n) {
			return false
		}
		ok := true
		c.tree.Walk(n, func(m NodeID) bool {
			nd := c.tree.nodes[m]
			if nd.kind == LayerKind && nd.status.Weight() < threshold.Weight() {
				ok = false
			}
			return ok
		})
		if !ok {
			return false
		}
	}
	return true
}
