package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joeblew999/plat-layers/internal/config"
	"github.com/joeblew999/plat-layers/internal/filter"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/style"
)

// LayerService owns the layer tree of one map service: node lifecycle,
// symbology visibility and the layer filters derived from it.
type LayerService struct {
	mu         sync.RWMutex
	tree       *layertree.Tree
	coord      *layertree.Coordinator
	combinator *filter.Combinator
	bus        *EventBus
	logger     *slog.Logger
	savePath   string
}

// Option configures a LayerService.
type Option func(*LayerService)

// WithLogger sets the service logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *LayerService) { s.logger = l }
}

// WithCompiler replaces the default filter compiler.
func WithCompiler(c *filter.Compiler) Option {
	return func(s *LayerService) { s.combinator.Compiler = c }
}

// WithSavePath persists every configuration change to path.
func WithSavePath(path string) Option {
	return func(s *LayerService) { s.savePath = path }
}

// NewLayerService builds the tree described by doc.
func NewLayerService(doc *config.Document, opts ...Option) (*LayerService, error) {
	tree, err := doc.Build()
	if err != nil {
		return nil, err
	}
	s := &LayerService{
		tree:       tree,
		coord:      layertree.NewCoordinator(tree),
		combinator: &filter.Combinator{Compiler: &filter.Compiler{}},
		bus:        NewEventBus(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.coord.Subscribe(func(e layertree.StatusChanged) {
		s.bus.Publish(Event{Type: StatusEvent, Path: e.LayerPath, Status: e.Status})
	})
	for _, n := range tree.Layers(tree.Root()) {
		s.layerFilter(n)
	}
	return s, nil
}

// LoadLayerService reads the layer document name from dataDir. Changes are
// written back to the same file.
func LoadLayerService(dataDir, name string, opts ...Option) (*LayerService, error) {
	path := filepath.Join(dataDir, name)
	doc, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewLayerService(doc, append([]Option{WithSavePath(path)}, opts...)...)
}

// Bus returns the bus on which tree changes are published.
func (s *LayerService) Bus() *EventBus {
	return s.bus
}

// ServiceID returns the id of the root node.
func (s *LayerService) ServiceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.ID(s.tree.Root())
}

// lookup resolves a node path. Paths may omit the leading service id.
func (s *LayerService) lookup(path string) (layertree.NodeID, error) {
	path = strings.Trim(path, "/")
	if n, ok := s.tree.Lookup(path); ok {
		return n, nil
	}
	if n, ok := s.tree.Lookup(s.tree.ID(s.tree.Root()) + "/" + path); ok && path != "" {
		return n, nil
	}
	return layertree.None, fmt.Errorf("%q: %w", path, layertree.ErrNotFound)
}

func (s *LayerService) lookupLayer(path string) (layertree.NodeID, error) {
	n, err := s.lookup(path)
	if err != nil {
		return n, err
	}
	if s.tree.Kind(n) != layertree.LayerKind {
		return layertree.None, fmt.Errorf("%s: %w", s.tree.Path(n), layertree.ErrNotLayer)
	}
	return n, nil
}

// List returns a snapshot of every node in pre-order.
func (s *LayerService) List() []layertree.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []layertree.Info
	s.tree.Walk(s.tree.Root(), func(n layertree.NodeID) bool {
		if info, err := s.tree.Info(n); err == nil {
			out = append(out, info)
		}
		return true
	})
	return out
}

// Get returns a snapshot of the node at path.
func (s *LayerService) Get(path string) (layertree.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.lookup(path)
	if err != nil {
		return layertree.Info{}, err
	}
	return s.tree.Info(n)
}

// UpdateStatus sets the status of a node and propagates it to its
// ancestors. A regression is logged and returned as an error, leaving the
// tree unchanged.
func (s *LayerService) UpdateStatus(path string, status layertree.Status) (layertree.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookup(path)
	if err != nil {
		return layertree.Info{}, err
	}
	if err := s.coord.Update(n, status); err != nil {
		var re *layertree.StatusRegressionError
		if errors.As(err, &re) {
			s.logger.Warn("status regression rejected",
				"path", re.Path, "from", re.From.String(), "to", re.To.String())
		}
		return layertree.Info{}, err
	}
	return s.tree.Info(n)
}

// Ready reports whether every node has reached threshold.
func (s *LayerService) Ready(threshold layertree.Status) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coord.AllStatusesAtLeast([]layertree.NodeID{s.tree.Root()}, threshold)
}

// Filter returns the current final filter of the layer at path.
func (s *LayerService) Filter(path string) (LayerFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return LayerFilter{}, err
	}
	return s.layerFilter(n), nil
}

// SetFilter replaces the free-text filter of a layer.
func (s *LayerService) SetFilter(path, freeText string) (LayerFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return LayerFilter{}, err
	}
	freeText = strings.TrimSpace(freeText)
	if err := filter.CheckFreeText(freeText); err != nil {
		return LayerFilter{}, fmt.Errorf("%s: %w", s.tree.Path(n), err)
	}
	prev := s.snapshot(n)
	if err := s.tree.SetFilter(n, freeText); err != nil {
		return LayerFilter{}, err
	}
	return s.changed(n, prev)
}

// Style returns a copy of the symbology of a layer.
func (s *LayerService) Style(path string) (style.Model, style.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return nil, nil, err
	}
	return s.tree.Style(n).Clone(), s.tree.Fields(n), nil
}

// SetVisibility shows or hides one entry of a layer's symbology.
func (s *LayerService) SetVisibility(path string, g style.GeometryType, index int, visible bool) (LayerFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return LayerFilter{}, err
	}
	prev := s.snapshot(n)
	if err := s.tree.Style(n).SetVisible(g, index, visible); err != nil {
		return LayerFilter{}, fmt.Errorf("%s: %w", s.tree.Path(n), err)
	}
	return s.changed(n, prev)
}

// SetAllVisible shows or hides every entry of a layer's symbology.
func (s *LayerService) SetAllVisible(path string, visible bool) (LayerFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return LayerFilter{}, err
	}
	prev := s.snapshot(n)
	s.tree.Style(n).SetAllVisible(visible)
	return s.changed(n, prev)
}

// DataBinding returns the source file and table of a layer.
func (s *LayerService) DataBinding(path string) (source, table string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.lookupLayer(path)
	if err != nil {
		return "", "", err
	}
	return s.tree.Source(n), s.tree.Table(n), nil
}

// Document describes the current configuration as a layer document.
func (s *LayerService) Document() *config.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.FromTree(s.tree)
}

// layerState is what a configuration change may touch on a layer.
type layerState struct {
	freeText string
	style    style.Model
	applied  string
}

func (s *LayerService) snapshot(n layertree.NodeID) layerState {
	applied, _ := s.tree.AppliedFilter(n)
	return layerState{
		freeText: s.tree.Filter(n),
		style:    s.tree.Style(n).Clone(),
		applied:  applied,
	}
}

func (s *LayerService) restore(n layertree.NodeID, st layerState) {
	// n is a resolved layer, so the setters cannot fail
	_ = s.tree.SetFilter(n, st.freeText)
	_ = s.tree.SetStyle(n, st.style)
	_ = s.tree.SetAppliedFilter(n, st.applied)
}

// changed recomputes the filter of n after a configuration change, saves
// the configuration and publishes the new filter. When saving fails the
// layer goes back to prev and nothing is published.
func (s *LayerService) changed(n layertree.NodeID, prev layerState) (LayerFilter, error) {
	lf := s.layerFilter(n)
	if err := s.save(); err != nil {
		s.restore(n, prev)
		s.logger.Warn("configuration not saved, change reverted", "path", lf.Path, "err", err)
		return LayerFilter{}, err
	}
	s.bus.Publish(Event{Type: FilterEvent, Path: lf.Path, Status: s.tree.Status(n), Filter: lf.Filter})
	return lf, nil
}

func (s *LayerService) layerFilter(n layertree.NodeID) LayerFilter {
	path := s.tree.Path(n)
	out, err := s.combinator.LayerFilter(s.tree, n)
	if err != nil {
		// n is always a resolved layer here
		s.logger.Error("layer filter", "path", path, "err", err)
		return LayerFilter{Path: path, Filter: filter.AlwaysTrue, Fallback: true}
	}

	lf := LayerFilter{
		Path:     path,
		Filter:   out.Filter,
		Compiled: out.Compiled,
		FreeText: s.tree.Filter(n),
		Fallback: out.Fallback,
	}
	for i, w := range out.Warnings {
		lf.Warnings = append(lf.Warnings, w.Error())
		switch {
		case out.Fallback && i == 0:
			s.logger.Warn("style compile failed, using last known-good filter",
				"path", path, "err", w, "filter", out.Filter)
		case errors.Is(w, filter.ErrUnknownFieldKind):
			s.logger.Debug("field without metadata", "path", path, "err", w)
		default:
			s.logger.Warn("layer filter warning", "path", path, "err", w)
		}
	}
	return lf
}

func (s *LayerService) save() error {
	if s.savePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.savePath), 0755); err != nil {
		return err
	}
	return config.Save(s.savePath, config.FromTree(s.tree))
}
