package layertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-layers/internal/style"
)

// buildTree creates:
//
//	svc
//	├── base (group)
//	│   ├── roads (layer)
//	│   └── rivers (layer)
//	└── poi (layer)
func buildTree(t *testing.T) (*Tree, map[string]NodeID) {
	t.Helper()
	tr, err := New("svc")
	require.NoError(t, err)

	ids := map[string]NodeID{"svc": tr.Root()}
	ids["base"], err = tr.AddGroup(tr.Root(), "base")
	require.NoError(t, err)
	ids["roads"], err = tr.AddLayer(ids["base"], "roads")
	require.NoError(t, err)
	ids["rivers"], err = tr.AddLayer(ids["base"], "rivers")
	require.NoError(t, err)
	ids["poi"], err = tr.AddLayer(tr.Root(), "poi")
	require.NoError(t, err)
	return tr, ids
}

func TestNewRejectsBadServiceID(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = New("a/b")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestPaths(t *testing.T) {
	tr, ids := buildTree(t)

	assert.Equal(t, "svc", tr.Path(ids["svc"]))
	assert.Equal(t, "svc/base", tr.Path(ids["base"]))
	assert.Equal(t, "svc/base/roads", tr.Path(ids["roads"]))
	assert.Equal(t, "svc/poi", tr.Path(ids["poi"]))

	n, ok := tr.Lookup("/svc/base/rivers/")
	require.True(t, ok)
	assert.Equal(t, ids["rivers"], n)

	_, ok = tr.Lookup("svc/nope")
	assert.False(t, ok)
}

func TestAddErrors(t *testing.T) {
	tr, ids := buildTree(t)

	_, err := tr.AddLayer(ids["base"], "roads")
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = tr.AddLayer(ids["roads"], "child")
	assert.ErrorIs(t, err, ErrNotGroup)

	_, err = tr.AddGroup(NodeID(99), "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.AddGroup(ids["base"], "")
	assert.ErrorIs(t, err, ErrInvalidID)

	// Same id under a different parent is fine.
	_, err = tr.AddLayer(tr.Root(), "roads")
	assert.NoError(t, err)
}

func TestStructure(t *testing.T) {
	tr, ids := buildTree(t)

	assert.Equal(t, 5, tr.Len())
	assert.Equal(t, []NodeID{ids["base"], ids["poi"]}, tr.Children(tr.Root()))
	assert.Equal(t, ids["base"], tr.Parent(ids["roads"]))
	assert.Equal(t, None, tr.Parent(tr.Root()))
	assert.Equal(t, 2, tr.Depth(ids["roads"]))
	assert.Equal(t, LayerKind, tr.Kind(ids["poi"]))
	assert.Equal(t, GroupKind, tr.Kind(ids["base"]))
	assert.Equal(t, "rivers", tr.ID(ids["rivers"]))

	assert.Equal(t, []NodeID{ids["roads"], ids["rivers"], ids["poi"]}, tr.Layers(tr.Root()))

	var visited []string
	tr.Walk(tr.Root(), func(n NodeID) bool {
		visited = append(visited, tr.ID(n))
		return tr.ID(n) != "base"
	})
	assert.Equal(t, []string{"svc", "base", "poi"}, visited)
}

func TestLayerAttributes(t *testing.T) {
	tr, ids := buildTree(t)

	m := style.Model{style.Point: {Kind: style.Simple, Entries: []style.Entry{{Label: "all"}}}}
	require.NoError(t, tr.SetStyle(ids["poi"], m))
	require.NoError(t, tr.SetFilter(ids["poi"], "kind = 'cafe'"))
	require.NoError(t, tr.SetFields(ids["poi"], style.Fields{{Name: "kind", Kind: style.StringField}}))
	require.NoError(t, tr.SetData(ids["poi"], "poi.geojson", "poi"))

	assert.Equal(t, m, tr.Style(ids["poi"]))
	assert.Equal(t, "kind = 'cafe'", tr.Filter(ids["poi"]))
	assert.Len(t, tr.Fields(ids["poi"]), 1)
	assert.Equal(t, "poi.geojson", tr.Source(ids["poi"]))
	assert.Equal(t, "poi", tr.Table(ids["poi"]))

	_, ok := tr.AppliedFilter(ids["poi"])
	assert.False(t, ok)
	require.NoError(t, tr.SetAppliedFilter(ids["poi"], "(1=1)"))
	f, ok := tr.AppliedFilter(ids["poi"])
	assert.True(t, ok)
	assert.Equal(t, "(1=1)", f)

	assert.ErrorIs(t, tr.SetFilter(ids["base"], "x = 1"), ErrNotLayer)
	assert.ErrorIs(t, tr.SetStyle(NodeID(42), nil), ErrNotFound)
	assert.Nil(t, tr.Style(ids["base"]))
}

func TestInfo(t *testing.T) {
	tr, ids := buildTree(t)

	info, err := tr.Info(ids["base"])
	require.NoError(t, err)
	assert.Equal(t, "base", info.ID)
	assert.Equal(t, "group", info.Kind)
	assert.Equal(t, "svc", info.Parent)
	assert.Equal(t, []string{"svc/base/roads", "svc/base/rivers"}, info.Children)

	_, err = tr.Info(NodeID(-3))
	assert.ErrorIs(t, err, ErrNotFound)
}
