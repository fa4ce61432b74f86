package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-layers/internal/filter"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/style"
)

func loadCity(t *testing.T) *Document {
	t.Helper()
	doc, err := Load(filepath.Join("testdata", "city.yaml"))
	require.NoError(t, err)
	return doc
}

func TestLoad(t *testing.T) {
	doc := loadCity(t)

	assert.Equal(t, "city", doc.Service)
	require.Len(t, doc.Layers, 2)

	transport := doc.Layers[0]
	assert.Equal(t, KindGroup, transport.Kind)
	require.Len(t, transport.Children, 2)

	roads := transport.Children[0]
	assert.Equal(t, "lanes >= 1", roads.Filter)
	assert.Equal(t, style.Fields{
		{Name: "type", Kind: style.StringField},
		{Name: "lanes", Kind: style.NumberField},
	}, roads.Fields)

	s := roads.Style[style.LineString]
	require.NotNil(t, s)
	assert.Equal(t, style.UniqueValue, s.Kind)
	assert.True(t, s.HasDefault)
	require.Len(t, s.Entries, 4)
	assert.Equal(t, []style.FieldValue{style.Str("track")}, s.Entries[2].Values)
	assert.False(t, s.Entries[2].IsVisible())
	assert.True(t, s.Entries[0].IsVisible())

	districts := doc.Layers[1].Style[style.Polygon]
	require.NotNil(t, districts)
	assert.Equal(t, []style.FieldValue{style.Num(0), style.Num(1000)}, districts.Entries[0].Values)
}

func TestParseJSON(t *testing.T) {
	doc, err := Parse([]byte(`{"service": "svc", "layers": [{` +
		`"kind": "layer", "id": "events", "fields": [{"name": "day", "kind": "date"}], ` +
		`"style": {"point": {"kind": "uniqueValue", "fields": ["day"], "entries": [` +
		`{"values": [{"date": "2020-01-01"}]}, {"values": [1577923200000], "visible": false}]}}}]}`))
	require.NoError(t, err)

	s := doc.Layers[0].Style[style.Point]
	assert.Equal(t, style.Date("2020-01-01"), s.Entries[0].Values[0])
	assert.Equal(t, style.Num(1577923200000), s.Entries[1].Values[0])
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := map[string]string{
		"empty":              ``,
		"missing service":    `layers: []`,
		"service with slash": `service: a/b`,
		"unknown node kind": `
service: s
layers: [{kind: folder, id: x}]`,
		"id with slash": `
service: s
layers: [{kind: layer, id: a/b}]`,
		"group with style": `
service: s
layers: [{kind: group, id: g, style: {point: {kind: simple, entries: [{}]}}}]`,
		"layer with children": `
service: s
layers: [{kind: layer, id: l, children: []}]`,
		"unknown field kind": `
service: s
layers: [{kind: layer, id: l, fields: [{name: f, kind: blob}]}]`,
		"unknown style kind": `
service: s
layers: [{kind: layer, id: l, style: {point: {kind: heatmap, entries: [{}]}}}]`,
		"no entries": `
service: s
layers: [{kind: layer, id: l, style: {point: {kind: simple, entries: []}}}]`,
		"bad value": `
service: s
layers: [{kind: layer, id: l, style: {point: {kind: uniqueValue, fields: [f], entries: [{values: [{when: x}]}]}}}]`,
		"unknown property": `
service: s
colour: red`,
		"field not an identifier": `
service: s
layers: [{kind: layer, id: l, style: {point: {kind: uniqueValue, fields: ["road type"], entries: [{values: [x]}]}}}]`,
		"bad table name": `
service: s
layers: [{kind: layer, id: l, table: "drop table"}]`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			require.Error(t, err)
			if src != "" {
				assert.ErrorIs(t, err, ErrInvalidDocument)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	tr, err := loadCity(t).Build()
	require.NoError(t, err)

	var paths []string
	tr.Walk(tr.Root(), func(n layertree.NodeID) bool {
		paths = append(paths, tr.Path(n))
		return true
	})
	assert.Equal(t, []string{
		"city",
		"city/transport",
		"city/transport/roads",
		"city/transport/rail",
		"city/districts",
	}, paths)

	roads, ok := tr.Lookup("city/transport/roads")
	require.True(t, ok)
	assert.Equal(t, layertree.LayerKind, tr.Kind(roads))
	assert.Equal(t, layertree.NewInstance, tr.Status(roads))
	assert.Equal(t, "roads.geojson", tr.Source(roads))
	assert.Equal(t, "roads", tr.Table(roads))
	assert.Equal(t, "lanes >= 1", tr.Filter(roads))
	assert.NotNil(t, tr.Style(roads)[style.LineString])
}

func TestBuildRejectsDuplicates(t *testing.T) {
	doc := &Document{Service: "s", Layers: []Node{
		{Kind: KindLayer, ID: "a"},
		{Kind: KindLayer, ID: "a"},
	}}
	_, err := doc.Build()
	assert.ErrorIs(t, err, layertree.ErrDuplicateID)

	doc = &Document{Service: "s", Layers: []Node{
		{Kind: KindLayer, ID: "a", Children: []Node{{Kind: KindLayer, ID: "b"}}},
	}}
	_, err = doc.Build()
	assert.ErrorIs(t, err, layertree.ErrNotGroup)
}

func TestBuildRejectsInvalidFreeText(t *testing.T) {
	doc := &Document{Service: "s", Layers: []Node{
		{Kind: KindLayer, ID: "a", Filter: "1=1; DROP TABLE a"},
	}}
	_, err := doc.Build()
	assert.ErrorIs(t, err, filter.ErrInvalidFreeText)
	assert.ErrorContains(t, err, "s/a")
}

func TestSaveRoundTrip(t *testing.T) {
	doc := loadCity(t)
	tr, err := doc.Build()
	require.NoError(t, err)

	roads, _ := tr.Lookup("city/transport/roads")
	require.NoError(t, tr.Style(roads).SetVisible(style.LineString, 2, true))
	require.NoError(t, tr.SetFilter(roads, "lanes >= 2"))

	path := filepath.Join(t.TempDir(), "layers.yaml")
	require.NoError(t, Save(path, FromTree(tr)))

	got, err := Load(path)
	require.NoError(t, err)

	want := loadCity(t)
	want.Layers[0].Children[0].Filter = "lanes >= 2"
	want.Layers[0].Children[0].Style[style.LineString].Entries[2].Visible = style.Bool(true)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("saved document mismatch (-want +got):\n%s", diff)
	}
}
