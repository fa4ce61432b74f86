package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-layers/internal/db"
	"github.com/joeblew999/plat-layers/internal/humastar"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/service"
	"github.com/joeblew999/plat-layers/internal/style"
)

const roadsPath = "/api/v1/layers/transport%2Froads"

// copyData copies testdata into a temporary data directory.
func copyData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sources"), 0755))
	for _, name := range []string{"layers.yaml", "sources/roads.geojson"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	return dir
}

// newTestAPI serves the routes over the stdlib mux, which keeps %2F inside a
// single path segment.
func newTestAPI(t *testing.T, withDB bool) (humatest.TestAPI, *Services) {
	t.Helper()
	dir := copyData(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	layers, err := service.LoadLayerService(dir, "layers.yaml", service.WithLogger(logger))
	require.NoError(t, err)

	svc := &Services{Layer: layers, Source: service.NewSourceService(dir)}
	if withDB {
		conn, err := db.Open(db.Config{})
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		svc.DB = conn
	}

	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("plat-layers test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	api := humatest.Wrap(t, humago.New(http.NewServeMux(), cfg))
	RegisterRoutes(api, svc)
	NewInfoHandler(dir, svc).RegisterRoutes(api)
	links.Build(api)
	return api, svc
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/nodes>; rel="nodes"`)
	assert.Contains(t, links, `</openapi.json>; rel="service-desc"`)

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp.Body.Bytes())
	assert.Equal(t, "plat-layers", info.Name)
	assert.Equal(t, "city", info.Service)
	assert.False(t, info.DB)
	assert.Contains(t, info.Features, "features")

	resp = api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	sources := decode[[]service.SourceFile](t, resp.Body.Bytes())
	require.Len(t, sources, 1)
	assert.Equal(t, "roads.geojson", sources[0].Name)
}

func TestListNodesPaginates(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/api/v1/nodes?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[humastar.PageBody[NodeBody]](t, resp.Body.Bytes())
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "city", page.Data[0].Path)
	assert.Equal(t, "city/transport", page.Data[1].Path)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/nodes?offset=2&limit=2>; rel="next"`)

	resp = api.Get("/api/v1/nodes?offset=4&limit=2")
	page = decode[humastar.PageBody[NodeBody]](t, resp.Body.Bytes())
	require.Len(t, page.Data, 1)
	assert.Equal(t, "city/districts", page.Data[0].Path)
}

func TestGetNode(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/api/v1/nodes/transport%2Froads")
	require.Equal(t, http.StatusOK, resp.Code)
	node := decode[NodeBody](t, resp.Body.Bytes())
	assert.Equal(t, "city/transport/roads", node.Path)
	assert.Equal(t, "layer", node.Kind)
	assert.Equal(t, layertree.NewInstance, node.Status)

	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/nodes/transport%2Froads>; rel="self"`)
	assert.Contains(t, links, `</api/v1/nodes>; rel="collection"`)
	assert.Contains(t, links, `</api/v1/nodes/city%2Ftransport%2Froads/status>; rel="status"; method="PUT"; title="Set status"`)
	assert.Contains(t, links, `</api/v1/layers/city%2Ftransport%2Froads/count>; rel="count"; method="GET"; title="Count matching rows"`)
	assert.NotContains(t, links, `</api/v1/layers/city%2Ftransport%2Froads/features>; rel="features"; method="GET"; title="Matching source features"`)

	resp = api.Get("/api/v1/nodes/city%2Ftransport")
	require.Equal(t, http.StatusOK, resp.Code)
	group := decode[NodeBody](t, resp.Body.Bytes())
	assert.Equal(t, []string{"city/transport/roads", "city/transport/rail"}, group.Children)
	assert.Len(t, group.Actions(), 1)

	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/nodes/nowhere").Code)
}

func TestPutStatusPropagates(t *testing.T) {
	api, svc := newTestAPI(t, false)

	resp := api.Put("/api/v1/nodes/transport%2Froads/status", map[string]any{"status": "loading"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, layertree.Loading, decode[NodeBody](t, resp.Body.Bytes()).Status)

	transport, err := svc.Layer.Get("transport")
	require.NoError(t, err)
	assert.Equal(t, layertree.Loading, transport.Status)
	city, err := svc.Layer.Get("city")
	require.NoError(t, err)
	assert.Equal(t, layertree.Loading, city.Status)

	resp = api.Put("/api/v1/nodes/transport%2Froads/status", map[string]any{"status": "loaded"})
	require.Equal(t, http.StatusOK, resp.Code)
	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/layers/city%2Ftransport%2Froads/features>; rel="features"; method="GET"; title="Matching source features"`)
}

func TestPutStatusRegressionConflicts(t *testing.T) {
	api, svc := newTestAPI(t, false)

	require.Equal(t, http.StatusOK, api.Put("/api/v1/nodes/districts/status", map[string]any{"status": "loaded"}).Code)

	resp := api.Put("/api/v1/nodes/districts/status", map[string]any{"status": "processing"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), "city/districts: cannot go from loaded to processing")

	info, err := svc.Layer.Get("districts")
	require.NoError(t, err)
	assert.Equal(t, layertree.Loaded, info.Status)

	// Loading is always accepted.
	assert.Equal(t, http.StatusOK, api.Put("/api/v1/nodes/districts/status", map[string]any{"status": "loading"}).Code)

	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/nodes/districts/status", map[string]any{"status": "gone"}).Code)
}

func TestReady(t *testing.T) {
	api, _ := newTestAPI(t, false)

	ready := func(query string) ReadyBody {
		resp := api.Get("/api/v1/ready" + query)
		require.Equal(t, http.StatusOK, resp.Code)
		return decode[ReadyBody](t, resp.Body.Bytes())
	}

	assert.False(t, ready("").Ready)
	assert.True(t, ready("?threshold=newInstance").Ready)

	for _, p := range []string{"transport%2Froads", "transport%2Frail", "districts"} {
		require.Equal(t, http.StatusOK, api.Put("/api/v1/nodes/"+p+"/status", map[string]any{"status": "loaded"}).Code)
	}
	got := ready("?threshold=loaded")
	assert.True(t, got.Ready)
	assert.Equal(t, layertree.Loaded, got.Threshold)

	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/ready?threshold=bogus").Code)
}

func TestLayerFilterRoutes(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get(roadsPath + "/filter")
	require.Equal(t, http.StatusOK, resp.Code)
	lf := decode[service.LayerFilter](t, resp.Body.Bytes())
	assert.Equal(t, "NOT (type IN ('track')) and (lanes >= 1)", lf.Filter)
	assert.Equal(t, "NOT (type IN ('track'))", lf.Compiled)

	resp = api.Put(roadsPath+"/filter", map[string]any{"filter": " lanes > 2 "})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "NOT (type IN ('track')) and (lanes > 2)", decode[service.LayerFilter](t, resp.Body.Bytes()).Filter)

	resp = api.Put(roadsPath+"/filter", map[string]any{"filter": ""})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "NOT (type IN ('track'))", decode[service.LayerFilter](t, resp.Body.Bytes()).Filter)

	assert.Equal(t, http.StatusBadRequest, api.Get("/api/v1/layers/transport/filter").Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/layers/nowhere/filter").Code)
}

func TestStyleAndVisibility(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get(roadsPath + "/style")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[StyleBody](t, resp.Body.Bytes())
	assert.Equal(t, "city/transport/roads", body.Path)
	require.Contains(t, body.Style, style.LineString)
	assert.Len(t, body.Style[style.LineString].Entries, 4)
	assert.Len(t, body.Fields, 2)

	// Showing the track entry leaves nothing hidden.
	resp = api.Put(roadsPath+"/style/lineString/entries/2", map[string]any{"visible": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "(1=1) and (lanes >= 1)", decode[service.LayerFilter](t, resp.Body.Bytes()).Filter)

	resp = api.Put(roadsPath+"/style/lineString/entries/0", map[string]any{"visible": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "NOT (type IN ('highway')) and (lanes >= 1)", decode[service.LayerFilter](t, resp.Body.Bytes()).Filter)

	assert.Equal(t, http.StatusBadRequest, api.Put(roadsPath+"/style/lineString/entries/9", map[string]any{"visible": true}).Code)
	assert.Equal(t, http.StatusBadRequest, api.Put(roadsPath+"/style/polygon/entries/0", map[string]any{"visible": true}).Code)

	resp = api.Put(roadsPath+"/visibility", map[string]any{"visible": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "(1=0) and (lanes >= 1)", decode[service.LayerFilter](t, resp.Body.Bytes()).Filter)
}

func TestFeatures(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get(roadsPath + "/features")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[FeaturesBody](t, resp.Body.Bytes())
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, 3, body.Matched)
	assert.Equal(t, []float64{0, 0, 35, 10}, body.BBox)
	require.NotNil(t, body.Features)
	var ids []any
	for _, f := range body.Features.Features {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []any{1.0, 2.0, 5.0}, ids)

	resp = api.Get(roadsPath + "/features?bbox=0,0,5,5&limit=1")
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode[FeaturesBody](t, resp.Body.Bytes())
	assert.Equal(t, 2, body.Matched)
	assert.Len(t, body.Features.Features, 1)

	assert.Equal(t, http.StatusBadRequest, api.Get(roadsPath+"/features?bbox=0,0,5").Code)
	// rail.geojson is not in the sources directory
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/layers/transport%2Frail/features").Code)
}

func TestPutFilterRejectsInvalidFreeText(t *testing.T) {
	api, _ := newTestAPI(t, true)
	require.Equal(t, http.StatusOK, api.Post(roadsPath+"/import").Code)

	for _, free := range []string{
		"name LIKE 'A%'",
		"1=1); DROP TABLE roads; SELECT count(*) FROM (SELECT 1) WHERE (1=1",
	} {
		resp := api.Put(roadsPath+"/filter", map[string]any{"filter": free})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, free)
	}

	resp := api.Get(roadsPath + "/count")
	require.Equal(t, http.StatusOK, resp.Code)
	count := decode[CountBody](t, resp.Body.Bytes())
	assert.Equal(t, "NOT (type IN ('track')) and (lanes >= 1)", count.Filter)
	assert.Equal(t, int64(3), count.Count)
}

func TestDatabaseRoutes(t *testing.T) {
	api, _ := newTestAPI(t, true)

	resp := api.Post(roadsPath + "/import")
	require.Equal(t, http.StatusOK, resp.Code)
	imported := decode[ImportBody](t, resp.Body.Bytes())
	assert.Equal(t, ImportBody{Source: "roads.geojson", Table: "roads", Rows: 5}, imported)

	resp = api.Get(roadsPath + "/count")
	require.Equal(t, http.StatusOK, resp.Code)
	count := decode[CountBody](t, resp.Body.Bytes())
	assert.Equal(t, int64(3), count.Count)
	assert.Equal(t, "NOT (type IN ('track')) and (lanes >= 1)", count.Filter)

	resp = api.Get("/api/v1/tables")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"roads"`)

	// rail has a table binding but was never imported
	assert.Equal(t, http.StatusInternalServerError, api.Get("/api/v1/layers/transport%2Frail/count").Code)
}

func TestDatabaseUnavailable(t *testing.T) {
	api, _ := newTestAPI(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/tables").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Get(roadsPath+"/count").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Post(roadsPath+"/import").Code)
}
