package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds the RFC 8288 Link headers of an API, keyed by operation path.
// Create it before the API so its Transformer can be installed in the Huma
// config, then call Build once every route is registered.
type Links struct {
	mu sync.RWMutex
	m  map[string][]string
}

// NewLinks returns an empty link table.
func NewLinks() *Links {
	return &Links{m: map[string][]string{}}
}

// AutoLinks walks the OpenAPI paths of api and derives hypermedia links.
func AutoLinks(api huma.API) *Links {
	l := NewLinks()
	l.Build(api)
	return l
}

// Build derives the links of api, replacing previous ones. Paths tagged
// "editor" (Datastar endpoints) are skipped.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	m := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		for _, existing := range m[from] {
			if existing == val {
				return
			}
		}
		m[from] = append(m[from], val)
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if hasTag(primaryTags(pi), "editor") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	// map order is random; keep headers stable
	sort.Strings(collections)
	sort.Strings(items)

	isCollection := func(p string) bool {
		_, ok := oapi.Paths[p]
		return ok && !strings.Contains(p, "{")
	}

	// 1. Templated path → parent (collection + up, or up for sub-resources)
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; !ok {
			continue
		}
		if isCollection(parent) {
			add(item, parent, "collection")
		}
		add(item, parent, "up")
	}

	// 2. Collection → item template, item → sub-resources
	for _, from := range append(append([]string{}, collections...), items...) {
		for _, item := range items {
			if path.Dir(item) != from {
				continue
			}
			if isCollection(from) {
				add(from, item, "item")
			} else {
				add(from, item, lastSegment(item))
			}
		}
	}

	// 3. Sub-resources of one templated parent link to each other
	for _, a := range items {
		for _, b := range items {
			if a != b && path.Dir(a) == path.Dir(b) && strings.Contains(path.Dir(a), "{") {
				add(a, b, lastSegment(b))
			}
		}
	}

	// 4. Collections → entry point
	for _, coll := range collections {
		if coll != "/health" {
			add(coll, "/health", "up")
		}
	}

	// 5. Edit rels from HTTP methods (IANA standard)
	for _, item := range items {
		pi := oapi.Paths[item]
		if pi.Put != nil || pi.Patch != nil {
			add(item, item, "edit")
		}
	}

	// 6. Entry point links to every collection + discovery rels
	if _, ok := oapi.Paths["/health"]; ok {
		for _, coll := range collections {
			if coll != "/health" {
				add("/health", coll, lastSegment(coll))
			}
		}
		add("/health", "/openapi.json", "describedby")
		add("/health", "/openapi.json", "service-desc")
		add("/health", "/docs", "service-doc")
	}

	// 7. describedby per resource: JSON Schema fragment of the GET response
	for _, p := range append(append([]string{}, collections...), items...) {
		if ref := getResponseSchemaRef(oapi.Paths[p]); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	// 8. Document the links in the OpenAPI document
	for p, headers := range m {
		for _, op := range operationsOf(oapi.Paths[p]) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}

	l.mu.Lock()
	l.m = m
	l.mu.Unlock()
}

// For returns the Link headers of an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.m[opPath]
}

// Transformer returns a Huma Transformer that injects the Link headers at
// runtime, plus self, pagination and action links taken from the response.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		u := ctx.URL()

		// Templated endpoints get a self link with the resolved URL.
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, u.EscapedPath()))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(u.Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// --- helpers ---

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	if pi == nil {
		return nil
	}
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success
// response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func getResponseSchemaRef(pi *huma.PathItem) string {
	if pi == nil || pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				// "#/components/schemas/Foo" → "Foo"
				return lastSegment(mt.Schema.Ref)
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	// `<url>; rel="name"`
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
