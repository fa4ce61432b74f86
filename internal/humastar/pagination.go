// HATEOAS pagination via RFC 8288 Link headers.
//
// Response bodies implement the Pager interface to emit next/prev/first/last
// Link headers. Links.Transformer reads these and sets the headers.
package humastar

import "fmt"

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageInput is the shared offset/limit query input.
type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Index of the first item"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

// PageBody is a generic paginated response envelope.
// Any handler returning PageBody[T] gets pagination Link headers.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Paginate cuts the page described by in out of items.
func Paginate[T any](items []T, in PageInput) PageBody[T] {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := min(max(in.Offset, 0), len(items))
	end := min(offset+limit, len(items))

	data := make([]T, end-offset)
	copy(data, items[offset:end])
	return PageBody[T]{Total: len(items), Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	var links []string

	links = append(links, fmt.Sprintf(`<%s?offset=0&limit=%d>; rel="first"`, basePath, p.Limit))

	if p.Offset > 0 {
		prev := max(p.Offset-p.Limit, 0)
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="prev"`, basePath, prev, p.Limit))
	}

	if p.Offset+p.Limit < p.Total {
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="next"`, basePath, p.Offset+p.Limit, p.Limit))
	}

	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="last"`, basePath, lastOffset, p.Limit))

	return links
}
