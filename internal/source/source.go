package source

import (
	"context"

	"jobwatch-engine/internal/domain"
)

// Query is the search the orchestrator pages through.
type Query struct {
	Keyword string
	Area    string
}

// Stub is one listing entry, enough to identify and fetch the detail page.
type Stub struct {
	JobID   string
	URL     string
	Title   string
	Company string
}

// Source is the site-specific page-fetching/extraction capability. One
// implementation per site, selected by the config `crawl.source` key.
//
// FetchListingPage returns the stubs on page `page` (1-based); an empty slice
// with nil error means the search has run out of pages. FetchDetail hydrates a
// stub into a full record. Both return *FetchError on failure so the caller
// can tell transient trouble from a blocked or unreachable site.
type Source interface {
	Name() string
	FetchListingPage(ctx context.Context, q Query, page int) ([]Stub, error)
	FetchDetail(ctx context.Context, stub Stub) (domain.JobRecord, error)
}
