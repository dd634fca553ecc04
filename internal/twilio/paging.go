package twilio

import (
	"context"
	"fmt"
)

// Page is one page of a cursor-paginated collection. An empty NextPageURL
// means the collection is exhausted.
type Page[T any] struct {
	Instances   []T
	NextPageURL string
}

// PageFetcher returns the page at pageURL, or the first page when pageURL is
// empty.
type PageFetcher[T any] func(ctx context.Context, pageURL string) (*Page[T], error)

// GetAll drains a collection by following next-page URLs until none is
// returned. There is no page limit.
func GetAll[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	page, err := fetch(ctx, "")
	if err != nil {
		return nil, err
	}
	results := append([]T(nil), page.Instances...)

	for n := 2; page.NextPageURL != ""; n++ {
		page, err = fetch(ctx, page.NextPageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		results = append(results, page.Instances...)
	}
	return results, nil
}

// pageMeta is the "meta" block of every list response.
type pageMeta struct {
	NextPageURL *string `json:"next_page_url"`
	PageSize    int     `json:"page_size"`
	Page        int     `json:"page"`
	Key         string  `json:"key"`
}

func (m pageMeta) next() string {
	if m.NextPageURL == nil {
		return ""
	}
	return *m.NextPageURL
}
