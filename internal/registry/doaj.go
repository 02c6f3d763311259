// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// FetchListing looks issn up in the Directory of Open Access Journals.
// A journal that is not listed yields InDOAJ false, not an error.
func (c *Client) FetchListing(ctx context.Context, issn string) (*types.ListingRecord, error) {
	body, err := c.getString(ctx, "doaj", requests.URL(doajAPIBase+"issn:"+issn))
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("parsing doaj response: %w", ErrInvalidResponse)
	}
	doc := gjson.Parse(body)
	rec := &types.ListingRecord{ISSN: issn, InDOAJ: doc.Get("total").Int() > 0}
	if rec.InDOAJ {
		bib := doc.Get("results.0.bibjson")
		rec.Title = bib.Get("title").String()
		rec.License = bib.Get("license.0.type").String()
		rec.HasAPC = bib.Get("apc.has_apc").Bool()
	}
	return rec, nil
}
