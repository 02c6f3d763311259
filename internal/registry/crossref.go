// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/requests"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/curation-engine/pkg/types"
)

type crossrefResponse struct {
	Status  string               `json:"status"`
	Message types.CitationRecord `json:"message"`
}

// FetchCitation retrieves the Crossref work record for doi. The contact
// address is sent as "mailto" when configured.
func (c *Client) FetchCitation(ctx context.Context, doi string) (types.CitationRecord, error) {
	rb := requests.URL(crossrefAPIBase + doi)
	if c.email != "" {
		rb.Param("mailto", c.email)
	}
	body, err := c.getString(ctx, "crossref", rb)
	if err != nil {
		return types.CitationRecord{}, err
	}
	var resp crossrefResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return types.CitationRecord{}, fmt.Errorf("parsing crossref response: %w: %v", ErrInvalidResponse, err)
	}
	c.logger.Debug("crossref", "doi", doi, "title", resp.Message.FirstTitle())
	return resp.Message, nil
}

// LicenseFromCitation picks the license URL from a citation record,
// preferring the version-of-record assertion. It returns "" when the record
// carries no license.
func LicenseFromCitation(rec types.CitationRecord) string {
	for _, l := range rec.License {
		if l.ContentVersion == "vor" && l.URL != "" {
			return l.URL
		}
	}
	for _, l := range rec.License {
		if l.URL != "" {
			return l.URL
		}
	}
	return ""
}
