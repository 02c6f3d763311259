// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/requests"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// FetchOA looks up the open-access status of doi on Unpaywall. Unpaywall
// requires a contact address; without one the lookup fails with a
// *CredentialError.
func (c *Client) FetchOA(ctx context.Context, doi string) (types.OARecord, error) {
	if c.email == "" {
		return types.OARecord{}, &CredentialError{Source: "unpaywall", Setting: SettingContactEmail}
	}
	body, err := c.getString(ctx, "unpaywall",
		requests.URL(unpaywallAPIBase+doi).Param("email", c.email))
	if err != nil {
		return types.OARecord{}, err
	}
	var rec types.OARecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return types.OARecord{}, fmt.Errorf("parsing unpaywall response: %w: %v", ErrInvalidResponse, err)
	}
	c.logger.Debug("unpaywall", "doi", doi, "is_oa", rec.IsOA, "status", rec.OAStatus)
	return rec, nil
}
