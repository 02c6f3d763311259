// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// FetchAuthorship retrieves the OpenAlex authorships of doi. OpenAlex is
// only queried with a contact address (polite pool).
func (c *Client) FetchAuthorship(ctx context.Context, doi string) (*types.AuthorshipRecord, error) {
	if c.email == "" {
		return nil, &CredentialError{Source: "openalex", Setting: SettingContactEmail}
	}
	body, err := c.getString(ctx, "openalex",
		requests.URL(openAlexAPIBase+"doi:"+doi).Param("mailto", c.email))
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("parsing openalex response: %w", ErrInvalidResponse)
	}
	return parseAuthorships(body), nil
}

func parseAuthorships(body string) *types.AuthorshipRecord {
	doc := gjson.Parse(body)
	rec := &types.AuthorshipRecord{
		ID:          doc.Get("id").String(),
		Authorships: []types.Authorship{},
	}
	doc.Get("authorships").ForEach(func(_, a gjson.Result) bool {
		as := types.Authorship{
			AuthorName:      a.Get("author.display_name").String(),
			IsCorresponding: a.Get("is_corresponding").Bool(),
			Institutions:    []types.AuthorshipInstitution{},
		}
		a.Get("institutions").ForEach(func(_, inst gjson.Result) bool {
			as.Institutions = append(as.Institutions, types.AuthorshipInstitution{
				DisplayName: inst.Get("display_name").String(),
				ROR:         inst.Get("ror").String(),
			})
			return true
		})
		rec.Authorships = append(rec.Authorships, as)
		return true
	})
	return rec
}
