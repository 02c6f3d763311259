// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// NoCorrespondenceText is reported when Scopus has no corresponding-author data.
const NoCorrespondenceText = "No corresponding-author data in Scopus"

// CheckAffiliation asks Scopus for the corresponding-author affiliation of
// doi and matches it against institutions. apiKey is required.
func (c *Client) CheckAffiliation(ctx context.Context, doi, apiKey string, institutions []types.Institution) (*types.AffiliationRecord, error) {
	if apiKey == "" {
		return nil, &CredentialError{Source: "scopus", Setting: SettingScopusAPIKey}
	}
	body, err := c.getString(ctx, "scopus",
		requests.URL(scopusAPIBase+doi).
			Header("X-ELS-APIKey", apiKey).
			Param("view", "FULL"))
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("parsing scopus response: %w", ErrInvalidResponse)
	}
	rec := ParseAffiliation(body, institutions)
	c.logger.Debug("scopus", "doi", doi, "member", rec.IsMember)
	return rec, nil
}

// ParseAffiliation extracts the corresponding-author affiliations from a
// Scopus abstract-retrieval document. The first affiliation matching an
// institution keyword wins; otherwise all affiliations are reported.
func ParseAffiliation(body string, institutions []types.Institution) *types.AffiliationRecord {
	doc := gjson.Parse(body)
	rec := &types.AffiliationRecord{}

	if oa := doc.Get("abstracts-retrieval-response.coredata.openaccess"); oa.Exists() {
		v := oa.String() == "1" || strings.EqualFold(oa.String(), "true")
		rec.OpenAccess = &v
	}

	corr := doc.Get("abstracts-retrieval-response.item.bibrecord.head.correspondence")
	var entries []gjson.Result
	switch {
	case corr.IsArray():
		entries = corr.Array()
	case corr.IsObject():
		entries = []gjson.Result{corr}
	}

	var affiliations []string
	for _, e := range entries {
		if a := affiliationText(e.Get("affiliation")); a != "" {
			affiliations = append(affiliations, a)
		}
	}
	if len(affiliations) == 0 {
		rec.Text = NoCorrespondenceText
		return rec
	}

	for _, a := range affiliations {
		if matchInstitution(a, institutions) != nil {
			rec.IsMember = true
			rec.Affiliation = a
			return rec
		}
	}
	rec.Affiliation = strings.Join(affiliations, "; ")
	return rec
}

// affiliationText flattens a Scopus affiliation into "org, org, country".
func affiliationText(aff gjson.Result) string {
	if !aff.Exists() {
		return ""
	}
	var parts []string
	org := aff.Get("organization")
	switch {
	case org.IsArray():
		for _, o := range org.Array() {
			if s := textValue(o); s != "" {
				parts = append(parts, s)
			}
		}
	default:
		if s := textValue(org); s != "" {
			parts = append(parts, s)
		}
	}
	if country := textValue(aff.Get("country")); country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}

// textValue reads either a bare string or a {"$": "..."} object.
func textValue(r gjson.Result) string {
	if r.IsObject() {
		return strings.TrimSpace(r.Map()["$"].String())
	}
	if r.Type == gjson.String {
		return strings.TrimSpace(r.String())
	}
	return ""
}

// matchInstitution returns the first institution whose keyword occurs in text.
func matchInstitution(text string, institutions []types.Institution) *types.Institution {
	lower := strings.ToLower(text)
	for i := range institutions {
		for _, kw := range institutions[i].Keywords {
			if kw != "" && containsWord(lower, strings.ToLower(kw)) {
				return &institutions[i]
			}
		}
	}
	return nil
}

// containsWord reports whether kw occurs in s. Short keywords (acronyms)
// must be delimited by non-letters so "psi" does not match "upsilon".
func containsWord(s, kw string) bool {
	if len(kw) > 4 {
		return strings.Contains(s, kw)
	}
	for i := 0; ; {
		j := strings.Index(s[i:], kw)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(kw)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}
