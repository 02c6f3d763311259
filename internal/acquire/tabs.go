// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// Associations exposes the passive monitor's recorded sightings.
type Associations interface {
	TabFor(url string) (int, bool)
	ReferrerFor(url string) (string, bool)
}

// Match names the rule that selected a tab.
type Match string

const (
	MatchNone     Match = ""
	MatchExact    Match = "exact-url"
	MatchRecorded Match = "recorded-tab"
	MatchOrigin   Match = "blob-origin"
	MatchReferrer Match = "referrer"
)

// SelectTab picks the tab displaying target from tabs. Rules are applied in
// a fixed order and the first hit wins:
//
//  1. a tab whose URL equals the target URL;
//  2. for blob: URLs, the tab recorded for that exact URL;
//  3. for blob: URLs, the first tab (in host order) sharing the blob's
//     origin, either as another blob URL or as a page of that origin;
//  4. the tab whose URL equals the recorded referrer of the target.
//
// Rule 3 is best effort: with several tabs on the same origin it may pick a
// tab holding an unrelated blob.
func SelectTab(target Target, tabs []types.Tab, assoc Associations) (types.Tab, Match, bool) {
	for _, t := range tabs {
		if t.URL == target.URL {
			return t, MatchExact, true
		}
	}

	if target.IsBlob && assoc != nil {
		if id, ok := assoc.TabFor(target.URL); ok {
			for _, t := range tabs {
				if t.ID == id {
					return t, MatchRecorded, true
				}
			}
		}
	}

	if target.IsBlob {
		prefix := blobPrefix(target.URL)
		origin := Origin(target.URL)
		for _, t := range tabs {
			if t.URL == "" {
				continue
			}
			if strings.HasPrefix(t.URL, prefix) || (origin != "" && Origin(t.URL) == origin) {
				return t, MatchOrigin, true
			}
		}
	}

	if assoc != nil {
		if ref, ok := assoc.ReferrerFor(target.URL); ok && ref != "" {
			for _, t := range tabs {
				if t.URL == ref {
					return t, MatchReferrer, true
				}
			}
		}
	}

	return types.Tab{}, MatchNone, false
}
