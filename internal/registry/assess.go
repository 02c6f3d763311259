// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/curation-engine/pkg/types"
)

var (
	policyFinderBase = "https://openpolicyfinder.jisc.ac.uk/search"
	doiResolverBase  = "https://doi.org/"
)

// OA labels shown to curators.
const (
	LabelHybrid = "Hybrid OA"
	LabelGold   = "Gold OA"
	LabelGreen  = "Green OA"
	LabelBronze = "Bronze"
	LabelOpen   = "Open Access"
	LabelClosed = "Closed Access"
)

// PolicyURL links the publisher-policy search for issn. It returns "" for
// an empty ISSN.
func PolicyURL(issn string) string {
	issn = strings.TrimSpace(issn)
	if issn == "" {
		return ""
	}
	return policyFinderBase + "?search=" + url.QueryEscape(issn)
}

// Assess derives the curator-facing verdict from a reconciled record and
// flags disagreements between registries. doi is the normalized input DOI.
func Assess(rec *types.ReconciledMetadata, doi string, institutions []types.Institution) types.Assessment {
	oa := rec.Unpaywall
	a := types.Assessment{
		IsOA:      oa.IsOA,
		OAStatus:  oa.OAStatus,
		IsHybrid:  oa.IsOA && oa.OAStatus == "hybrid",
		PolicyURL: PolicyURL(journalISSN(rec)),
		Conflicts: []types.Conflict{},
	}
	if a.OAStatus == "" && !a.IsOA {
		a.OAStatus = "closed"
	}
	a.Label = label(oa)
	if loc := oa.BestOALocation; loc != nil {
		a.PDFURL = loc.URLForPDF
		a.License = loc.License
		a.Version = loc.Version
	}

	canonical := rec.Crossref.DOI
	if canonical == "" {
		canonical = doi
	}
	a.DOIURL = doiResolverBase + canonical

	scopusMember, scopusInst, haveScopus := scopusAffiliation(rec.Scopus, institutions)
	oaxMember, oaxInst, haveOAX := openAlexAffiliation(rec.OpenAlex, institutions)
	switch {
	case haveScopus:
		a.CorrespondingAffiliated = &scopusMember
		a.AffiliatedInstitution = scopusInst
	case haveOAX:
		a.CorrespondingAffiliated = &oaxMember
		a.AffiliatedInstitution = oaxInst
	}

	add := func(kind types.ConflictKind, msg string, sources ...string) {
		a.Conflicts = append(a.Conflicts, types.Conflict{Kind: kind, Message: msg, Sources: sources})
	}

	if s := rec.Scopus; s != nil && s.OpenAccess != nil && *s.OpenAccess != oa.IsOA {
		add(types.ConflictOAVsAffiliationRegistry,
			fmt.Sprintf("Unpaywall reports %s but Scopus reports %s", oaWord(oa.IsOA, oa.OAStatus), oaWord(*s.OpenAccess, "")),
			"unpaywall", "scopus")
	}
	if a.IsHybrid && (oa.JournalIsInDOAJ || (rec.DOAJ != nil && rec.DOAJ.InDOAJ)) {
		add(types.ConflictHybridInDOAJJournal,
			"Unpaywall reports hybrid OA but the journal is listed in DOAJ",
			"unpaywall", "doaj")
	}
	if a.License != "" && rec.CrossrefLicense != "" && NormalizeLicense(a.License) != NormalizeLicense(rec.CrossrefLicense) {
		add(types.ConflictLicenseMismatch,
			fmt.Sprintf("Unpaywall license %q differs from Crossref license %q", a.License, rec.CrossrefLicense),
			"unpaywall", "crossref")
	}
	if haveScopus && haveOAX && scopusMember != oaxMember {
		add(types.ConflictCorrespondingMismatch,
			fmt.Sprintf("Scopus says corresponding author affiliated=%t, OpenAlex says %t", scopusMember, oaxMember),
			"scopus", "openalex")
	}
	for _, src := range []struct{ name, doi string }{{"crossref", rec.Crossref.DOI}, {"unpaywall", oa.DOI}} {
		if src.doi != "" && NormalizeDOI(src.doi) != doi {
			add(types.ConflictDOIMismatch,
				fmt.Sprintf("%s returned DOI %q for %q", src.name, src.doi, doi),
				src.name)
		}
	}
	return a
}

func label(oa types.OARecord) string {
	if !oa.IsOA {
		return LabelClosed
	}
	switch oa.OAStatus {
	case "hybrid":
		return LabelHybrid
	case "gold":
		return LabelGold
	case "green":
		return LabelGreen
	case "bronze":
		return LabelBronze
	}
	return LabelOpen
}

func oaWord(isOA bool, status string) string {
	if !isOA {
		return "closed access"
	}
	if status != "" {
		return status + " open access"
	}
	return "open access"
}

// scopusAffiliation reports the Scopus verdict when it had correspondence data.
func scopusAffiliation(s *types.AffiliationRecord, institutions []types.Institution) (member bool, inst string, ok bool) {
	if s == nil || s.Affiliation == "" {
		return false, "", false
	}
	if s.IsMember {
		if m := matchInstitution(s.Affiliation, institutions); m != nil {
			inst = m.Acronym
		}
	}
	return s.IsMember, inst, true
}

// openAlexAffiliation checks the corresponding authorships against the
// member institutions by display name or ROR id.
func openAlexAffiliation(rec *types.AuthorshipRecord, institutions []types.Institution) (member bool, inst string, ok bool) {
	if rec == nil {
		return false, "", false
	}
	for _, as := range rec.Authorships {
		if !as.IsCorresponding {
			continue
		}
		ok = true
		for _, ai := range as.Institutions {
			for _, m := range institutions {
				if ai.DisplayName == m.Name || (m.ROR != "" && ai.ROR == m.ROR) {
					return true, m.Acronym, true
				}
			}
		}
	}
	return false, "", ok
}

var licenseVersion = regexp.MustCompile(`-\d+(\.\d+)*$`)

// NormalizeLicense reduces a license URL or label to a short id such as
// "cc-by", "cc-by-nc-nd" or "cc0" so values from different registries can
// be compared.
func NormalizeLicense(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "creativecommons.org/"); i >= 0 {
		rest := strings.Trim(s[i+len("creativecommons.org/"):], "/")
		switch {
		case strings.HasPrefix(rest, "publicdomain/zero"):
			return "cc0"
		case strings.HasPrefix(rest, "publicdomain/mark"):
			return "pd"
		case strings.HasPrefix(rest, "licenses/"):
			kind := strings.SplitN(strings.TrimPrefix(rest, "licenses/"), "/", 2)[0]
			return "cc-" + kind
		}
		return rest
	}
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = licenseVersion.ReplaceAllString(s, "")
	if s == "cc-zero" || s == "cc-0" {
		return "cc0"
	}
	return s
}
