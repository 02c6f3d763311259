// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OALocation is an open-access copy reported by the OA-status registry.
type OALocation struct {
	URLForPDF string `json:"url_for_pdf,omitempty" yaml:"url_for_pdf,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	License   string `json:"license,omitempty" yaml:"license,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	HostType  string `json:"host_type,omitempty" yaml:"host_type,omitempty"`
}

// OARecord is the open-access status of a work (Unpaywall shape).
type OARecord struct {
	DOI             string      `json:"doi,omitempty" yaml:"doi,omitempty"`
	IsOA            bool        `json:"is_oa" yaml:"is_oa"`
	OAStatus        string      `json:"oa_status,omitempty" yaml:"oa_status,omitempty"`
	BestOALocation  *OALocation `json:"best_oa_location,omitempty" yaml:"best_oa_location,omitempty"`
	JournalIsInDOAJ bool        `json:"journal_is_in_doaj,omitempty" yaml:"journal_is_in_doaj,omitempty"`
	JournalISSNL    string      `json:"journal_issn_l,omitempty" yaml:"journal_issn_l,omitempty"`
}

// ClosedAccess is the record substituted when the OA-status lookup fails.
func ClosedAccess() OARecord {
	return OARecord{IsOA: false}
}

// CitationAuthor is an author entry in the citation registry.
type CitationAuthor struct {
	Given    string `json:"given,omitempty" yaml:"given,omitempty"`
	Family   string `json:"family,omitempty" yaml:"family,omitempty"`
	Sequence string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	ORCID    string `json:"ORCID,omitempty" yaml:"orcid,omitempty"`
}

// CitationLicense is a license assertion in the citation registry.
type CitationLicense struct {
	URL            string `json:"URL" yaml:"url"`
	ContentVersion string `json:"content-version,omitempty" yaml:"content_version,omitempty"`
	DelayInDays    int    `json:"delay-in-days,omitempty" yaml:"delay_in_days,omitempty"`
}

// DateParts is the citation registry's nested date representation.
type DateParts struct {
	DateParts [][]int `json:"date-parts,omitempty" yaml:"date_parts,omitempty"`
}

// Year returns the first year component, or 0.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// CitationRecord is the canonical citation metadata of a work (Crossref
// message shape). Every field may be absent.
type CitationRecord struct {
	DOI            string            `json:"DOI,omitempty" yaml:"doi,omitempty"`
	Title          []string          `json:"title,omitempty" yaml:"title,omitempty"`
	ContainerTitle []string          `json:"container-title,omitempty" yaml:"container_title,omitempty"`
	ISSN           []string          `json:"ISSN,omitempty" yaml:"issn,omitempty"`
	Publisher      string            `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Type           string            `json:"type,omitempty" yaml:"type,omitempty"`
	Page           string            `json:"page,omitempty" yaml:"page,omitempty"`
	Created        DateParts         `json:"created,omitempty" yaml:"created,omitempty"`
	Author         []CitationAuthor  `json:"author,omitempty" yaml:"author,omitempty"`
	License        []CitationLicense `json:"license,omitempty" yaml:"license,omitempty"`
}

// FirstTitle returns the first title or an empty string.
func (c CitationRecord) FirstTitle() string {
	if len(c.Title) == 0 {
		return ""
	}
	return c.Title[0]
}

// FirstISSN returns the first ISSN or an empty string.
func (c CitationRecord) FirstISSN() string {
	if len(c.ISSN) == 0 {
		return ""
	}
	return c.ISSN[0]
}

// AuthorshipInstitution is an institution attached to an authorship.
type AuthorshipInstitution struct {
	DisplayName string `json:"display_name" yaml:"display_name"`
	ROR         string `json:"ror,omitempty" yaml:"ror,omitempty"`
}

// Authorship links an author to institutions on one work.
type Authorship struct {
	AuthorName      string                  `json:"author_name" yaml:"author_name"`
	IsCorresponding bool                    `json:"is_corresponding" yaml:"is_corresponding"`
	Institutions    []AuthorshipInstitution `json:"institutions" yaml:"institutions"`
}

// AuthorshipRecord is the authorship/institution view of a work (OpenAlex).
type AuthorshipRecord struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Authorships []Authorship `json:"authorships" yaml:"authorships"`
}

// AffiliationRecord is the corresponding-author affiliation check (Scopus).
type AffiliationRecord struct {
	// IsMember reports whether a corresponding affiliation matched a member institution.
	IsMember bool `json:"isMember" yaml:"is_member"`

	// Affiliation is the matched affiliation, or all affiliations joined by "; ".
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`

	// Text carries an explanatory message when no correspondence data exists.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// OpenAccess is the registry's own open-access flag, when reported.
	OpenAccess *bool `json:"openAccess,omitempty" yaml:"open_access,omitempty"`
}

// ListingRecord is a journal's directory listing (DOAJ).
type ListingRecord struct {
	ISSN    string `json:"issn" yaml:"issn"`
	InDOAJ  bool   `json:"in_doaj" yaml:"in_doaj"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	License string `json:"license,omitempty" yaml:"license,omitempty"`
	HasAPC  bool   `json:"has_apc,omitempty" yaml:"has_apc,omitempty"`
}

// ConflictKind names a cross-registry disagreement.
type ConflictKind string

const (
	ConflictOAVsAffiliationRegistry ConflictKind = "oa-status-vs-affiliation-registry"
	ConflictHybridInDOAJJournal     ConflictKind = "hybrid-in-doaj-journal"
	ConflictLicenseMismatch         ConflictKind = "license-mismatch"
	ConflictCorrespondingMismatch   ConflictKind = "corresponding-affiliation-mismatch"
	ConflictDOIMismatch             ConflictKind = "doi-mismatch"
)

// Conflict is one flagged disagreement between registries.
type Conflict struct {
	Kind    ConflictKind `json:"kind" yaml:"kind"`
	Message string       `json:"message" yaml:"message"`
	Sources []string     `json:"sources" yaml:"sources"`
}

// Assessment is the verdict derived from a ReconciledMetadata record.
type Assessment struct {
	IsOA     bool   `json:"isOA" yaml:"is_oa"`
	OAStatus string `json:"oaStatus" yaml:"oa_status"`
	IsHybrid bool   `json:"isHybrid" yaml:"is_hybrid"`
	Label    string `json:"label" yaml:"label"`
	PDFURL   string `json:"pdfUrl,omitempty" yaml:"pdf_url,omitempty"`
	License  string `json:"license,omitempty" yaml:"license,omitempty"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	DOIURL   string `json:"doiUrl,omitempty" yaml:"doi_url,omitempty"`

	// PolicyURL links the publisher-policy lookup for the first ISSN.
	PolicyURL string `json:"policyUrl,omitempty" yaml:"policy_url,omitempty"`

	// CorrespondingAffiliated is nil when no registry reported a
	// corresponding author.
	CorrespondingAffiliated *bool  `json:"correspondingAffiliated,omitempty" yaml:"corresponding_affiliated,omitempty"`
	AffiliatedInstitution   string `json:"affiliatedInstitution,omitempty" yaml:"affiliated_institution,omitempty"`

	Conflicts []Conflict `json:"conflicts" yaml:"conflicts"`
}

// ReconciledMetadata merges the registries' views of one DOI. Unpaywall and
// Crossref are always present (possibly defaulted); the enrichment fields are
// nil when their source was unavailable or not configured.
type ReconciledMetadata struct {
	Unpaywall       OARecord           `json:"unpaywall" yaml:"unpaywall"`
	Crossref        CitationRecord     `json:"crossref" yaml:"crossref"`
	OpenAlex        *AuthorshipRecord  `json:"openalex,omitempty" yaml:"openalex,omitempty"`
	Scopus          *AffiliationRecord `json:"scopus,omitempty" yaml:"scopus,omitempty"`
	DOAJ            *ListingRecord     `json:"doaj,omitempty" yaml:"doaj,omitempty"`
	CrossrefLicense string             `json:"crossrefLicense,omitempty" yaml:"crossref_license,omitempty"`
	Assessment      Assessment         `json:"assessment" yaml:"assessment"`
}

// AnalysisResult is the typed view of the analysis service response.
type AnalysisResult struct {
	Status    string   `json:"status" yaml:"status"`
	PageCount int      `json:"page_count" yaml:"page_count"`
	Keywords  []string `json:"keywords" yaml:"keywords"`
}
