// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/curation-engine/pkg/types"
)

const (
	demoUnpaywall = `{"doi":"10.1000/demo","is_oa":true,"oa_status":"hybrid",
		"best_oa_location":{"url_for_pdf":"https://example.org/a.pdf","license":"cc-by","version":"publishedVersion"},
		"journal_is_in_doaj":false,"journal_issn_l":"1234-5678"}`
	demoCrossref = `{"status":"ok","message":{"title":["Demo Title"],"DOI":"10.1000/demo","ISSN":["1234-5678"]}}`
	demoOpenAlex = `{"id":"https://openalex.org/W1","authorships":[
		{"author":{"display_name":"A. Author"},"is_corresponding":true,
		 "institutions":[{"display_name":"Paul Scherrer Institute","ror":"https://ror.org/0207ad741"}]},
		{"author":{"display_name":"B. Author"},"is_corresponding":false,"institutions":[]}]}`
	demoScopus = `{"abstracts-retrieval-response":{
		"coredata":{"openaccess":"1"},
		"item":{"bibrecord":{"head":{"correspondence":{
			"affiliation":{"organization":[{"$":"Laboratory for Neutron Scattering"},{"$":"Paul Scherrer Institut"}],"country":"Switzerland"}}}}}}}`
	demoDOAJMiss = `{"total":0,"results":[]}`
)

// registryServer serves canned registry answers keyed by path prefix. A
// missing route answers 500.
type registryServer struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	seen   []*http.Request
}

func newRegistryServer(t *testing.T) *registryServer {
	t.Helper()
	rs := &registryServer{routes: map[string]string{}, status: map[string]int{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.seen = append(rs.seen, r.Clone(context.Background()))
		rs.mu.Unlock()
		for prefix, code := range rs.status {
			if strings.HasPrefix(r.URL.Path, prefix) {
				w.WriteHeader(code)
				return
			}
		}
		for prefix, body := range rs.routes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, body)
				return
			}
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(rs.Close)

	saved := []string{unpaywallAPIBase, crossrefAPIBase, openAlexAPIBase, scopusAPIBase, doajAPIBase}
	unpaywallAPIBase = rs.URL + "/unpaywall/"
	crossrefAPIBase = rs.URL + "/crossref/"
	openAlexAPIBase = rs.URL + "/openalex/"
	scopusAPIBase = rs.URL + "/scopus/"
	doajAPIBase = rs.URL + "/doaj/"
	t.Cleanup(func() {
		unpaywallAPIBase, crossrefAPIBase, openAlexAPIBase, scopusAPIBase, doajAPIBase = saved[0], saved[1], saved[2], saved[3], saved[4]
	})
	return rs
}

func (rs *registryServer) requests(prefix string) []*http.Request {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []*http.Request
	for _, r := range rs.seen {
		if strings.HasPrefix(r.URL.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func testClient(email string) *Client {
	return New(types.RegistryConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "curation-engine/test"},
		Email:      email,
	}, WithLogger(log.New(io.Discard)))
}

type staticKey string

func (k staticKey) APIKey(context.Context) (string, error) { return string(k), nil }

func testReconciler(email string, key KeySource) *Reconciler {
	return NewReconciler(testClient(email), key, types.DefaultInstitutions, log.New(io.Discard))
}

func TestReconcile_EndToEnd(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/unpaywall/"] = demoUnpaywall
	rs.routes["/crossref/"] = demoCrossref
	rs.routes["/doaj/"] = demoDOAJMiss

	rec, err := testReconciler("curator@example.org", nil).Reconcile(context.Background(), "10.1000/demo")
	require.NoError(t, err)

	assert.True(t, rec.Assessment.IsHybrid)
	assert.Equal(t, LabelHybrid, rec.Assessment.Label)
	assert.Equal(t, "https://example.org/a.pdf", rec.Assessment.PDFURL)
	assert.Equal(t, "https://openpolicyfinder.jisc.ac.uk/search?search=1234-5678", rec.Assessment.PolicyURL)
	assert.Equal(t, "https://doi.org/10.1000/demo", rec.Assessment.DOIURL)
	assert.Equal(t, "Demo Title", rec.Crossref.FirstTitle())
	assert.Empty(t, rec.Assessment.Conflicts)

	// OpenAlex route is missing (500) and no Scopus key is configured.
	assert.Nil(t, rec.OpenAlex)
	assert.Nil(t, rec.Scopus)
	require.NotNil(t, rec.DOAJ)
	assert.False(t, rec.DOAJ.InDOAJ)

	ups := rs.requests("/unpaywall/")
	require.Len(t, ups, 1)
	assert.Equal(t, "/unpaywall/10.1000/demo", ups[0].URL.Path)
	assert.Equal(t, "curator@example.org", ups[0].URL.Query().Get("email"))
	assert.Equal(t, "curation-engine/test", ups[0].UserAgent())
	assert.Equal(t, "curator@example.org", rs.requests("/crossref/")[0].URL.Query().Get("mailto"))
	assert.Empty(t, rs.requests("/scopus/"), "no key, no request")
}

func TestReconcile_BothMandatoryFail(t *testing.T) {
	rs := newRegistryServer(t)
	rs.status["/unpaywall/"] = http.StatusNotFound
	rs.status["/crossref/"] = http.StatusNotFound

	rec, err := testReconciler("curator@example.org", nil).Reconcile(context.Background(), "10.1000/missing")
	assert.Nil(t, rec)
	var me *MandatoryError
	require.True(t, errors.As(err, &me))
	assert.Contains(t, err.Error(), "network error or invalid DOI")
	assert.True(t, IsNotFound(err))
}

func TestReconcile_OAFailureDefaultsToClosed(t *testing.T) {
	rs := newRegistryServer(t)
	rs.status["/unpaywall/"] = http.StatusServiceUnavailable
	rs.routes["/crossref/"] = demoCrossref
	rs.routes["/doaj/"] = demoDOAJMiss

	rec, err := testReconciler("curator@example.org", nil).Reconcile(context.Background(), "10.1000/demo")
	require.NoError(t, err)
	assert.False(t, rec.Unpaywall.IsOA)
	assert.Equal(t, LabelClosed, rec.Assessment.Label)
	assert.Equal(t, "Demo Title", rec.Crossref.FirstTitle())
}

func TestReconcile_MissingEmailStillReturnsCitation(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/unpaywall/"] = demoUnpaywall
	rs.routes["/crossref/"] = demoCrossref
	rs.routes["/doaj/"] = demoDOAJMiss

	rec, err := testReconciler("", nil).Reconcile(context.Background(), "10.1000/demo")
	require.NoError(t, err)
	assert.False(t, rec.Unpaywall.IsOA, "unpaywall needs an email")
	assert.Empty(t, rs.requests("/unpaywall/"))
	assert.Empty(t, rs.requests("/openalex/"))
	assert.Equal(t, "10.1000/demo", rec.Crossref.DOI)
}

func TestReconcile_EnrichmentFailureIsIndependent(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/unpaywall/"] = demoUnpaywall
	rs.routes["/crossref/"] = demoCrossref
	rs.routes["/openalex/"] = demoOpenAlex
	rs.routes["/doaj/"] = demoDOAJMiss
	rs.status["/scopus/"] = http.StatusUnauthorized

	rec, err := testReconciler("curator@example.org", staticKey("bad-key")).Reconcile(context.Background(), "10.1000/demo")
	require.NoError(t, err)
	assert.True(t, rec.Unpaywall.IsOA)
	assert.Equal(t, "Demo Title", rec.Crossref.FirstTitle())
	assert.Nil(t, rec.Scopus)
	require.NotNil(t, rec.OpenAlex)
	require.NotNil(t, rec.Assessment.CorrespondingAffiliated)
	assert.True(t, *rec.Assessment.CorrespondingAffiliated)
	assert.Equal(t, "PSI", rec.Assessment.AffiliatedInstitution)

	sc := rs.requests("/scopus/")
	require.Len(t, sc, 1)
	assert.Equal(t, "bad-key", sc[0].Header.Get("X-ELS-APIKey"))
}

func TestReconcile_FullEnrichmentAndConflicts(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/unpaywall/"] = demoUnpaywall
	rs.routes["/crossref/"] = `{"message":{"DOI":"10.1000/demo","ISSN":["1234-5678"],
		"license":[{"URL":"http://creativecommons.org/licenses/by-nc/4.0/","content-version":"am"}]}}`
	rs.routes["/openalex/"] = `{"authorships":[{"is_corresponding":true,"institutions":[{"display_name":"Elsewhere"}]}]}`
	rs.routes["/scopus/"] = demoScopus
	rs.routes["/doaj/"] = `{"total":1,"results":[{"bibjson":{"title":"Demo Journal","license":[{"type":"CC BY"}],"apc":{"has_apc":true}}}]}`

	rec, err := testReconciler("curator@example.org", staticKey("key")).Reconcile(context.Background(), "https://doi.org/10.1000/DEMO")
	require.NoError(t, err)
	require.NotNil(t, rec.Scopus)
	assert.True(t, rec.Scopus.IsMember)
	require.NotNil(t, rec.DOAJ)
	assert.Equal(t, "Demo Journal", rec.DOAJ.Title)
	assert.Equal(t, "http://creativecommons.org/licenses/by-nc/4.0/", rec.CrossrefLicense)

	kinds := map[types.ConflictKind]bool{}
	for _, c := range rec.Assessment.Conflicts {
		kinds[c.Kind] = true
	}
	assert.True(t, kinds[types.ConflictHybridInDOAJJournal])
	assert.True(t, kinds[types.ConflictLicenseMismatch])
	assert.True(t, kinds[types.ConflictCorrespondingMismatch])
	assert.False(t, kinds[types.ConflictOAVsAffiliationRegistry], "both report open access")
	assert.False(t, kinds[types.ConflictDOIMismatch])

	require.NotNil(t, rec.Assessment.CorrespondingAffiliated)
	assert.True(t, *rec.Assessment.CorrespondingAffiliated, "scopus takes precedence")
	assert.Equal(t, "PSI", rec.Assessment.AffiliatedInstitution)
}

func TestReconcile_InvalidDOI(t *testing.T) {
	_, err := testReconciler("curator@example.org", nil).Reconcile(context.Background(), "not a doi")
	assert.ErrorIs(t, err, ErrInvalidDOI)
}

func TestCheckAffiliation_Errors(t *testing.T) {
	rs := newRegistryServer(t)
	c := testClient("")

	_, err := c.CheckAffiliation(context.Background(), "10.1000/demo", "", types.DefaultInstitutions)
	assert.True(t, IsMissingCredential(err))
	assert.Contains(t, err.Error(), "settings set scopus-api-key")

	rs.status["/scopus/"] = http.StatusNotFound
	_, err = c.CheckAffiliation(context.Background(), "10.1000/demo", "k", types.DefaultInstitutions)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidCredential(err))

	rs.status["/scopus/"] = http.StatusForbidden
	_, err = c.CheckAffiliation(context.Background(), "10.1000/demo", "k", types.DefaultInstitutions)
	assert.True(t, IsInvalidCredential(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "scopus", apiErr.Source)
}

func TestCheckScopus_UsesStoredKey(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/scopus/"] = demoScopus

	rec, err := testReconciler("", staticKey("stored")).CheckScopus(context.Background(), "doi:10.1000/demo")
	require.NoError(t, err)
	assert.True(t, rec.IsMember)
	assert.Equal(t, "stored", rs.requests("/scopus/")[0].Header.Get("X-ELS-APIKey"))

	_, err = testReconciler("", nil).CheckScopus(context.Background(), "10.1000/demo")
	assert.True(t, IsMissingCredential(err))
}

func TestParseAffiliation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		member     bool
		affil      string
		text       string
		openAccess *bool
	}{
		{
			name:   "object with organization array",
			body:   demoScopus,
			member: true,
			affil:  "Laboratory for Neutron Scattering, Paul Scherrer Institut, Switzerland",
		},
		{
			name: "array of correspondence, second matches",
			body: `{"abstracts-retrieval-response":{"item":{"bibrecord":{"head":{"correspondence":[
				{"affiliation":{"organization":"University of Bern","country":"Switzerland"}},
				{"affiliation":{"organization":{"$":"Eawag"},"country":"Switzerland"}}]}}}}}`,
			member: true,
			affil:  "Eawag, Switzerland",
		},
		{
			name: "no member",
			body: `{"abstracts-retrieval-response":{"coredata":{"openaccess":"0"},"item":{"bibrecord":{"head":{"correspondence":[
				{"affiliation":{"organization":["Dept. of Physics","ETH Zurich"],"country":"Switzerland"}},
				{"affiliation":{"organization":"Upsilon Labs"}}]}}}}}`,
			affil:      "Dept. of Physics, ETH Zurich, Switzerland; Upsilon Labs",
			openAccess: boolPtr(false),
		},
		{
			name: "no correspondence",
			body: `{"abstracts-retrieval-response":{"item":{"bibrecord":{"head":{}}}}}`,
			text: NoCorrespondenceText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ParseAffiliation(tt.body, types.DefaultInstitutions)
			assert.Equal(t, tt.member, rec.IsMember)
			assert.Equal(t, tt.affil, rec.Affiliation)
			assert.Equal(t, tt.text, rec.Text)
			if tt.openAccess != nil {
				require.NotNil(t, rec.OpenAccess)
				assert.Equal(t, *tt.openAccess, *rec.OpenAccess)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestFetchListing(t *testing.T) {
	rs := newRegistryServer(t)
	rs.routes["/doaj/"] = `{"total":1,"results":[{"bibjson":{"title":"J","license":[{"type":"CC BY"}],"apc":{"has_apc":false}}}]}`

	rec, err := testClient("").FetchListing(context.Background(), "1234-5678")
	require.NoError(t, err)
	assert.True(t, rec.InDOAJ)
	assert.Equal(t, "CC BY", rec.License)
	assert.Equal(t, "/doaj/issn:1234-5678", rs.requests("/doaj/")[0].URL.Path)
}

func TestOAVsAffiliationConflict(t *testing.T) {
	closed := false
	rec := &types.ReconciledMetadata{
		Unpaywall: types.OARecord{IsOA: true, OAStatus: "gold"},
		Scopus:    &types.AffiliationRecord{Text: NoCorrespondenceText, OpenAccess: &closed},
	}
	a := Assess(rec, "10.1000/demo", types.DefaultInstitutions)
	require.Len(t, a.Conflicts, 1)
	assert.Equal(t, types.ConflictOAVsAffiliationRegistry, a.Conflicts[0].Kind)
	assert.Equal(t, LabelGold, a.Label)
	assert.Nil(t, a.CorrespondingAffiliated)
}

func TestDOIMismatch(t *testing.T) {
	rec := &types.ReconciledMetadata{Crossref: types.CitationRecord{DOI: "10.1000/other"}}
	a := Assess(rec, "10.1000/demo", nil)
	require.Len(t, a.Conflicts, 1)
	assert.Equal(t, types.ConflictDOIMismatch, a.Conflicts[0].Kind)
	assert.Equal(t, []string{"crossref"}, a.Conflicts[0].Sources)
	assert.Equal(t, "https://doi.org/10.1000/other", a.DOIURL)
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct{ in, want string }{
		{"10.1000/demo", "10.1000/demo"},
		{" https://doi.org/10.1000/DEMO ", "10.1000/demo"},
		{"http://dx.doi.org/10.1000/x.y", "10.1000/x.y"},
		{"doi:10.12345/abc", "10.12345/abc"},
		{"not a doi", ""},
		{"10.1/short", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDOI(tt.in), tt.in)
	}
}

func TestNormalizeLicense(t *testing.T) {
	tests := []struct{ in, want string }{
		{"cc-by", "cc-by"},
		{"CC BY 4.0", "cc-by"},
		{"https://creativecommons.org/licenses/by/4.0/", "cc-by"},
		{"http://creativecommons.org/licenses/by-nc-nd/3.0/igo/", "cc-by-nc-nd"},
		{"https://creativecommons.org/publicdomain/zero/1.0/", "cc0"},
		{"cc_by_nc", "cc-by-nc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLicense(tt.in), tt.in)
	}
}

func TestLicenseFromCitation(t *testing.T) {
	rec := types.CitationRecord{License: []types.CitationLicense{
		{URL: "https://example.org/tdm", ContentVersion: "tdm"},
		{URL: "https://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor"},
	}}
	assert.Equal(t, "https://creativecommons.org/licenses/by/4.0/", LicenseFromCitation(rec))
	assert.Equal(t, "https://example.org/tdm", LicenseFromCitation(types.CitationRecord{License: rec.License[:1]}))
	assert.Empty(t, LicenseFromCitation(types.CitationRecord{}))
}

func TestPolicyURL(t *testing.T) {
	assert.Equal(t, "https://openpolicyfinder.jisc.ac.uk/search?search=1234-5678", PolicyURL("1234-5678"))
	assert.Empty(t, PolicyURL(" "))
}
