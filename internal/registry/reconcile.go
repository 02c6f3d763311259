// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// ErrInvalidDOI is returned when the input does not look like a DOI.
var ErrInvalidDOI = errors.New("invalid DOI")

// KeySource supplies the locally stored Scopus API key. An empty key with a
// nil error means none is configured.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Reconciler merges the registries' answers for one DOI.
type Reconciler struct {
	client       *Client
	keys         KeySource
	institutions []types.Institution
	logger       *log.Logger
}

// NewReconciler creates a Reconciler. keys may be nil, in which case the
// Scopus enrichment is always skipped.
func NewReconciler(client *Client, keys KeySource, institutions []types.Institution, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		client:       client,
		keys:         keys,
		institutions: institutions,
		logger:       logger.WithPrefix("reconcile"),
	}
}

// Reconcile queries all registries for doi. The OA-status and citation
// lookups run in parallel; a failed one is replaced by its default record.
// Only when both fail does Reconcile return a *MandatoryError. Enrichment
// lookups run afterwards, also in parallel, and are omitted on any failure.
func (r *Reconciler) Reconcile(ctx context.Context, doi string) (*types.ReconciledMetadata, error) {
	norm := NormalizeDOI(doi)
	if norm == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDOI, doi)
	}

	var (
		oa       types.OARecord
		citation types.CitationRecord
		oaErr    error
		ciErr    error
	)
	var wg conc.WaitGroup
	wg.Go(func() { oa, oaErr = r.client.FetchOA(ctx, norm) })
	wg.Go(func() { citation, ciErr = r.client.FetchCitation(ctx, norm) })
	wg.Wait()

	if oaErr != nil && ciErr != nil {
		return nil, &MandatoryError{OA: oaErr, Citation: ciErr}
	}
	if oaErr != nil {
		r.logger.Warn("open-access lookup failed, assuming closed access", "doi", norm, "error", oaErr)
		oa = types.ClosedAccess()
	}
	if ciErr != nil {
		r.logger.Warn("citation lookup failed", "doi", norm, "error", ciErr)
		citation = types.CitationRecord{}
	}

	rec := &types.ReconciledMetadata{
		Unpaywall:       oa,
		Crossref:        citation,
		CrossrefLicense: LicenseFromCitation(citation),
	}
	r.enrich(ctx, norm, rec)
	rec.Assessment = Assess(rec, norm, r.institutions)
	return rec, nil
}

// CheckScopus runs the affiliation lookup alone with the stored key.
func (r *Reconciler) CheckScopus(ctx context.Context, doi string) (*types.AffiliationRecord, error) {
	norm := NormalizeDOI(doi)
	if norm == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDOI, doi)
	}
	key, err := r.apiKey(ctx)
	if err != nil {
		return nil, err
	}
	return r.client.CheckAffiliation(ctx, norm, key, r.institutions)
}

func (r *Reconciler) enrich(ctx context.Context, doi string, rec *types.ReconciledMetadata) {
	var wg conc.WaitGroup
	wg.Go(func() {
		authorship, err := r.client.FetchAuthorship(ctx, doi)
		if r.skip("openalex", doi, err) {
			return
		}
		rec.OpenAlex = authorship
	})
	wg.Go(func() {
		key, err := r.apiKey(ctx)
		if r.skip("scopus", doi, err) {
			return
		}
		aff, err := r.client.CheckAffiliation(ctx, doi, key, r.institutions)
		if r.skip("scopus", doi, err) {
			return
		}
		rec.Scopus = aff
	})
	if issn := journalISSN(rec); issn != "" {
		wg.Go(func() {
			listing, err := r.client.FetchListing(ctx, issn)
			if r.skip("doaj", doi, err) {
				return
			}
			rec.DOAJ = listing
		})
	}
	wg.Wait()
}

func (r *Reconciler) apiKey(ctx context.Context) (string, error) {
	if r.keys == nil {
		return "", nil
	}
	key, err := r.keys.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", SettingScopusAPIKey, err)
	}
	return key, nil
}

// skip logs a failed enrichment and reports whether the field is omitted.
func (r *Reconciler) skip(source, doi string, err error) bool {
	switch {
	case err == nil:
		return false
	case IsMissingCredential(err):
		r.logger.Debug("enrichment not configured", "source", source, "error", err)
	case IsNotFound(err):
		r.logger.Debug("no enrichment record", "source", source, "doi", doi)
	default:
		r.logger.Warn("enrichment lookup failed", "source", source, "doi", doi, "error", err)
	}
	return true
}

// journalISSN returns the first citation ISSN, falling back to the linking
// ISSN reported by the OA registry.
func journalISSN(rec *types.ReconciledMetadata) string {
	if issn := rec.Crossref.FirstISSN(); issn != "" {
		return issn
	}
	return rec.Unpaywall.JournalISSNL
}
