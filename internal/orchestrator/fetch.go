// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carlmjohnson/requests"
	"github.com/segmentio/encoding/json"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/curation-engine/internal/publisher"
	"github.com/pdiddy/curation-engine/internal/registry"
)

// maxPassthroughBytes bounds passthrough response bodies.
const maxPassthroughBytes = 32 << 20

// doiResolver resolves DOIs to publisher landing pages.
var doiResolver = "https://doi.org/"

// AutocompleteFields are the index fields accepted for suggestions.
var AutocompleteFields = []string{"author", "journal", "publisher", "keyword", "funder"}

// fetched is a passthrough response.
type fetched struct {
	status   int
	body     string
	finalURL string
}

// fetchOpts selects how a passthrough request is made.
type fetchOpts struct {
	// credentialed attaches the browser's cookies for the URL.
	credentialed bool

	// anyStatus returns non-2xx responses instead of failing.
	anyStatus bool
}

// fetch GETs rawURL.
func (o *Orchestrator) fetch(ctx context.Context, rawURL string, opts fetchOpts) (fetched, error) {
	if rawURL == "" {
		return fetched{}, errors.New("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fetched{}, fmt.Errorf("unsupported url %q", rawURL)
	}

	rb := requests.URL(rawURL).Client(o.client)
	if o.userAgent != "" {
		rb.UserAgent(o.userAgent)
	}
	if opts.credentialed && o.cookies != nil {
		cookies, err := o.cookies.Cookies(ctx, rawURL)
		if err != nil {
			o.logger.Debug("no browser cookies", "url", rawURL, "error", err)
		}
		for _, c := range cookies {
			rb.Cookie(c.Name, c.Value)
		}
	}

	var out fetched
	err = rb.
		AddValidator(func(res *http.Response) error {
			if !opts.anyStatus && (res.StatusCode < 200 || res.StatusCode > 299) {
				return fmt.Errorf("HTTP %d from %s", res.StatusCode, rawURL)
			}
			return nil
		}).
		Handle(func(res *http.Response) error {
			defer res.Body.Close()
			b, err := io.ReadAll(io.LimitReader(res.Body, maxPassthroughBytes))
			if err != nil {
				return err
			}
			out.status = res.StatusCode
			out.body = string(b)
			out.finalURL = res.Request.URL.String()
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		return fetched{}, err
	}
	return out, nil
}

func (o *Orchestrator) fetchJSON(ctx context.Context, rawURL string) Response {
	f, err := o.fetch(ctx, rawURL, fetchOpts{credentialed: true})
	if err != nil {
		return failure(err)
	}
	if !gjson.Valid(f.body) {
		return failure(fmt.Errorf("response from %s is not JSON", rawURL))
	}
	return Response{Success: true, Data: json.RawMessage(f.body)}
}

// fetchHTML returns the page whatever its status; the caller reads Status
// to tell an error page from the article.
func (o *Orchestrator) fetchHTML(ctx context.Context, rawURL string) Response {
	f, err := o.fetch(ctx, rawURL, fetchOpts{credentialed: true, anyStatus: true})
	if err != nil {
		return failure(err)
	}
	if f.status < 200 || f.status > 299 {
		o.logger.Debug("passing through error page", "url", rawURL, "status", f.status)
	}
	return Response{Success: true, Data: f.body, FinalURL: f.finalURL, Status: f.status}
}

// autocomplete answers with the index's JSON, or an empty list on any
// failure so the form's suggestion box simply stays empty.
func (o *Orchestrator) autocomplete(ctx context.Context, req Request) Response {
	empty := Response{Success: true, Data: []any{}}
	target := req.URL
	if target == "" {
		u, err := AutocompleteURL(o.search.BaseURL, req.Field, req.Prefix, o.search.Limit)
		if err != nil {
			o.logger.Debug("autocomplete query rejected", "error", err)
			return empty
		}
		target = u
	}
	f, err := o.fetch(ctx, target, fetchOpts{})
	if err != nil || !gjson.Valid(f.body) {
		o.logger.Debug("autocomplete failed", "url", target, "error", err)
		return empty
	}
	return Response{Success: true, Data: json.RawMessage(f.body)}
}

// AutocompleteURL builds a faceted prefix query against the search index.
func AutocompleteURL(base, field, prefix string, limit int) (string, error) {
	if base == "" {
		return "", errors.New("search index is not configured")
	}
	known := false
	for _, f := range AutocompleteFields {
		if f == field {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("unsupported autocomplete field %q", field)
	}
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{
		"q":              {"*:*"},
		"rows":           {"0"},
		"wt":             {"json"},
		"facet":          {"true"},
		"facet.field":    {field},
		"facet.prefix":   {prefix},
		"facet.limit":    {strconv.Itoa(limit)},
		"facet.mincount": {"1"},
	}
	return base + "?" + q.Encode(), nil
}

// findPublisherPDF follows the DOI to the publisher's landing page and
// looks for a PDF link there.
func (o *Orchestrator) findPublisherPDF(ctx context.Context, doi string) Response {
	norm := registry.NormalizeDOI(doi)
	if norm == "" {
		return failure(fmt.Errorf("%w: %q", registry.ErrInvalidDOI, doi))
	}
	f, err := o.fetch(ctx, doiResolver+norm, fetchOpts{credentialed: true})
	if err != nil {
		return failure(err)
	}
	pdf := publisher.FindPDF(f.body, f.finalURL)
	if pdf == "" {
		return failure(fmt.Errorf("no PDF link found on %s", f.finalURL))
	}
	return Response{Success: true, Data: map[string]string{"pdfUrl": pdf, "landingUrl": f.finalURL}}
}
