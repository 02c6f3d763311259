// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry queries bibliographic registries for a DOI and
// reconciles their answers into one record with conflict flags.
//
// Registries: Unpaywall (open-access status), Crossref (citation metadata),
// OpenAlex (authorships and institutions), Scopus (corresponding-author
// affiliation, needs an API key), and DOAJ (journal listing). Every call is
// a single attempt; there are no automatic retries.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/charmbracelet/log"

	"github.com/pdiddy/curation-engine/internal/httputil"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// Registry endpoints. Declared as vars so tests can point them at httptest
// servers.
var (
	unpaywallAPIBase = "https://api.unpaywall.org/v2/"
	crossrefAPIBase  = "https://api.crossref.org/works/"
	openAlexAPIBase  = "https://api.openalex.org/works/"
	scopusAPIBase    = "https://api.elsevier.com/content/abstract/doi/"
	doajAPIBase      = "https://doaj.org/api/search/journals/"
)

// Setting names reported in credential errors.
const (
	SettingContactEmail = "contact-email"
	SettingScopusAPIKey = "scopus-api-key"
)

// Client is a rate-limited client for the registries.
type Client struct {
	httpClient *http.Client
	email      string
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with the configured rate limit and User-Agent.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from cfg.
func New(cfg types.RegistryConfig, opts ...Option) *Client {
	c := &Client{email: cfg.Email}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithPrefix("registry")

	timeout := c.httpClient.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	c.httpClient = &http.Client{
		Timeout:   timeout,
		Jar:       c.httpClient.Jar,
		Transport: httputil.UserAgentTransport(httputil.RateLimitTransport(c.httpClient.Transport, cfg.RateLimit), cfg.UserAgent),
	}
	return c
}

// Email returns the configured contact address.
func (c *Client) Email() string { return c.email }

// getString performs a GET and returns the body. Non-2xx answers become
// *APIError tagged with source.
func (c *Client) getString(ctx context.Context, source string, rb *requests.Builder) (string, error) {
	var body string
	err := rb.
		Client(c.httpClient).
		Accept("application/json").
		AddValidator(statusValidator(source)).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%s lookup: %w", source, err)
	}
	return body, nil
}

func statusValidator(source string) requests.ResponseHandler {
	return func(res *http.Response) error {
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return &APIError{Source: source, StatusCode: res.StatusCode}
		}
		return nil
	}
}

var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// NormalizeDOI strips resolver prefixes and "doi:" labels, trims whitespace
// and lowercases the result. It returns "" when the input is not a DOI.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = strings.TrimSpace(lower[len(prefix):])
			break
		}
	}
	if !doiPattern.MatchString(lower) {
		return ""
	}
	return lower
}
