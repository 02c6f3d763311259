// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator is the RPC dispatcher between the curation form and
// the engine's components. Every request yields exactly one Response; a
// failure anywhere, including a panic, becomes {success: false, error}.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/curation-engine/internal/acquire"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// RPC action names.
const (
	ActionFetchData          = "fetchData"
	ActionFetchPsiData       = "fetchPsiData"
	ActionAnalyzePdf         = "analyzePdf"
	ActionAnalyzePdfURL      = "analyzePdfUrl"
	ActionAnalyzePdfViaTab   = "analyzePdfViaTab"
	ActionFetchHTML          = "fetchHtml"
	ActionRegisterDoraTab    = "registerDoraTab"
	ActionCheckScopus        = "checkScopus"
	ActionSearchAutocomplete = "searchAutocomplete"
	ActionFindPublisherPdf   = "findPublisherPdf"
)

// Request is one RPC call. Only the fields relevant to Action are read.
type Request struct {
	Action   string `json:"action"`
	DOI      string `json:"doi,omitempty"`
	URL      string `json:"url,omitempty"`
	PDFURL   string `json:"pdfUrl,omitempty"`
	FileData string `json:"fileData,omitempty"`

	// TabID is the sender's DevTools target id, used by registerDoraTab.
	TabID string `json:"tabId,omitempty"`

	// Field and Prefix build a search-index query when URL is empty.
	Field  string `json:"field,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Response is the uniform RPC answer.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// Remedy is a hint for acquisition failures.
	Remedy string `json:"remedy,omitempty"`

	// FinalURL is the post-redirect URL for fetchHtml.
	FinalURL string `json:"finalUrl,omitempty"`

	// Status is the upstream HTTP status for fetchHtml.
	Status int `json:"status,omitempty"`
}

// Reconciler resolves a DOI against the registries.
type Reconciler interface {
	Reconcile(ctx context.Context, doi string) (*types.ReconciledMetadata, error)
	CheckScopus(ctx context.Context, doi string) (*types.AffiliationRecord, error)
}

// Acquirer runs the PDF acquisition chain.
type Acquirer interface {
	AnalyzeURL(ctx context.Context, pdfURL string) (json.RawMessage, error)
	AnalyzeViaTab(ctx context.Context, pdfURL string) (json.RawMessage, error)
}

// Uploader submits a file the curator dropped into the form.
type Uploader interface {
	AnalyzeDataURL(ctx context.Context, dataURL string) (json.RawMessage, error)
}

// SessionRegistry holds the single active form tab.
type SessionRegistry interface {
	RegisterSessionTab(tabID int)
}

// TabResolver maps a DevTools target id to a browser tab id.
type TabResolver interface {
	TabIDForTarget(ctx context.Context, targetID string) (int, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSession sets the registry updated by registerDoraTab.
func WithSession(s SessionRegistry) Option { return func(o *Orchestrator) { o.session = s } }

// WithTabResolver sets how registerDoraTab finds the sender's tab.
func WithTabResolver(r TabResolver) Option { return func(o *Orchestrator) { o.tabs = r } }

// WithCookies supplies browser cookies for credentialed passthrough fetches.
func WithCookies(cs acquire.CookieSource) Option { return func(o *Orchestrator) { o.cookies = cs } }

// WithHTTPClient sets the client for passthrough fetches.
func WithHTTPClient(hc *http.Client) Option { return func(o *Orchestrator) { o.client = hc } }

// WithUserAgent sets the User-Agent of passthrough fetches.
func WithUserAgent(ua string) Option { return func(o *Orchestrator) { o.userAgent = ua } }

// WithSearch configures the autocomplete index.
func WithSearch(cfg types.SearchConfig) Option { return func(o *Orchestrator) { o.search = cfg } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// Orchestrator dispatches RPC requests. It is created once per process and
// safe for concurrent use.
type Orchestrator struct {
	reconciler Reconciler
	acquirer   Acquirer
	uploader   Uploader
	session    SessionRegistry
	tabs       TabResolver
	cookies    acquire.CookieSource
	client     *http.Client
	userAgent  string
	search     types.SearchConfig
	logger     *log.Logger
}

// New creates an Orchestrator.
func New(rec Reconciler, acq Acquirer, up Uploader, opts ...Option) *Orchestrator {
	o := &Orchestrator{reconciler: rec, acquirer: acq, uploader: up}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 60 * time.Second}
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	o.logger = o.logger.WithPrefix("rpc")
	return o
}

// Dispatch runs one request. It never panics.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in handler", "action", req.Action, "panic", r)
			resp = Response{Error: fmt.Sprintf("internal error while handling %s", req.Action)}
		}
		o.logger.Info("handled", "action", req.Action, "success", resp.Success, "elapsed", time.Since(start).Round(time.Millisecond))
	}()

	switch req.Action {
	case ActionFetchData:
		return result(o.reconciler.Reconcile(ctx, req.DOI))
	case ActionCheckScopus:
		return result(o.reconciler.CheckScopus(ctx, req.DOI))
	case ActionAnalyzePdf:
		if req.FileData == "" {
			return failure(errors.New("fileData is required"))
		}
		return raw(o.uploader.AnalyzeDataURL(ctx, req.FileData))
	case ActionAnalyzePdfURL:
		if req.PDFURL == "" {
			return failure(errors.New("pdfUrl is required"))
		}
		return raw(o.acquirer.AnalyzeURL(ctx, req.PDFURL))
	case ActionAnalyzePdfViaTab:
		if req.PDFURL == "" {
			return failure(errors.New("pdfUrl is required"))
		}
		return raw(o.acquirer.AnalyzeViaTab(ctx, req.PDFURL))
	case ActionFetchPsiData:
		return o.fetchJSON(ctx, req.URL)
	case ActionFetchHTML:
		return o.fetchHTML(ctx, req.URL)
	case ActionRegisterDoraTab:
		return o.registerTab(ctx, req.TabID)
	case ActionSearchAutocomplete:
		return o.autocomplete(ctx, req)
	case ActionFindPublisherPdf:
		return o.findPublisherPDF(ctx, req.DOI)
	case "":
		return failure(errors.New("missing action"))
	default:
		return failure(fmt.Errorf("unknown action %q", req.Action))
	}
}

func (o *Orchestrator) registerTab(ctx context.Context, targetID string) Response {
	if o.session == nil || o.tabs == nil {
		return failure(errors.New("no browser session is attached"))
	}
	if targetID == "" {
		return failure(errors.New("registerDoraTab requires the sender's tab id"))
	}
	tabID, err := o.tabs.TabIDForTarget(ctx, targetID)
	if err != nil {
		return failure(err)
	}
	o.session.RegisterSessionTab(tabID)
	return Response{Success: true, Data: map[string]any{"tabId": tabID, "targetId": targetID}}
}

func result[T any](v T, err error) Response {
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Data: v}
}

func raw(v json.RawMessage, err error) Response {
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Data: v}
}

func failure(err error) Response {
	resp := Response{Error: err.Error()}
	var ae *acquire.Error
	if errors.As(err, &ae) {
		resp.Remedy = ae.Remedy()
	}
	return resp
}
