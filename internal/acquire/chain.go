// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire obtains PDF bytes for a URL from the curator's browser
// session and hands them to the analysis service.
//
// Strategies are tried strictly in order, each only after the previous one
// definitively failed:
//
//  1. tab context: inject the locator into a live tab showing the PDF;
//  2. direct network fetch (not for blob: URLs);
//  3. remote delegation: send the URL itself to the analysis service (not for
//     blob: URLs).
//
// A blob: URL that is not alive in any tab is unrecoverable and fails fast.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/curation-engine/internal/analyzer"
	"github.com/pdiddy/curation-engine/internal/locator"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// uploadFilename is the multipart file name used for extracted bytes.
const uploadFilename = "downloaded.pdf"

// closeTimeout bounds closing a tab opened for an attempt.
var closeTimeout = 5 * time.Second

// TabHost is the browser capability the chain needs.
type TabHost interface {
	Tabs(ctx context.Context) ([]types.Tab, error)
	OpenTab(ctx context.Context, url string) (types.Tab, error)
	// WaitLoaded returns when the tab reached load-complete or ctx ends.
	WaitLoaded(ctx context.Context, tabID int) error
	CloseTab(ctx context.Context, tabID int) error
	// Inject runs the locator in every frame of a tab and returns one
	// result per frame, top frame first.
	Inject(ctx context.Context, req types.InjectRequest, opts locator.Options) ([]locator.Result, error)
}

// Analyzer submits documents to the analysis service.
type Analyzer interface {
	AnalyzeBytes(ctx context.Context, data []byte, filename string) (json.RawMessage, error)
	AnalyzeURL(ctx context.Context, pdfURL string) (json.RawMessage, error)
}

// Option configures a Chain.
type Option func(*Chain)

// WithTabHost attaches a browser. Without one the tab strategy is skipped.
func WithTabHost(h TabHost) Option { return func(c *Chain) { c.host = h } }

// WithAssociations supplies the monitor's recorded tabs and referrers.
func WithAssociations(a Associations) Option { return func(c *Chain) { c.assoc = a } }

// WithCookies supplies browser cookies for credentialed network fetches.
func WithCookies(cs CookieSource) Option { return func(c *Chain) { c.cookies = cs } }

// WithHTTPClient sets the client used for direct network fetches.
func WithHTTPClient(hc *http.Client) Option { return func(c *Chain) { c.client = hc } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Chain) { c.logger = l } }

// Chain runs the acquisition strategies.
type Chain struct {
	host     TabHost
	assoc    Associations
	cookies  CookieSource
	client   *http.Client
	analyzer Analyzer
	cfg      types.AcquisitionConfig
	logger   *log.Logger
}

// New creates a Chain submitting to an. Zero size floors in cfg fall back to
// the defaults.
func New(an Analyzer, cfg types.AcquisitionConfig, opts ...Option) *Chain {
	def := types.DefaultEngineConfig().Acquisition
	if cfg.MinTabPDFSize <= 0 {
		cfg.MinTabPDFSize = def.MinTabPDFSize
	}
	if cfg.MinNetworkPDFSize <= 0 {
		cfg.MinNetworkPDFSize = def.MinNetworkPDFSize
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = def.LoadTimeout
	}
	c := &Chain{analyzer: an, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithPrefix("acquire")
	return c
}

// AnalyzeURL runs the full chain against existing tabs only: tab context,
// then direct fetch, then remote delegation. The analysis service's JSON is
// returned untouched.
func (c *Chain) AnalyzeURL(ctx context.Context, rawURL string) (json.RawMessage, error) {
	t := NewTarget(rawURL)
	logger := c.attemptLogger(t)

	data, tabErr := c.extractFromTab(ctx, t, false, logger)
	if tabErr == nil {
		return c.submitBytes(ctx, t, data, logger)
	}
	logFailure(logger, "tab", tabErr)
	if t.IsBlob {
		return nil, tabErr
	}

	data, netErr := c.FetchNetwork(ctx, t)
	if netErr == nil {
		logger.Info("pdf fetched over the network", "bytes", len(data))
		return c.submitBytes(ctx, t, data, logger)
	}
	logFailure(logger, "network", netErr)

	res, err := c.delegate(ctx, t, logger)
	if err != nil {
		return nil, exhausted(t, err, tabErr, netErr)
	}
	return res, nil
}

// AnalyzeViaTab runs the tab strategy alone, opening a background tab when
// no existing tab shows the URL. Any failure falls back to remote
// delegation for non-blob URLs.
func (c *Chain) AnalyzeViaTab(ctx context.Context, rawURL string) (json.RawMessage, error) {
	t := NewTarget(rawURL)
	logger := c.attemptLogger(t)

	data, err := c.extractFromTab(ctx, t, true, logger)
	if err == nil {
		res, upErr := c.submitBytes(ctx, t, data, logger)
		if upErr == nil {
			return res, nil
		}
		err = upErr
	}
	logFailure(logger, "tab", err)
	if t.IsBlob {
		return nil, err
	}

	res, delegErr := c.delegate(ctx, t, logger)
	if delegErr != nil {
		return nil, exhausted(t, err, delegErr)
	}
	return res, nil
}

// tabLease is the tab chosen for one attempt and whether the attempt owns
// it, i.e. must close it when done.
type tabLease struct {
	tab   types.Tab
	match Match
	owned bool
}

func (c *Chain) extractFromTab(ctx context.Context, t Target, openIfMissing bool, logger *log.Logger) ([]byte, error) {
	if c.host == nil {
		if t.IsBlob {
			return nil, fail(KindNotFound, t.URL, "no browser attached; blob URLs are only readable inside their tab")
		}
		return nil, fail(KindTabContext, t.URL, "no browser attached")
	}

	lease, err := c.leaseTab(ctx, t, openIfMissing, logger)
	if err != nil {
		return nil, err
	}
	defer c.release(lease, logger)

	logger.Debug("injecting locator", "tab", lease.tab.ID, "match", lease.match, "world", t.World())
	results, err := c.host.Inject(ctx, types.InjectRequest{
		TabID:     lease.tab.ID,
		World:     t.World(),
		AllFrames: true,
		IsBlob:    t.IsBlob,
	}, locator.Options{
		MinSize:       c.cfg.MinTabPDFSize,
		ViewerTimeout: c.cfg.ViewerTimeout,
		PollInterval:  c.cfg.ViewerPollInterval,
	})
	if err != nil {
		return nil, &Error{Kind: KindTabContext, URL: t.URL, Err: fmt.Errorf("injecting into tab %d: %w", lease.tab.ID, err)}
	}

	var firstErr error
	for _, r := range results {
		if r.OK() {
			data, _, err := locator.DecodeDataURL(r.DataURL)
			if err != nil {
				firstErr = err
				continue
			}
			logger.Info("pdf extracted from tab", "tab", lease.tab.ID, "source", r.Source, "bytes", len(data))
			return data, nil
		}
		if firstErr == nil && r.Err != nil {
			firstErr = r.Err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no frame returned a result")
	}
	return nil, &Error{Kind: KindTabContext, URL: t.URL, Err: fmt.Errorf("extracting from tab %d: %w", lease.tab.ID, firstErr)}
}

func (c *Chain) leaseTab(ctx context.Context, t Target, openIfMissing bool, logger *log.Logger) (tabLease, error) {
	tabs, err := c.host.Tabs(ctx)
	if err != nil {
		return tabLease{}, &Error{Kind: KindTabContext, URL: t.URL, Err: fmt.Errorf("listing tabs: %w", err)}
	}

	if tab, match, ok := SelectTab(t, tabs, c.assoc); ok {
		return tabLease{tab: tab, match: match}, nil
	}
	if t.IsBlob {
		return tabLease{}, fail(KindNotFound, t.URL, "blob URL is not open in any tab; the PDF tab may have been closed")
	}
	if !openIfMissing {
		return tabLease{}, fail(KindNotFound, t.URL, "no open tab shows %s", t.URL)
	}

	tab, err := c.host.OpenTab(ctx, t.URL)
	if err != nil {
		return tabLease{}, &Error{Kind: KindTabContext, URL: t.URL, Err: fmt.Errorf("opening tab: %w", err)}
	}
	lease := tabLease{tab: tab, owned: true}
	logger.Debug("opened background tab", "tab", tab.ID)

	loadCtx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	err = c.host.WaitLoaded(loadCtx, tab.ID)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			c.release(lease, logger)
			return tabLease{}, &Error{Kind: KindTabContext, URL: t.URL, Err: ctx.Err()}
		}
		logger.Debug("load wait ended without completion, continuing", "tab", tab.ID, "err", err)
	}

	if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
		c.release(lease, logger)
		return tabLease{}, &Error{Kind: KindTabContext, URL: t.URL, Err: err}
	}
	return lease, nil
}

// release closes a tab the attempt opened. It runs on every exit path and
// outlives the request context.
func (c *Chain) release(l tabLease, logger *log.Logger) {
	if !l.owned {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.host.CloseTab(ctx, l.tab.ID); err != nil {
		logger.Warn("closing temporary tab", "tab", l.tab.ID, "err", err)
		return
	}
	logger.Debug("closed temporary tab", "tab", l.tab.ID)
}

func (c *Chain) submitBytes(ctx context.Context, t Target, data []byte, logger *log.Logger) (json.RawMessage, error) {
	res, err := c.analyzer.AnalyzeBytes(ctx, data, uploadFilename)
	if err != nil {
		logger.Error("analysis upload failed", "err", err)
		return nil, classifyAnalyzerErr(t, "uploading to analysis service", err)
	}
	return res, nil
}

func (c *Chain) delegate(ctx context.Context, t Target, logger *log.Logger) (json.RawMessage, error) {
	logger.Info("delegating fetch to analysis service")
	res, err := c.analyzer.AnalyzeURL(ctx, t.URL)
	if err != nil {
		logFailure(logger, "delegated", err)
		return nil, classifyAnalyzerErr(t, "delegated analysis", err)
	}
	return res, nil
}

func (c *Chain) attemptLogger(t Target) *log.Logger {
	return c.logger.With("attempt", uuid.NewString(), "url", t.URL)
}

func classifyAnalyzerErr(t Target, what string, err error) *Error {
	kind := KindNetwork
	var se *analyzer.StatusError
	if errors.As(err, &se) {
		kind = KindUpstream
	}
	return &Error{Kind: kind, URL: t.URL, Err: fmt.Errorf("%s: %w", what, err)}
}

// exhausted reports the final failure, keeping its kind, with the earlier
// strategy failures appended to the message.
func exhausted(t Target, final error, earlier ...error) *Error {
	kind, cause := KindNetwork, final
	var ae *Error
	if errors.As(final, &ae) {
		kind, cause = ae.Kind, ae.Err
	}
	msg := ""
	for _, e := range earlier {
		if e == nil {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += e.Error()
	}
	return &Error{Kind: kind, URL: t.URL, Err: fmt.Errorf("%w (earlier: %s)", cause, msg)}
}

func logFailure(logger *log.Logger, strategy string, err error) {
	logger.Warn("strategy failed", "strategy", strategy, "class", KindOf(err), "err", err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
