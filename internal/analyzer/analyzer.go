// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyzer submits PDFs to the remote analysis service, which
// extracts page counts and keywords. The service accepts a multipart upload
// of either a "file" part or a "pdf_url" field and answers with JSON such as
// {"status": "...", "page_count": 12, "keywords": [...]}.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/charmbracelet/log"
	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/curation-engine/internal/httputil"
	"github.com/pdiddy/curation-engine/internal/locator"
	"github.com/pdiddy/curation-engine/pkg/types"
)

// DefaultEndpoint is the hosted analysis service.
const DefaultEndpoint = "https://andrehoffmann80-pdf-analyzer.hf.space/analyze"

// dataURLFilename is the file name used for uploads of in-page data URLs.
const dataURLFilename = "upload.pdf"

// maxResponseBytes bounds the service's JSON answer.
const maxResponseBytes = 16 << 20

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service error: %s", e.Status)
}

// Client talks to the analysis service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithEndpoint overrides the configured endpoint.
func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a Client from cfg.
func New(cfg types.AnalyzerConfig, opts ...Option) *Client {
	c := &Client{
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithPrefix("analyzer")
	return c
}

// AnalyzeBytes uploads data as the "file" part.
func (c *Client) AnalyzeBytes(ctx context.Context, data []byte, filename string) (json.RawMessage, error) {
	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		h.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("uploading pdf", "bytes", len(data), "filename", filename)
	return c.post(ctx, body, contentType)
}

// AnalyzeURL asks the service to fetch pdfURL itself.
func (c *Client) AnalyzeURL(ctx context.Context, pdfURL string) (json.RawMessage, error) {
	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		return w.WriteField("pdf_url", pdfURL)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("delegating pdf url", "url", pdfURL)
	return c.post(ctx, body, contentType)
}

// AnalyzeDataURL decodes a base64 data URL and uploads its bytes.
func (c *Client) AnalyzeDataURL(ctx context.Context, dataURL string) (json.RawMessage, error) {
	data, _, err := locator.DecodeDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("decoding file data: %w", err)
	}
	return c.AnalyzeBytes(ctx, data, dataURLFilename)
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries, c.logger)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading analysis response: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("analysis service returned invalid JSON")
	}
	return json.RawMessage(raw), nil
}

// Decode parses a raw service answer into its typed view.
func Decode(raw []byte) (types.AnalysisResult, error) {
	var res types.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("parsing analysis response: %w", err)
	}
	return res, nil
}

func multipartBody(fill func(*multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", fmt.Errorf("building multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("building multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
