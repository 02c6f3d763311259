// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package locator extracts the PDF a browser frame is displaying.
//
// Run sequences a small set of in-frame primitives supplied by a Frame:
// reading decoded bytes from an in-page PDF viewer, and re-fetching the
// frame's own location with the page's credentials. The browser host
// implements Frame by evaluating the scripts in this package inside the tab;
// tests implement it directly.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults for Options fields left at zero.
const (
	DefaultMinSize       = 1000
	DefaultViewerTimeout = 5 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
)

var (
	// ErrTooSmall means the bytes found are below the plausible-PDF floor,
	// typically a login or redirect page.
	ErrTooSmall = errors.New("locator: document too small to be a PDF")

	// ErrNoDocument means neither the viewer nor the self-fetch produced bytes.
	ErrNoDocument = errors.New("locator: could not extract PDF from page")
)

// FetchResult is the outcome of a frame re-fetching its own location.
type FetchResult struct {
	Status      int
	ContentType string
	Body        []byte
}

// Frame is the execution context of one frame of a tab.
type Frame interface {
	// ViewerDetected reports whether an in-page PDF viewer application exists.
	ViewerDetected(ctx context.Context) (bool, error)

	// ViewerReady reports whether the viewer has a loaded document.
	ViewerReady(ctx context.Context) (bool, error)

	// ViewerData returns the viewer document's decoded raw bytes.
	ViewerData(ctx context.Context) ([]byte, error)

	// FetchSelf fetches the frame's current location with credentials
	// included and caching disabled.
	FetchSelf(ctx context.Context) (FetchResult, error)
}

// Source names the primitive that produced a result.
type Source string

const (
	SourceViewer Source = "viewer"
	SourceFetch  Source = "fetch"
)

// Options tune a Run.
type Options struct {
	MinSize       int
	ViewerTimeout time.Duration
	PollInterval  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinSize <= 0 {
		o.MinSize = DefaultMinSize
	}
	if o.ViewerTimeout <= 0 {
		o.ViewerTimeout = DefaultViewerTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Result is the outcome of one Run. Exactly one of DataURL and Err is set.
type Result struct {
	DataURL     string
	Source      Source
	Size        int
	ContentType string
	Err         error
}

// OK reports whether the result carries a document.
func (r Result) OK() bool {
	return r.Err == nil && r.DataURL != ""
}

// Run extracts the frame's PDF. The viewer is tried first when isBlob is set
// or a viewer is detected; otherwise, or when the viewer yields nothing, the
// frame's location is re-fetched. A response whose content type is neither
// PDF nor octet-stream is still accepted provisionally, subject to the size
// floor. Run never panics; failures are reported in Result.Err.
func Run(ctx context.Context, f Frame, isBlob bool, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("locator: frame panicked: %v", r)}
		}
	}()
	opts = opts.withDefaults()

	var (
		data        []byte
		source      Source
		contentType string
	)

	if useViewer(ctx, f, isBlob) {
		if b, ok := readViewer(ctx, f, opts); ok {
			data, source, contentType = b, SourceViewer, "application/pdf"
		}
	}

	if data == nil {
		fr, err := f.FetchSelf(ctx)
		if err != nil {
			return Result{Err: fmt.Errorf("%w: fetching page location: %v", ErrNoDocument, err)}
		}
		if fr.Status < 200 || fr.Status > 299 {
			return Result{Err: fmt.Errorf("%w: page location returned HTTP %d", ErrNoDocument, fr.Status)}
		}
		data, source, contentType = fr.Body, SourceFetch, fr.ContentType
	}

	if len(data) < opts.MinSize {
		return Result{
			Source:      source,
			Size:        len(data),
			ContentType: contentType,
			Err:         fmt.Errorf("%w: %d bytes from %s", ErrTooSmall, len(data), source),
		}
	}

	return Result{
		DataURL:     EncodeDataURL("application/pdf", data),
		Source:      source,
		Size:        len(data),
		ContentType: contentType,
	}
}

// LooksLikePDFType reports whether a content type names a PDF or generic
// binary stream.
func LooksLikePDFType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "pdf") || strings.Contains(ct, "octet-stream")
}

func useViewer(ctx context.Context, f Frame, isBlob bool) bool {
	if isBlob {
		return true
	}
	detected, err := f.ViewerDetected(ctx)
	return err == nil && detected
}

func readViewer(ctx context.Context, f Frame, opts Options) ([]byte, bool) {
	readiness, err := WaitForViewer(ctx, f, opts.ViewerTimeout, opts.PollInterval)
	if err != nil || readiness != Ready {
		return nil, false
	}
	data, err := f.ViewerData(ctx)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
