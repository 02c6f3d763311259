// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a strategy or the whole chain failed.
type FailureKind string

const (
	// KindNotFound: no viable acquisition target exists. Terminal.
	KindNotFound FailureKind = "not-found"
	// KindTabContext: a tab was found but extraction inside it failed.
	KindTabContext FailureKind = "tab-context"
	// KindNetwork: the request failed or returned a non-success status.
	KindNetwork FailureKind = "network"
	// KindContentMismatch: bytes were fetched but do not look like a PDF.
	KindContentMismatch FailureKind = "content-mismatch"
	// KindUpstream: the analysis service returned an error.
	KindUpstream FailureKind = "upstream"
)

// Error is a classified acquisition failure.
type Error struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Remedy returns a short hint the UI can show for this kind of failure.
func (e *Error) Remedy() string {
	switch e.Kind {
	case KindNotFound:
		return "the PDF tab may have been closed; open the PDF again or download it and drop the file manually"
	case KindTabContext, KindNetwork, KindContentMismatch:
		return "the PDF could not be retrieved automatically; download it and drop the file manually"
	case KindUpstream:
		return "the analysis service reported an error; try again later"
	default:
		return ""
	}
}

// KindOf returns the FailureKind of err, or "" when err is not an *Error.
func KindOf(err error) FailureKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func fail(kind FailureKind, url string, format string, args ...any) *Error {
	return &Error{Kind: kind, URL: url, Err: fmt.Errorf(format, args...)}
}
