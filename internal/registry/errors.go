// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the registry clients.
var (
	// ErrMissingCredential means a lookup needs a locally configured key or
	// contact address that is not set. It is never retried.
	ErrMissingCredential = errors.New("credential not configured")

	// ErrInvalidCredential means the registry rejected the configured key.
	ErrInvalidCredential = errors.New("credential rejected by registry")

	// ErrNotFound means the registry has no record for the identifier.
	ErrNotFound = errors.New("not found in registry")

	// ErrInvalidResponse means the registry answered with an unexpected body.
	ErrInvalidResponse = errors.New("invalid response from registry")
)

// APIError is a non-2xx answer from a registry.
type APIError struct {
	Source     string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: HTTP %d", e.Source, e.StatusCode)
}

// Is maps status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrInvalidCredential:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// MandatoryError is returned when both mandatory lookups failed.
type MandatoryError struct {
	OA       error
	Citation error
}

func (e *MandatoryError) Error() string {
	return fmt.Sprintf("network error or invalid DOI: open-access lookup: %v; citation lookup: %v", e.OA, e.Citation)
}

func (e *MandatoryError) Unwrap() []error {
	return []error{e.OA, e.Citation}
}

// CredentialError names the missing setting.
type CredentialError struct {
	Source  string
	Setting string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s is not configured (run: curation-engine settings set %s <value>)", e.Source, e.Setting, e.Setting)
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredential }

// IsMissingCredential reports whether err is a missing-credential failure.
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidCredential reports whether the registry rejected the key.
func IsInvalidCredential(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}
