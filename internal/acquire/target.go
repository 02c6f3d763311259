// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"strings"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// Target describes one acquisition attempt. It is derived from the input
// URL and never changes afterwards.
type Target struct {
	URL    string
	IsBlob bool
}

// NewTarget classifies rawURL.
func NewTarget(rawURL string) Target {
	return Target{URL: rawURL, IsBlob: strings.HasPrefix(rawURL, "blob:")}
}

// World returns the injection world for the target: the page's main world
// for blob: URLs so the in-page viewer is visible, otherwise isolated.
func (t Target) World() types.World {
	if t.IsBlob {
		return types.WorldMain
	}
	return types.WorldIsolated
}

// Filename returns the file name to announce for the target.
func (t Target) Filename() string {
	if t.IsBlob {
		return "document.pdf"
	}
	u, err := url.Parse(t.URL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "downloaded.pdf"
	}
	return u.Path[strings.LastIndex(u.Path, "/")+1:]
}

// Origin returns scheme://host[:port] of rawURL. For blob: URLs the origin
// of the embedded URL is returned. It returns "" for URLs without a host.
func Origin(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "blob:")
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// blobPrefix returns the first three "/"-separated segments of a blob URL,
// e.g. "blob:https://host".
func blobPrefix(rawURL string) string {
	parts := strings.SplitN(rawURL, "/", 4)
	if len(parts) < 3 {
		return rawURL
	}
	return strings.Join(parts[:3], "/")
}
