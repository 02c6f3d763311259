// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/carlmjohnson/requests"

	"github.com/pdiddy/curation-engine/internal/locator"
)

// CookieSource returns the browser's cookies for a URL.
type CookieSource interface {
	Cookies(ctx context.Context, url string) ([]*http.Cookie, error)
}

// maxPDFBytes bounds a direct download.
const maxPDFBytes = 200 << 20

// errTransport marks a request that never produced a response.
var errTransport = errors.New("transport error")

// FetchNetwork downloads target directly. The first attempt carries the
// browser's cookies for the URL and the recorded referrer; if it fails at
// the transport level it is retried once with neither. A non-2xx status, a
// content type that is present but neither PDF nor octet-stream, or a body
// below MinNetworkPDFSize fails the strategy.
func (c *Chain) FetchNetwork(ctx context.Context, target Target) ([]byte, error) {
	if target.IsBlob {
		return nil, fail(KindNotFound, target.URL, "blob URLs cannot be fetched over the network")
	}

	data, err := c.fetchOnce(ctx, target, true)
	if errors.Is(err, errTransport) {
		c.logger.Debug("credentialed fetch failed, retrying without credentials", "url", target.URL, "err", err)
		data, err = c.fetchOnce(ctx, target, false)
	}
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, &Error{Kind: KindNetwork, URL: target.URL, Err: err}
	}
	return data, nil
}

func (c *Chain) fetchOnce(ctx context.Context, target Target, credentialed bool) ([]byte, error) {
	var (
		data    []byte
		reached bool
	)

	rb := requests.URL(target.URL).
		Client(c.client).
		Accept("application/pdf,application/octet-stream;q=0.9,*/*;q=0.8").
		AddValidator(func(*http.Response) error { return nil }).
		Handle(func(res *http.Response) error {
			reached = true
			if res.StatusCode < 200 || res.StatusCode > 299 {
				return fail(KindNetwork, target.URL, "HTTP %d from %s", res.StatusCode, target.URL)
			}
			ct := res.Header.Get("Content-Type")
			if ct != "" && !locator.LooksLikePDFType(ct) {
				return fail(KindContentMismatch, target.URL, "unexpected content type %q", ct)
			}
			b, err := io.ReadAll(io.LimitReader(res.Body, maxPDFBytes))
			if err != nil {
				return fail(KindNetwork, target.URL, "reading body: %v", err)
			}
			if len(b) < c.cfg.MinNetworkPDFSize {
				return fail(KindContentMismatch, target.URL, "body too small (%d bytes)", len(b))
			}
			data = b
			return nil
		})

	if c.cfg.UserAgent != "" {
		rb.UserAgent(c.cfg.UserAgent)
	}
	if credentialed {
		c.addCredentials(ctx, rb, target)
	}

	if err := rb.Fetch(ctx); err != nil {
		if !reached {
			return nil, fmt.Errorf("%w: %v", errTransport, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *Chain) addCredentials(ctx context.Context, rb *requests.Builder, target Target) {
	if c.cookies != nil {
		cookies, err := c.cookies.Cookies(ctx, target.URL)
		if err != nil {
			c.logger.Debug("reading browser cookies", "url", target.URL, "err", err)
		}
		for _, ck := range cookies {
			rb.Cookie(ck.Name, ck.Value)
		}
	}
	if c.assoc != nil {
		if ref, ok := c.assoc.ReferrerFor(target.URL); ok {
			rb.Header("Referer", ref)
		}
	}
}
