// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"

	"github.com/carlmjohnson/requests"
	"golang.org/x/time/rate"
)

// RateLimitTransport wraps base so that every request waits on a shared
// token bucket allowing perSecond requests per second. A non-positive
// perSecond returns base unchanged. A nil base means http.DefaultTransport.
func RateLimitTransport(base http.RoundTripper, perSecond float64) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if perSecond <= 0 {
		return base
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
		return base.RoundTrip(req)
	})
}

// UserAgentTransport sets the User-Agent header on requests that lack one.
func UserAgentTransport(base http.RoundTripper, userAgent string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if userAgent == "" {
		return base
	}
	return requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("User-Agent") != "" {
			return base.RoundTrip(req)
		}
		r := req.Clone(req.Context())
		r.Header.Set("User-Agent", userAgent)
		return base.RoundTrip(r)
	})
}
