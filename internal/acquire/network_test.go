// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carlmjohnson/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCookies []*http.Cookie

func (s staticCookies) Cookies(context.Context, string) ([]*http.Cookie, error) {
	return s, nil
}

func TestFetchNetwork_SizeFloor(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"just below floor", 1999, true},
		{"at floor", 2000, false},
		{"well above", 50000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := pdfServer(t, tt.size, "application/pdf")
			c := newChain(&fakeAnalyzer{}, WithHTTPClient(ts.Client()))

			data, err := c.FetchNetwork(context.Background(), NewTarget(ts.URL+"/a.pdf"))
			if tt.wantErr {
				assert.Equal(t, KindContentMismatch, KindOf(err))
				assert.Nil(t, data)
				return
			}
			require.NoError(t, err)
			assert.Len(t, data, tt.size)
		})
	}
}

func TestFetchNetwork_ContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantKind    FailureKind
	}{
		{"application/pdf", ""},
		{"application/octet-stream", ""},
		{"application/x-pdf; qs=0.001", ""},
		{"text/html; charset=utf-8", KindContentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			ts, _ := pdfServer(t, 4000, tt.contentType)
			c := newChain(&fakeAnalyzer{}, WithHTTPClient(ts.Client()))

			_, err := c.FetchNetwork(context.Background(), NewTarget(ts.URL+"/a.pdf"))
			assert.Equal(t, tt.wantKind, KindOf(err))
		})
	}
}

func TestFetchNetwork_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(pdf(5000))
	}))
	defer ts.Close()

	c := newChain(&fakeAnalyzer{}, WithHTTPClient(ts.Client()))
	_, err := c.FetchNetwork(context.Background(), NewTarget(ts.URL+"/a.pdf"))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.ErrorContains(t, err, "HTTP 401")
}

func TestFetchNetwork_SendsCredentials(t *testing.T) {
	var gotCookie, gotReferer string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil {
			gotCookie = ck.Value
		}
		gotReferer = r.Referer()
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf(3000))
	}))
	defer ts.Close()

	target := ts.URL + "/get?id=1"
	c := newChain(&fakeAnalyzer{},
		WithHTTPClient(ts.Client()),
		WithCookies(staticCookies{{Name: "session", Value: "s3cr3t"}}),
		WithAssociations(fakeAssoc{referrers: map[string]string{target: "https://publisher.example.org/article"}}),
	)

	_, err := c.FetchNetwork(context.Background(), NewTarget(target))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", gotCookie)
	assert.Equal(t, "https://publisher.example.org/article", gotReferer)
}

func TestFetchNetwork_RetriesWithoutCredentials(t *testing.T) {
	ts, _ := pdfServer(t, 3000, "application/pdf")

	var attempts []http.Header
	base := ts.Client().Transport
	client := &http.Client{Transport: requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts = append(attempts, req.Header.Clone())
		if req.Header.Get("Cookie") != "" {
			return nil, errors.New("blocked by CORS policy")
		}
		return base.RoundTrip(req)
	})}

	target := ts.URL + "/a.pdf"
	c := newChain(&fakeAnalyzer{},
		WithHTTPClient(client),
		WithCookies(staticCookies{{Name: "session", Value: "s3cr3t"}}),
		WithAssociations(fakeAssoc{referrers: map[string]string{target: "https://publisher.example.org/"}}),
	)

	data, err := c.FetchNetwork(context.Background(), NewTarget(target))
	require.NoError(t, err)
	assert.Len(t, data, 3000)
	require.Len(t, attempts, 2)
	assert.NotEmpty(t, attempts[0].Get("Referer"))
	assert.Empty(t, attempts[1].Get("Cookie"))
	assert.Empty(t, attempts[1].Get("Referer"))
}

func TestFetchNetwork_NoRetryAfterResponse(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newChain(&fakeAnalyzer{}, WithHTTPClient(ts.Client()))
	_, err := c.FetchNetwork(context.Background(), NewTarget(ts.URL+"/a.pdf"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetchNetwork_TransportFailure(t *testing.T) {
	client := &http.Client{Transport: requests.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})}
	c := newChain(&fakeAnalyzer{}, WithHTTPClient(client))

	_, err := c.FetchNetwork(context.Background(), NewTarget("https://unreachable.example.org/a.pdf"))
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestFetchNetwork_BlobRejected(t *testing.T) {
	c := newChain(&fakeAnalyzer{})
	_, err := c.FetchNetwork(context.Background(), NewTarget("blob:https://x.org/1"))
	assert.Equal(t, KindNotFound, KindOf(err))
}
