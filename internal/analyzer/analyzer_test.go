// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/curation-engine/internal/httputil"
	"github.com/pdiddy/curation-engine/internal/locator"
	"github.com/pdiddy/curation-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const analysisJSON = `{"status":"ok","page_count":12,"keywords":["perovskite","solar cells"]}`

func newTestClient(ts *httptest.Server) *Client {
	return New(types.AnalyzerConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "curation-engine/test"},
		Endpoint:   ts.URL,
		MaxRetries: 2,
	}, WithHTTPClient(ts.Client()), WithLogger(log.New(io.Discard)))
}

func TestAnalyzeBytes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "curation-engine/test", r.UserAgent())

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "downloaded.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.7 body", string(data))
		assert.Empty(t, r.FormValue("pdf_url"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(analysisJSON))
	}))
	defer ts.Close()

	raw, err := newTestClient(ts).AnalyzeBytes(context.Background(), []byte("%PDF-1.7 body"), "downloaded.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, analysisJSON, string(raw))
	assert.Equal(t, analysisJSON, string(raw), "response is passed through untouched")
}

func TestAnalyzeURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.org/a.pdf", r.FormValue("pdf_url"))
		_, _, err := r.FormFile("file")
		assert.ErrorIs(t, err, http.ErrMissingFile)
		w.Write([]byte(analysisJSON))
	}))
	defer ts.Close()

	raw, err := newTestClient(ts).AnalyzeURL(context.Background(), "https://example.org/a.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, analysisJSON, string(raw))

	envelope, err := json.Marshal(struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{true, raw})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":`+analysisJSON+`}`, string(envelope), "embeds verbatim in an RPC reply")
}

func TestAnalyzeDataURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "upload.pdf", hdr.Filename)
		assert.Equal(t, "hello pdf", string(data))
		w.Write([]byte(analysisJSON))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.AnalyzeDataURL(context.Background(), locator.EncodeDataURL("application/pdf", []byte("hello pdf")))
	require.NoError(t, err)

	_, err = c.AnalyzeDataURL(context.Background(), "not a data url")
	assert.ErrorIs(t, err, locator.ErrBadDataURL)
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).AnalyzeURL(context.Background(), "https://example.org/a.pdf")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, err.Error(), "502")
}

func TestRetriesOn429WithBody(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		f.Close()
		assert.Equal(t, "retry me", string(data))

		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(analysisJSON))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).AnalyzeBytes(context.Background(), []byte("retry me"), "downloaded.pdf")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).AnalyzeURL(context.Background(), "https://example.org/a.pdf")
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestDecode(t *testing.T) {
	res, err := Decode([]byte(analysisJSON))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, 12, res.PageCount)
	assert.Equal(t, []string{"perovskite", "solar cells"}, res.Keywords)

	_, err = Decode([]byte("nope"))
	assert.Error(t, err)
}
