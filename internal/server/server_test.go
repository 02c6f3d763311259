// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/curation-engine/internal/orchestrator"
	"github.com/pdiddy/curation-engine/pkg/types"
)

type echoDispatcher struct{ got orchestrator.Request }

func (d *echoDispatcher) Dispatch(_ context.Context, req orchestrator.Request) orchestrator.Response {
	d.got = req
	if req.Action == "fail" {
		return orchestrator.Response{Error: "nope"}
	}
	return orchestrator.Response{Success: true, Data: map[string]string{"doi": req.DOI}}
}

func newTestServer(t *testing.T, cfg types.ServerConfig) (*httptest.Server, *echoDispatcher) {
	t.Helper()
	d := &echoDispatcher{}
	ts := httptest.NewServer(New(cfg, d, log.New(io.Discard)).Handler())
	t.Cleanup(ts.Close)
	return ts, d
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestRPC(t *testing.T) {
	ts, d := newTestServer(t, types.ServerConfig{})

	res, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(`{"action":"fetchData","doi":"10.1000/demo"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	body := decode(t, res.Body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"doi": "10.1000/demo"}, body["data"])
	assert.Equal(t, "fetchData", d.got.Action)
}

type targetTabs map[string]int

func (m targetTabs) TabIDForTarget(_ context.Context, target string) (int, error) {
	if id, ok := m[target]; ok {
		return id, nil
	}
	return 0, errors.New("tab is gone")
}

type lastTab struct{ id int }

func (l *lastTab) RegisterSessionTab(id int) { l.id = id }

func TestRPC_RegisterDoraTabTargetID(t *testing.T) {
	const target = "8F3A2C1D9E0B4F6A7C5D3E2B1A0F9E8D"
	ts, d := newTestServer(t, types.ServerConfig{})

	res, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(`{"action":"registerDoraTab","tabId":"`+target+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, target, d.got.TabID)

	session := &lastTab{}
	o := orchestrator.New(nil, nil, nil,
		orchestrator.WithSession(session),
		orchestrator.WithTabResolver(targetTabs{target: 3}),
		orchestrator.WithLogger(log.New(io.Discard)))
	live := httptest.NewServer(New(types.ServerConfig{}, o, log.New(io.Discard)).Handler())
	defer live.Close()

	res, err = http.Post(live.URL+"/rpc", "application/json", strings.NewReader(`{"action":"registerDoraTab","tabId":"`+target+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body := decode(t, res.Body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"tabId": float64(3), "targetId": target}, body["data"])
	assert.Equal(t, 3, session.id)

	res, err = http.Post(live.URL+"/rpc", "application/json", strings.NewReader(`{"action":"registerDoraTab","tabId":"0000000000000000000000000000DEAD"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, false, decode(t, res.Body)["success"])
	assert.Equal(t, 3, session.id)
}

func TestRPC_FailureIsStill200(t *testing.T) {
	ts, _ := newTestServer(t, types.ServerConfig{})

	res, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(`{"action":"fail"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body := decode(t, res.Body)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "nope", body["error"])
	_, hasData := body["data"]
	assert.False(t, hasData)
}

func TestRPC_BadBody(t *testing.T) {
	ts, _ := newTestServer(t, types.ServerConfig{})

	res, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, decode(t, res.Body)["error"], "invalid request")
}

func TestRPC_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, types.ServerConfig{})
	res, err := http.Get(ts.URL + "/rpc")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, types.ServerConfig{})
	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", decode(t, res.Body)["status"])
}

func TestCORS(t *testing.T) {
	ts, _ := newTestServer(t, types.ServerConfig{AllowedOrigins: []string{"https://dora.example"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/rpc", nil)
	req.Header.Set("Origin", "https://dora.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "https://dora.example", res.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/rpc", strings.NewReader(`{"action":"x"}`))
	req.Header.Set("Origin", "https://evil.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(types.ServerConfig{Addr: "127.0.0.1:0"}, &echoDispatcher{}, log.New(io.Discard))
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
