package webapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adshield/config"
	"adshield/dom"
	"adshield/lifecycle"
	"adshield/ruleset"
)

type countingDoer struct {
	calls atomic.Int32
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("payload")),
	}, nil
}

type fixture struct {
	handler    http.Handler
	ctrl       *lifecycle.Controller
	host       *Host
	doer       *countingDoer
	configPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(`<html><body><div id="main">hi</div></body></html>`))
	require.NoError(t, err)

	doer := &countingDoer{}
	host := NewHost(doer, doc)
	ctrl := lifecycle.New(ruleset.New(ruleset.DefaultLists()), host, doc, nil)

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	srv := NewServer(cfg, path, ctrl, host)
	return &fixture{handler: srv.Handler(), ctrl: ctrl, host: host, doer: doer, configPath: path}
}

func (f *fixture) do(t *testing.T, method, target, contentType, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func data(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "response data is an object")
	return m
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "disabled", data(t, resp)["state"])
}

func TestToggleWritesConfig(t *testing.T) {
	f := newFixture(t)

	_, resp := f.do(t, http.MethodPost, "/api/adblock/toggle", "application/json", `{"enabled": true}`)
	require.True(t, resp.Success)
	assert.Equal(t, "enabled", data(t, resp)["state"])
	assert.Equal(t, lifecycle.Enabled, f.ctrl.State())
	assert.Equal(t, 4, f.host.HookCount())

	cfg, err := config.LoadConfig(f.configPath)
	require.NoError(t, err)
	assert.True(t, cfg.AdBlock.Enable)

	_, resp = f.do(t, http.MethodPost, "/api/adblock/toggle", "", "")
	assert.Equal(t, "disabled", data(t, resp)["state"])
	assert.Equal(t, 0, f.host.HookCount())

	cfg, err = config.LoadConfig(f.configPath)
	require.NoError(t, err)
	assert.False(t, cfg.AdBlock.Enable)

	rec, _ := f.do(t, http.MethodGet, "/api/adblock/toggle", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFetchThroughHost(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()

	rec, resp := f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://example-ads.com/test"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "blocked")

	rec, _ = f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://doubleclick.net/x", "style": "xhr"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int32(0), f.doer.calls.Load())
	assert.Equal(t, uint64(2), f.ctrl.Stats().RequestsBlocked)

	rec, resp = f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://example.com/", "style": "xhr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(http.StatusOK), data(t, resp)["status"])
	assert.Equal(t, float64(len("payload")), data(t, resp)["bytes"])

	rec, _ = f.do(t, http.MethodPost, "/api/fetch", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageInsertionIsFiltered(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()

	body := `{"html": "<div class=\"ad-banner\">buy</div><p id=\"keep\">ok</p><iframe src=\"https://pubads.g.doubleclick.net/x\"></iframe>"}`
	rec, resp := f.do(t, http.MethodPost, "/api/page", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := data(t, resp)
	html := d["html"].(string)
	assert.NotContains(t, html, "ad-banner")
	assert.NotContains(t, html, "pubads")
	assert.Contains(t, html, `id="keep"`)
	assert.Equal(t, float64(2), d["blocked"])

	rec, _ = f.do(t, http.MethodGet, "/api/page", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="keep"`)
}

func TestProbe(t *testing.T) {
	f := newFixture(t)
	_, resp := f.do(t, http.MethodGet, "/api/adblock/test?url=https://ad.doubleclick.net/x", "", "")
	d := data(t, resp)
	assert.Equal(t, true, d["url_blocked"])
	assert.Equal(t, true, d["request_blocked"])
	assert.Equal(t, true, d["element_blocked"])
	assert.Equal(t, probeClass, d["element_class"])

	_, resp = f.do(t, http.MethodPost, "/api/adblock/test", "application/json", `{"url": "https://example.com/", "class": "content"}`)
	d = data(t, resp)
	assert.Equal(t, false, d["url_blocked"])
	assert.Equal(t, false, d["element_blocked"])
	assert.Equal(t, uint64(0), f.ctrl.TotalBlocked(), "probing never counts")
}

func TestReloadWithExtraRules(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()

	rec, _ := f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://tracker.example/p"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := f.do(t, http.MethodPost, "/api/adblock/reload", "text/plain", "tracker.example\nbad entry\n")
	require.Equal(t, http.StatusOK, rec.Code)
	skipped := data(t, resp)["skipped"].([]interface{})
	assert.Len(t, skipped, 1)

	rec, _ = f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://tracker.example/p"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRulesUpdate(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()

	rec, _ := f.do(t, http.MethodPut, "/api/adblock/rules", "application/json", `{"domain_patterns": ["only.example"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := f.do(t, http.MethodGet, "/api/adblock/rules", "", "")
	assert.Equal(t, []interface{}{"only.example"}, data(t, resp)["domain_patterns"])

	cfg, err := config.LoadConfig(f.configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"only.example"}, cfg.Rules.DomainPatterns)

	rec, _ = f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://example-ads.com/test"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "old domain list replaced")
}

func TestEventsAndStatus(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()
	f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://example-ads.com/test"}`)

	_, resp := f.do(t, http.MethodGet, "/api/adblock/events", "", "")
	d := data(t, resp)
	events := d["events"].([]interface{})
	require.Len(t, events, 2)
	assert.Equal(t, float64(2), d["next"])

	_, resp = f.do(t, http.MethodGet, "/api/adblock/events?since=1", "", "")
	assert.Len(t, data(t, resp)["events"].([]interface{}), 1)

	_, resp = f.do(t, http.MethodGet, "/api/adblock/status", "", "")
	d = data(t, resp)
	assert.Equal(t, true, d["enabled"])
	assert.Equal(t, float64(1), d["total_blocked"])

	_, resp = f.do(t, http.MethodDelete, "/api/adblock/events", "", "")
	assert.Equal(t, float64(2), data(t, resp)["cleared"])
	assert.Empty(t, f.ctrl.Events())
	assert.Equal(t, uint64(1), f.ctrl.TotalBlocked(), "clearing the log keeps counters")
}

func TestStatsAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Enable()
	f.do(t, http.MethodPost, "/api/fetch", "application/json", `{"url": "https://example-ads.com/test"}`)

	rec, resp := f.do(t, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	blocked := d["blocked"].(map[string]interface{})
	assert.Equal(t, float64(1), blocked["requests_blocked"])
	assert.Contains(t, d, "system_stats")

	rec, _ = f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, rec.Body.String(), `adshield_blocked_total{category="request"} 1`)
}

func TestRulesRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/adblock/rules", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var before struct {
		Data config.RulesConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Len(t, before.Data.NetworkRules, len(ruleset.DefaultLists().NetworkRules))
	assert.Equal(t, ruleset.DefaultLists().FrameKeywords, before.Data.FrameKeywords)

	body, err := json.Marshal(before.Data)
	require.NoError(t, err)
	rec, _ = f.do(t, http.MethodPut, "/api/adblock/rules", "application/json", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/adblock/rules", "", "")
	var after struct {
		Data config.RulesConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, before.Data, after.Data)

	cfg, err := config.LoadConfig(f.configPath)
	require.NoError(t, err)
	assert.Equal(t, before.Data.NetworkRules, cfg.Rules.NetworkRules)
	assert.Equal(t, before.Data.FrameKeywords, cfg.Rules.FrameKeywords)
}
