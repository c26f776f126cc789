package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pincheck/pkg/cache"
	"github.com/matzehuels/pincheck/pkg/check"
	"github.com/matzehuels/pincheck/pkg/observability"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

func newTestServer(t *testing.T, c cache.Cache) *httptest.Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Env = marker.DefaultEnv().With(map[string]string{"sys_platform": "linux"})
	s := New(cfg, c, nil, log.New(io.Discard))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, query string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/v1/check"+query, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeReport(t *testing.T, data []byte) check.Report {
	t.Helper()
	var r check.Report
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	var v map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Contains(t, v, "version")
	assert.Contains(t, v, "commit")
}

func TestCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := post(t, ts, "", CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "six==1.9.0\ngnureadline==6.6.3\n"},
		Sources:      []Document{{Name: "requirements.in", Content: "-c constraints.txt\nsix\n"}},
		Documents:    []Document{{Name: "constraints.txt", Content: "six>=1.10.0\n"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	report := decodeReport(t, body)
	assert.Equal(t, "requirements.txt", report.Target)
	assert.Equal(t, []string{"requirements.in"}, report.Sources)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Warnings)
	assert.Equal(t, 1, report.ExitStatus)
	require.Len(t, report.Findings, 2)
	assert.Equal(t,
		"incompatible requirements found, six==1.9.0 violates constraint six>=1.10.0 from constraints.txt (line 1)",
		report.Findings[0].Message)
	assert.Equal(t,
		"gnureadline==6.6.3 is present but not required by any input requirements",
		report.Findings[1].Message)
}

func TestCheckManifestSource(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := post(t, ts, "?format=text", CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "requests==2.31.0\npytest==8.0.0\n"},
		Sources: []Document{{Name: "pyproject.toml", Content: `
[project]
dependencies = ["requests>=2.31"]

[project.optional-dependencies]
test = ["pytest>=7"]
`}},
		Extras: []string{"test"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "pincheck found 0 errors and 0 warnings in requirements.txt\n", string(body))
}

func TestCheckEnvOverride(t *testing.T) {
	ts := newTestServer(t, nil)

	req := CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "six==1.10.0\n"},
		Sources:      []Document{{Name: "requirements.in", Content: "six\npywin32; sys_platform == \"win32\"\n"}},
	}
	_, body := post(t, ts, "", req)
	assert.Equal(t, 0, decodeReport(t, body).Errors)

	req.Env = map[string]string{"sys_platform": "win32"}
	_, body = post(t, ts, "", req)
	report := decodeReport(t, body)
	require.Equal(t, 1, report.Errors)
	assert.Equal(t, check.KindMissing, report.Findings[0].Kind)
}

func TestCheckYAML(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := post(t, ts, "?format=yaml", CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "six\n"},
		Sources:      []Document{{Name: "requirements.in", Content: "six\n"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "message: six is unpinned")
}

func TestCheckErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		query  string
		body   any
		status int
		code   string
		msg    string
	}{
		{
			name:   "malformed json",
			body:   "not an object",
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "unknown format",
			query:  "?format=xml",
			body:   CheckRequest{},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name: "no sources",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt", Content: "six==1.0\n"},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
			msg:    "at least one source",
		},
		{
			name: "path traversal",
			body: CheckRequest{
				Requirements: Document{Name: "../requirements.txt"},
				Sources:      []Document{{Name: "requirements.in"}},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_PATH",
		},
		{
			name: "source as target",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.in"},
				Sources:      []Document{{Name: "base.in"}},
			},
			status: http.StatusBadRequest,
			code:   "USAGE",
			msg:    "req_file has the .in extension",
		},
		{
			name: "bad requirement",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt", Content: "six=1.9.0\n"},
				Sources:      []Document{{Name: "requirements.in", Content: "six\n"}},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUIREMENT",
			msg:    "requirements.txt (line 1)",
		},
		{
			name: "include outside request",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt", Content: "six==1.9.0\n"},
				Sources:      []Document{{Name: "requirements.in", Content: "-r /etc/passwd\n"}},
			},
			status: http.StatusBadRequest,
			code:   "FILE_NOT_FOUND",
		},
		{
			name: "setup.py",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt"},
				Sources:      []Document{{Name: "setup.py"}},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
			msg:    "pyproject.toml",
		},
		{
			name: "unknown marker variable",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt"},
				Sources:      []Document{{Name: "requirements.in"}},
				Env:          map[string]string{"python_flavour": "spicy"},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
			msg:    "python_flavour",
		},
		{
			name: "malformed pin",
			body: CheckRequest{
				Requirements: Document{Name: "requirements.txt", Content: "six==1.9.0,==1.10.0\n"},
				Sources:      []Document{{Name: "requirements.in", Content: "six>=1\n"}},
			},
			status: http.StatusBadRequest,
			code:   "MALFORMED_PIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, ts, tt.query, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))

			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tt.code, e.Error.Code)
			assert.NotEmpty(t, e.Error.RequestID)
			if tt.msg != "" {
				assert.Contains(t, e.Error.Message, tt.msg)
			}
		})
	}
}

func TestCheckBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	ts := httptest.NewServer(New(cfg, nil, nil, log.New(io.Discard)).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/check", "application/json", strings.NewReader(strings.Repeat("x", 64)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

type countingCacheHooks struct {
	observability.NoopCacheHooks
	mu                sync.Mutex
	hits, misses, set int
}

func (h *countingCacheHooks) OnCacheHit(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits++
}

func (h *countingCacheHooks) OnCacheMiss(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.misses++
}

func (h *countingCacheHooks) OnCacheSet(context.Context, string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.set++
}

func TestCheckCached(t *testing.T) {
	hooks := &countingCacheHooks{}
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	ts := newTestServer(t, c)

	req := CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "six==1.10.0\n"},
		Sources:      []Document{{Name: "requirements.in", Content: "six\n"}},
	}
	_, first := post(t, ts, "", req)
	_, second := post(t, ts, "", req)

	assert.Equal(t, first, second, "second response should be served from cache")
	assert.Equal(t, 1, hooks.hits)
	assert.Equal(t, 1, hooks.misses)
	assert.Equal(t, 1, hooks.set)

	_, yamlBody := post(t, ts, "?format=yaml", req)
	assert.NotEqual(t, first, yamlBody)
	assert.Equal(t, 2, hooks.misses)
}

func TestCheckCacheKeyedByEnv(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	serve := func(python string) *httptest.Server {
		cfg := DefaultConfig()
		cfg.Env = marker.DefaultEnv().With(map[string]string{
			"sys_platform":   "linux",
			"python_version": python,
		})
		ts := httptest.NewServer(New(cfg, c, nil, log.New(io.Discard)).Handler())
		t.Cleanup(ts.Close)
		return ts
	}

	req := CheckRequest{
		Requirements: Document{Name: "requirements.txt", Content: "six==1.10.0\n"},
		Sources:      []Document{{Name: "requirements.in", Content: "six\ntomli; python_version < \"3.11\"\n"}},
	}

	_, body := post(t, serve("3.12"), "", req)
	assert.Equal(t, 0, decodeReport(t, body).Errors)

	_, body = post(t, serve("3.8"), "", req)
	report := decodeReport(t, body)
	require.Equal(t, 1, report.Errors, "report must not come from the 3.12 cache entry")
	assert.Contains(t, report.Findings[0].Message, "missing requirement tomli")
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu       sync.Mutex
	requests []string
	statuses []int
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, method, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, method+" "+path)
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func TestHTTPHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	assert.Equal(t, []string{"GET /healthz", "GET /nope"}, hooks.requests)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, hooks.statuses)
}
