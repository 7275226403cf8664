package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghdash/internal/cache"
	"ghdash/internal/dashboard"
	"ghdash/internal/digest"
	"ghdash/internal/proxy"
	"ghdash/internal/upstream"
)

type fakeGitHub struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeGitHub) RequestURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.URL.RequestURI())
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/users/octocat":
		_, _ = w.Write([]byte(`{"login":"octocat"}`))
	case "/users/octocat/repos":
		_, _ = w.Write([]byte(`[{"name":"repo1"}]`))
	case "/users/octocat/events":
		_, _ = w.Write([]byte(`[{"type":"PushEvent","repo":{"name":"octocat/repo1"},"payload":{"commits":[{}]}}]`))
	case "/users":
		_, _ = w.Write([]byte(`[{"login":"a"},{"login":"b"}]`))
	case "/repos/octocat/repo1/commits":
		_, _ = w.Write([]byte(`[{"sha":"abc"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}
}

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) {
	return s.text, s.err
}

type testEnv struct {
	server *httptest.Server
	github *fakeGitHub
}

func newTestEnv(t *testing.T, gen digest.Generator) *testEnv {
	t.Helper()

	gh := &fakeGitHub{}
	upstreamSrv := httptest.NewServer(gh)
	t.Cleanup(upstreamSrv.Close)

	exec, err := upstream.NewExecutor(upstream.Config{BaseURL: upstreamSrv.URL}, http.DefaultTransport, nil)
	require.NoError(t, err)

	store := cache.NewMemory(4)
	fetcher := proxy.NewFetcher(store, exec, time.Minute, nil)
	h := NewHandlers(
		fetcher,
		dashboard.NewAggregator(fetcher, nil),
		digest.NewService(fetcher, gen, nil),
		nil,
	)

	router, err := NewRouter(h, RouterConfig{
		CORSOrigins: []string{"http://localhost:5173"},
		CacheSize:   store.Len,
	}, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, github: gh}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestPassThroughRoutes(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
		wantURI    string
	}{
		{"user", "/api/github/users/octocat", 200, `{"login":"octocat"}`, "/users/octocat"},
		{"repos", "/api/github/users/octocat/repos", 200, `[{"name":"repo1"}]`, "/users/octocat/repos"},
		{"unknown_user", "/api/github/users/ghost", 404, `{"message":"Not Found"}`, "/users/ghost"},
		{"users_paged", "/api/github/users?since=5&per_page=2", 200, `[{"login":"a"},{"login":"b"}]`, "/users?since=5&per_page=2"},
		{"users_capped", "/api/github/users?per_page=500", 200, `[{"login":"a"},{"login":"b"}]`, "/users?per_page=100"},
		{"commits", "/api/github/repos/octocat/repo1/commits?author=octocat", 200, `[{"sha":"abc"}]`, "/repos/octocat/repo1/commits?author=octocat"},
		{"commits_unfiltered", "/api/github/repos/octocat/repo1/commits", 200, `[{"sha":"abc"}]`, "/repos/octocat/repo1/commits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
			assert.Contains(t, env.github.RequestURIs(), tt.wantURI)
		})
	}
}

func TestListUsers_RejectsBadQuery(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	for _, path := range []string{
		"/api/github/users?since=abc",
		"/api/github/users?per_page=-1",
		"/api/github/users?since=1.5",
	} {
		resp, body := env.get(t, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, string(body), `"message"`)
	}
	assert.Empty(t, env.github.RequestURIs())
}

func TestPassThrough_CachedWithinTTL(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	env.get(t, "/api/github/users/ghost")
	env.get(t, "/api/github/users/ghost")

	assert.Equal(t, []string{"/users/ghost"}, env.github.RequestURIs())
}

func TestDashboard_Octocat(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	resp, body := env.get(t, "/api/github/dashboard/octocat")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		User struct {
			Status int `json:"status"`
			Data   struct {
				Login string `json:"login"`
			} `json:"data"`
		} `json:"user"`
		Repos struct {
			Data []struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"repos"`
		Events struct {
			Data []struct {
				Type string `json:"type"`
			} `json:"data"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))

	assert.Equal(t, 200, doc.User.Status)
	assert.Equal(t, "octocat", doc.User.Data.Login)
	require.Len(t, doc.Repos.Data, 1)
	assert.Equal(t, "repo1", doc.Repos.Data[0].Name)
	require.Len(t, doc.Events.Data, 1)
	assert.Equal(t, "PushEvent", doc.Events.Data[0].Type)
}

func TestDashboard_UnknownUserStillOK(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	resp, body := env.get(t, "/api/github/dashboard/ghost")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"user":   {"status":404,"data":{"message":"Not Found"}},
		"repos":  {"status":404,"data":{"message":"Not Found"}},
		"events": {"status":404,"data":{"message":"Not Found"}}
	}`, string(body))
}

type failingDashboard struct{}

func (failingDashboard) Build(context.Context, string) (*dashboard.Document, error) {
	return nil, dashboard.ErrAggregation
}

func TestDashboard_FailureHidesDetail(t *testing.T) {
	h := NewHandlers(nil, failingDashboard{}, nil, nil)
	router, err := NewRouter(h, RouterConfig{}, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/github/dashboard/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Failed to aggregate dashboard data"}`, rr.Body.String())
}

func TestDigest(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		gen        stubGenerator
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{
			name:       "invalid_period_no_upstream_call",
			path:       "/api/github/digest/octocat?period=monthly",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"Period must be 'daily' or 'weekly'"}`,
			wantCalls:  0,
		},
		{
			name:       "unknown_user_forwards_status",
			path:       "/api/github/digest/ghost?period=weekly",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"Failed to fetch GitHub events"}`,
			wantCalls:  1,
		},
		{
			name:       "generator_failure",
			path:       "/api/github/digest/octocat",
			gen:        stubGenerator{err: errors.New("groq down")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"Failed to generate digest"}`,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.gen)
			resp, body := env.get(t, tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
			assert.Len(t, env.github.RequestURIs(), tt.wantCalls)
		})
	}
}

func TestDigest_Success(t *testing.T) {
	env := newTestEnv(t, stubGenerator{text: "🚀 one push"})

	resp, body := env.get(t, "/api/github/digest/octocat?period=daily")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "octocat", got["username"])
	assert.Equal(t, "daily", got["period"])
	assert.Equal(t, "🚀 one push", got["digest"])
	assert.EqualValues(t, 1, got["eventCount"])
	_, err := time.Parse(time.RFC3339Nano, got["generatedAt"].(string))
	assert.NoError(t, err)

	assert.Equal(t, []string{"/users/octocat/events?per_page=30"}, env.github.RequestURIs())
}

func TestCORSAndAmbientRoutes(t *testing.T) {
	env := newTestEnv(t, stubGenerator{})

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/github/users/octocat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","cacheEntries":1}`, string(body))

	resp, _ = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.get(t, "/api/github/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Not Found"}`, string(body))
}
