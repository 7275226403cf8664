package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghdash/internal/cache"
	"ghdash/internal/logging"
	"ghdash/internal/proxy"
	"ghdash/internal/upstream"
)

type stubFetcher struct {
	mu      sync.Mutex
	replies map[string]upstream.Outcome
	seen    []context.Context
	onFetch func(ctx context.Context, path string)
}

func (s *stubFetcher) Fetch(ctx context.Context, path string) upstream.Outcome {
	if s.onFetch != nil {
		s.onFetch(ctx, path)
	}
	s.mu.Lock()
	s.seen = append(s.seen, ctx)
	s.mu.Unlock()
	if out, ok := s.replies[path]; ok {
		return out
	}
	return upstream.Outcome{Status: http.StatusNotFound, Body: []byte(`{"message":"Not Found"}`)}
}

func reply(status int, body string) upstream.Outcome {
	return upstream.Outcome{Status: status, Body: []byte(body)}
}

func TestBuild_EndToEndOctocat(t *testing.T) {
	var calls sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := calls.LoadOrStore(r.URL.Path, new(int))
		*(n.(*int))++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/octocat":
			_, _ = w.Write([]byte(`{"login":"octocat"}`))
		case "/users/octocat/repos":
			_, _ = w.Write([]byte(`[{"name":"repo1"}]`))
		case "/users/octocat/events":
			_, _ = w.Write([]byte(`[{"type":"PushEvent"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	exec, err := upstream.NewExecutor(upstream.Config{BaseURL: srv.URL}, http.DefaultTransport, nil)
	require.NoError(t, err)
	fetcher := proxy.NewFetcher(cache.NewMemory(4), exec, time.Minute, nil)
	agg := NewAggregator(fetcher, nil)

	doc, err := agg.Build(context.Background(), "octocat")
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded struct {
		User struct {
			Status int `json:"status"`
			Data   struct {
				Login string `json:"login"`
			} `json:"data"`
		} `json:"user"`
		Repos struct {
			Status int `json:"status"`
			Data   []struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"repos"`
		Events struct {
			Status int `json:"status"`
			Data   []struct {
				Type string `json:"type"`
			} `json:"data"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, 200, decoded.User.Status)
	assert.Equal(t, "octocat", decoded.User.Data.Login)
	require.Len(t, decoded.Repos.Data, 1)
	assert.Equal(t, "repo1", decoded.Repos.Data[0].Name)
	require.Len(t, decoded.Events.Data, 1)
	assert.Equal(t, "PushEvent", decoded.Events.Data[0].Type)

	// second build is served from cache
	_, err = agg.Build(context.Background(), "octocat")
	require.NoError(t, err)
	for _, p := range []string{"/users/octocat", "/users/octocat/repos", "/users/octocat/events"} {
		n, ok := calls.Load(p)
		require.True(t, ok, p)
		assert.Equal(t, 1, *(n.(*int)), p)
	}
}

func TestBuild_PartialFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "debug", Output: &buf})

	f := &stubFetcher{replies: map[string]upstream.Outcome{
		"users/alice":        reply(200, `{"login":"alice"}`),
		"users/alice/repos":  reply(404, `{"message":"Not Found"}`),
		"users/alice/events": reply(200, `[]`),
	}}

	doc, err := NewAggregator(f, logger).Build(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 200, doc.User.Status)
	assert.Equal(t, 404, doc.Repos.Status)
	assert.Equal(t, 200, doc.Events.Status)
	assert.JSONEq(t, `{"login":"alice"}`, string(doc.User.Data))
	assert.JSONEq(t, `{"message":"Not Found"}`, string(doc.Repos.Data))
	assert.JSONEq(t, `[]`, string(doc.Events.Data))

	var warnings []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["level"] == "warn" {
			warnings = append(warnings, m)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "repos", warnings[0]["leg"])
	assert.Equal(t, "alice", warnings[0]["identity"])
	assert.EqualValues(t, 404, warnings[0]["status"])
}

func TestBuild_MalformedLegIsLocal(t *testing.T) {
	f := &stubFetcher{replies: map[string]upstream.Outcome{
		"users/bob":        reply(200, `{"login":"bob"}`),
		"users/bob/repos":  reply(200, `[{"name":`),
		"users/bob/events": reply(502, ``),
	}}

	doc, err := NewAggregator(f, nil).Build(context.Background(), "bob")
	require.NoError(t, err)

	assert.JSONEq(t, `{"login":"bob"}`, string(doc.User.Data))
	assert.Equal(t, 200, doc.Repos.Status)
	assert.Nil(t, doc.Repos.Data)
	assert.Equal(t, malformedBody, doc.Repos.Error)
	assert.Equal(t, 502, doc.Events.Status)
	assert.Nil(t, doc.Events.Data)
	assert.Empty(t, doc.Events.Error)

	raw, err := json.Marshal(doc.Repos)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":200,"data":null,"error":"malformed upstream response"}`, string(raw))
}

func TestBuild_LegsRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)
	f := &stubFetcher{
		replies: map[string]upstream.Outcome{},
		onFetch: func(ctx context.Context, path string) {
			wg.Done()
			wg.Wait()
		},
	}

	done := make(chan struct{})
	go func() {
		_, _ = NewAggregator(f, nil).Build(context.Background(), "carol")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("legs did not run concurrently")
	}
}

func TestBuild_PropagatesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	f := &stubFetcher{replies: map[string]upstream.Outcome{}}
	_, err := NewAggregator(f, nil).Build(ctx, "dave")
	require.NoError(t, err)

	require.Len(t, f.seen, 3)
	for _, c := range f.seen {
		assert.Equal(t, "marker", c.Value(key{}))
	}
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string) upstream.Outcome {
	panic("boom")
}

func TestBuild_PanicBecomesAggregationError(t *testing.T) {
	doc, err := NewAggregator(panickingFetcher{}, nil).Build(context.Background(), "erin")
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, ErrAggregation))
}
