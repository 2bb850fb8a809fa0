package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentuity/fetch-mcp/cache"
	"github.com/agentuity/fetch-mcp/jina"
	"github.com/agentuity/fetch-mcp/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	fetches  atomic.Int32
	searches atomic.Int32
	err      error
}

func (f *fakeUpstream) Fetch(ctx context.Context, url string) (string, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "content of " + url, nil
}

func (f *fakeUpstream) Search(ctx context.Context, query string) (string, error) {
	f.searches.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "results for " + query, nil
}

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *countingRecorder) ToolCall(tool string, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[tool+"/"+status]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

type harness struct {
	session  *mcp.ClientSession
	upstream *fakeUpstream
	log      *logger.TestLogger
	recorder *countingRecorder
}

func newHarness(t *testing.T, facade *cache.Facade, up *fakeUpstream) *harness {
	t.Helper()
	ctx := context.Background()
	if facade == nil {
		facade = cache.NewFacade(ctx, cache.FacadeConfig{Logger: logger.NewTestLogger()})
		t.Cleanup(func() { facade.Close() })
	}
	log := logger.NewTestLogger()
	rec := &countingRecorder{}
	server := NewServer("test", NewHandlers(NewProducers(facade, up, nil), log, rec))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return &harness{session: cs, upstream: up, log: log, recorder: rec}
}

func (h *harness) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(*mcp.TextContent).Text
}

func TestListTools(t *testing.T) {
	h := newHarness(t, nil, &fakeUpstream{})
	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"fetch", "search"}, names)
}

func TestFetchIsCached(t *testing.T) {
	h := newHarness(t, nil, &fakeUpstream{})

	for i := 0; i < 3; i++ {
		res := h.call(t, "fetch", map[string]any{"url": "https://example.com"})
		assert.False(t, res.IsError)
		assert.Equal(t, "content of https://example.com", text(res))
	}
	assert.Equal(t, int32(1), h.upstream.fetches.Load())

	h.call(t, "fetch", map[string]any{"url": "https://example.org"})
	assert.Equal(t, int32(2), h.upstream.fetches.Load())
	assert.Equal(t, 4, h.recorder.get("fetch/ok"))
}

func TestSearchIsCached(t *testing.T) {
	h := newHarness(t, nil, &fakeUpstream{})

	res := h.call(t, "search", map[string]any{"query": "go generics"})
	assert.Equal(t, "results for go generics", text(res))
	res = h.call(t, "search", map[string]any{"query": "go generics"})
	assert.Equal(t, "results for go generics", text(res))
	assert.Equal(t, int32(1), h.upstream.searches.Load())
}

func TestEmptyArgumentIsValidationError(t *testing.T) {
	h := newHarness(t, nil, &fakeUpstream{})

	res := h.call(t, "fetch", map[string]any{"url": "  "})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: url is required", text(res))

	res = h.call(t, "search", map[string]any{"query": ""})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: query is required", text(res))

	assert.Equal(t, int32(0), h.upstream.fetches.Load())
	assert.Equal(t, int32(0), h.upstream.searches.Load())
	assert.Len(t, h.log.Find("WARNING", "validation error"), 2)
	assert.Equal(t, 1, h.recorder.get("fetch/error"))
}

func TestUpstreamErrorsBecomeText(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		args   map[string]any
		err    error
		expect string
	}{
		{"fetch missing key", "fetch", map[string]any{"url": "https://example.com"}, jina.ErrMissingAPIKey, "Error: JINA_API_KEY is not configured"},
		{"fetch http status", "fetch", map[string]any{"url": "https://example.com"}, &jina.Error{Status: 404}, "Error: HTTP error 404"},
		{"fetch transport", "fetch", map[string]any{"url": "https://example.com"}, errors.New("connection refused"), "Error: failed to fetch content: connection refused"},
		{"search missing key", "search", map[string]any{"query": "q"}, jina.ErrMissingAPIKey, "Error: JINA_API_KEY is not configured"},
		{"search http status", "search", map[string]any{"query": "q"}, &jina.Error{Status: 500}, "Error: failed to search: HTTP error 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{err: tt.err}
			h := newHarness(t, nil, up)
			res := h.call(t, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Equal(t, tt.expect, text(res))

			// errors are never cached
			h.call(t, tt.tool, tt.args)
			assert.Equal(t, int32(2), up.fetches.Load()+up.searches.Load())
		})
	}
}

func TestEndToEndWithRedisAndJina(t *testing.T) {
	ctx := context.Background()
	var upstreamCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Write([]byte("Title: Example Domain"))
	}))
	defer server.Close()

	mr := miniredis.RunT(t)
	facade := cache.NewFacade(ctx, cache.FacadeConfig{URL: "redis://" + mr.Addr(), Logger: logger.NewTestLogger()})
	defer facade.Close()

	client := jina.New(jina.Config{
		APIKey:    "key",
		ReaderURL: server.URL,
		SearchURL: server.URL,
		Timeout:   time.Second,
		Logger:    logger.NewTestLogger(),
	})
	producers := NewProducers(facade, client, nil)

	for i := 0; i < 2; i++ {
		val, found, err := producers.FetchContent(ctx, "https://example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Title: Example Domain", val)
	}
	assert.Equal(t, int32(1), upstreamCalls.Load())
	assert.Equal(t, cache.BackendExternal, facade.Backend())
	assert.Equal(t, FetchContentTTL, mr.TTL(`fetch_content:["https://example.com"]:{}`))

	_, _, err := producers.SearchWeb(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, SearchWebTTL, mr.TTL(`search_web:["example"]:{}`))
}
