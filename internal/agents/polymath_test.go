package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/adapters/search"
	"trinity/internal/adapters/web"
	"trinity/pkg/errors"
)

type fakeSearcher struct {
	results []search.Result
	queries []string
	max     int
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	f.max = maxResults
	if len(f.results) > maxResults {
		return f.results[:maxResults], nil
	}
	return f.results, nil
}

type fakeFetcher struct {
	page *web.Page
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*web.Page, error) {
	if f.page == nil {
		return nil, errors.Wrapf(errors.ErrExternal, "fetch %s failed", rawURL)
	}
	return f.page, nil
}

func TestPolymath_ComprehensiveSearchDepth(t *testing.T) {
	results := make([]search.Result, 12)
	for i := range results {
		results[i] = search.Result{Title: "hit", URL: "https://example.com"}
	}
	searcher := &fakeSearcher{results: results}

	agent, err := NewPolymath(searcher, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	cases := map[string]int{"shallow": 3, "medium": 5, "deep": 10, "": 5}
	for depth, want := range cases {
		args := map[string]interface{}{"query": "go concurrency"}
		if depth != "" {
			args["depth"] = depth
		}
		_, err := agent.Dispatch(ctx, "comprehensive_search", args)
		require.NoError(t, err)
		assert.Equal(t, want, searcher.max, "depth %q", depth)
	}
}

func TestPolymath_SearchUnconfigured(t *testing.T) {
	agent, err := NewPolymath(nil, nil, nil)
	require.NoError(t, err)

	_, err = agent.Dispatch(context.Background(), "comprehensive_search", map[string]interface{}{"query": "x"})
	assert.ErrorIs(t, err, errors.ErrToolExecution)
}

func TestPolymath_ExtractDataDegraded(t *testing.T) {
	// No LLM provider: extract_data falls back to returning page text
	fetcher := &fakeFetcher{page: &web.Page{
		URL:   "https://example.com",
		Title: "Example",
		Text:  "Example body text",
	}}

	agent, err := NewPolymath(nil, fetcher, nil)
	require.NoError(t, err)

	result, err := agent.Dispatch(context.Background(), "extract_data", map[string]interface{}{
		"url": "https://example.com",
	})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, "Example", data["title"])
	assert.Equal(t, "Example body text", data["text"])
}

func TestPolymath_ConnectConcepts(t *testing.T) {
	agent, err := NewPolymath(nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	result, err := agent.Dispatch(ctx, "connect_concepts", map[string]interface{}{
		"concepts": []interface{}{"go", "concurrency", "channels"},
	})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, 3, data["graph_nodes"])
	assert.Equal(t, 3, data["graph_edges"])

	neighborhoods := data["neighborhoods"].(map[string][]string)
	assert.ElementsMatch(t, []string{"concurrency", "channels"}, neighborhoods["go"])

	// A second call extends the same graph
	result, err = agent.Dispatch(ctx, "connect_concepts", map[string]interface{}{
		"concepts": []interface{}{"go", "generics"},
	})
	require.NoError(t, err)

	data = result.(map[string]interface{})
	assert.Equal(t, 4, data["graph_nodes"])
	assert.Equal(t, 4, data["graph_edges"])
}

func TestPolymath_ConnectConceptsNeedsTwo(t *testing.T) {
	agent, err := NewPolymath(nil, nil, nil)
	require.NoError(t, err)

	_, err = agent.Dispatch(context.Background(), "connect_concepts", map[string]interface{}{
		"concepts": []interface{}{"alone"},
	})
	assert.ErrorIs(t, err, errors.ErrToolExecution)
}

func TestPolymath_ToolCatalog(t *testing.T) {
	agent, err := NewPolymath(nil, nil, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"comprehensive_search", "extract_data", "connect_concepts", "generate_insights"},
		agent.Tools().Names(),
	)
}
