package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trinity/internal/adapters/search"
	"trinity/internal/adapters/web"
	"trinity/internal/memory"
	"trinity/internal/tools"
	"trinity/pkg/errors"
)

const polymathPrompt = `You are Polymath, a research agent. You search, read, extract and connect
information across domains. Always ground claims in what your tools returned.`

// Searcher is the slice of the search adapter the polymath needs.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// PageFetcher is the slice of the web adapter the polymath needs.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*web.Page, error)
}

// knowledgeGraph is an undirected concept graph built up over runs.
type knowledgeGraph struct {
	mu    sync.Mutex
	edges map[string]map[string]struct{}
}

func newKnowledgeGraph() *knowledgeGraph {
	return &knowledgeGraph{edges: make(map[string]map[string]struct{})}
}

func (g *knowledgeGraph) connect(a, b string) {
	if a == b || a == "" || b == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(a, b)
	g.link(b, a)
}

func (g *knowledgeGraph) link(from, to string) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]struct{})
	}
	g.edges[from][to] = struct{}{}
}

func (g *knowledgeGraph) neighbors(concept string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.edges[concept]))
	for n := range g.edges[concept] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (g *knowledgeGraph) size() (nodes, edges int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, ns := range g.edges {
		edges += len(ns)
	}
	return len(g.edges), edges / 2
}

// searchDepth maps a requested depth to a result count.
func searchDepth(depth string) int {
	switch strings.ToLower(depth) {
	case "shallow":
		return 3
	case "deep":
		return 10
	default:
		return 5
	}
}

// NewPolymath builds the polymath agent with its research tools registered.
func NewPolymath(searcher Searcher, fetcher PageFetcher, mem *memory.Manager, opts ...Option) (*BaseAgent, error) {
	registry := tools.NewRegistry()
	graph := newKnowledgeGraph()

	if mem != nil {
		opts = append(opts, WithMemory(mem))
	}

	agent, err := NewBaseAgent(
		"polymath",
		"researcher",
		"Searches, extracts and connects knowledge across domains",
		polymathPrompt,
		registry,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	register := func(t tools.Tool) {
		if err == nil {
			err = registry.Register(t)
		}
	}

	register(tools.New("comprehensive_search",
		"Search the web for a query; depth controls how many results come back",
		tools.Schema{
			"query": {Type: "string", Description: "Search query", Required: true},
			"depth": {Type: "string", Description: "shallow, medium or deep", Default: "medium"},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if searcher == nil {
				return nil, errors.Wrap(errors.ErrUnavailable, "search adapter not configured")
			}
			query := args["query"].(string)
			depth, _ := args["depth"].(string)
			results, err := searcher.Search(ctx, query, searchDepth(depth))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"query": query, "depth": depth, "results": results}, nil
		},
	))

	register(tools.New("extract_data",
		"Fetch a web page and extract the requested information from it",
		tools.Schema{
			"url":  {Type: "string", Description: "Page to fetch", Required: true},
			"what": {Type: "string", Description: "What to extract", Default: "a concise summary"},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if fetcher == nil {
				return nil, errors.Wrap(errors.ErrUnavailable, "web adapter not configured")
			}
			rawURL := args["url"].(string)
			what, _ := args["what"].(string)

			page, err := fetcher.Fetch(ctx, rawURL)
			if err != nil {
				return nil, err
			}

			text := page.Text
			if len(text) > 8000 {
				text = text[:8000]
			}

			extracted, err := agent.complete(ctx, fmt.Sprintf(
				"Extract %s from the following page titled %q:\n\n%s", what, page.Title, text))
			if err != nil {
				// Degraded mode: return the raw text when no provider is available
				if errors.Is(err, errors.ErrProviderUnavailable) {
					return map[string]interface{}{"url": rawURL, "title": page.Title, "text": text}, nil
				}
				return nil, err
			}

			return map[string]interface{}{"url": rawURL, "title": page.Title, "extracted": extracted}, nil
		},
	))

	register(tools.New("connect_concepts",
		"Link concepts pairwise in the knowledge graph and return their neighborhoods",
		tools.Schema{
			"concepts": {Type: "array", Description: "Concepts to interlink", Required: true},
		},
		func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			concepts := toStrings(args["concepts"])
			if len(concepts) < 2 {
				return nil, errors.Wrap(errors.ErrInvalidInput, "need at least two concepts to connect")
			}

			for i := 0; i < len(concepts); i++ {
				for j := i + 1; j < len(concepts); j++ {
					graph.connect(concepts[i], concepts[j])
				}
			}

			neighborhoods := make(map[string][]string, len(concepts))
			for _, c := range concepts {
				neighborhoods[c] = graph.neighbors(c)
			}
			nodes, edges := graph.size()

			return map[string]interface{}{
				"connected":     concepts,
				"neighborhoods": neighborhoods,
				"graph_nodes":   nodes,
				"graph_edges":   edges,
			}, nil
		},
	))

	register(tools.New("generate_insights",
		"Generate insights about a topic from the knowledge graph and recalled memory",
		tools.Schema{
			"topic": {Type: "string", Description: "Topic to reason about", Required: true},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			topic := args["topic"].(string)

			related := graph.neighbors(topic)

			var recalled []memory.Entry
			if mem != nil {
				var err error
				recalled, err = mem.Recall(ctx, agent.Name(), topic, 5)
				if err != nil {
					return nil, err
				}
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Generate insights about %q.\n", topic)
			if len(related) > 0 {
				fmt.Fprintf(&sb, "Connected concepts: %s.\n", strings.Join(related, ", "))
			}
			for _, entry := range recalled {
				fmt.Fprintf(&sb, "Prior note: %s\n", entry.Content)
			}

			insights, err := agent.complete(ctx, sb.String())
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"topic":            topic,
				"related_concepts": related,
				"insights":         insights,
			}, nil
		},
	))

	if err != nil {
		return nil, err
	}
	return agent, nil
}

func toStrings(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
