package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trinity/internal/adapters/config"
	"trinity/pkg/errors"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(config.WebConfig{Timeout: time.Second, MaxBodySize: 1 << 20})
}

func TestFetchExtractsTitleAndText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>
			<head><title>Test Page</title><style>body { color: red }</style></head>
			<body>
				<h1>Welcome</h1>
				<p>Some readable content.</p>
				<script>console.log("noise")</script>
			</body>
		</html>`))
	}))
	defer server.Close()

	page, err := newTestFetcher().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.Title != "Test Page" {
		t.Errorf("expected title %q, got %q", "Test Page", page.Title)
	}
	if !strings.Contains(page.Text, "Welcome") || !strings.Contains(page.Text, "Some readable content.") {
		t.Errorf("expected body text, got %q", page.Text)
	}
	if strings.Contains(page.Text, "console.log") {
		t.Errorf("script content should be stripped, got %q", page.Text)
	}
	if strings.Contains(page.Text, "color: red") {
		t.Errorf("style content should be stripped, got %q", page.Text)
	}
}

func TestFetchRejectsBadScheme(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "ftp://example.com")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	if !errors.Is(err, errors.ErrExternal) {
		t.Fatalf("expected ErrExternal, got %v", err)
	}
}
