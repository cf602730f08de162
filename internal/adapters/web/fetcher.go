package web

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"trinity/internal/adapters/config"
	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

// Page is the extracted content of a fetched web page.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher downloads pages and extracts readable text.
type Fetcher struct {
	httpClient  *http.Client
	maxBodySize int64
	log         *logger.Logger
}

// NewFetcher creates a page fetcher from configuration.
func NewFetcher(cfg config.WebConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodySize
	if maxBody == 0 {
		maxBody = 1 << 20
	}
	return &Fetcher{
		httpClient:  &http.Client{Timeout: timeout},
		maxBodySize: maxBody,
		log:         logger.Get().With("component", "web_fetcher"),
	}
}

// Fetch downloads the page and extracts its title and visible text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if rawURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "url cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported url scheme: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create fetch request")
	}
	req.Header.Set("User-Agent", "trinity-agent/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrExternal, "fetch %s failed with status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "parse page html")
	}

	page := &Page{
		URL:   rawURL,
		Title: extractTitle(doc),
		Text:  extractText(doc),
	}

	f.log.Debug("Fetched page", "url", rawURL, "title", page.Title, "text_length", len(page.Text))

	return page, nil
}

func extractTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// extractText collects visible text, skipping script and style subtrees.
func extractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
