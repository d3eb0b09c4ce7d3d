package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mdforge/ingestor/fetch"
	"github.com/mdforge/ingestor/ingest"
	"github.com/mdforge/ingestor/mediatype"
)

// Renderer retrieves a page through a real browser. Satisfied by
// fetch.Renderer; nil means plain HTTP only.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
}

// Web extracts web pages: fetch (HTTP or browser render), sanitize,
// convert to markdown, and download referenced images in document order.
// Retry policy for flaky remote hosts belongs here, not in the generic
// pipeline; the current policy is a single attempt per page.
type Web struct {
	fetcher   *fetch.Fetcher
	renderer  Renderer
	conv      *converter.Converter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger

	// MaxDepth and MaxPages bound deep crawls.
	MaxDepth int
	MaxPages int
	// MaxImages bounds per-page image downloads.
	MaxImages int
}

// NewWeb creates the web extractor. renderer may be nil for plain HTTP.
func NewWeb(fetcher *fetch.Fetcher, renderer Renderer, maxDepth, maxPages int, logger *slog.Logger) *Web {
	if logger == nil {
		logger = slog.Default()
	}
	return &Web{
		fetcher:   fetcher,
		renderer:  renderer,
		conv:      newMarkdownConverter(),
		sanitizer: newSanitizer(),
		logger:    logger,
		MaxDepth:  maxDepth,
		MaxPages:  maxPages,
		MaxImages: 20,
	}
}

func (w *Web) Supports(src *ingest.Source) bool {
	return src.IsURL() || src.Ext() == "url"
}

func (w *Web) Extract(ctx context.Context, src *ingest.Source) (*ingest.ExtractionResult, error) {
	pageURL, err := w.resolveURL(src)
	if err != nil {
		return nil, err
	}
	return w.extractPage(ctx, pageURL, src.Identifier())
}

// resolveURL returns the URL to fetch, reading .url pointer files.
func (w *Web) resolveURL(src *ingest.Source) (string, error) {
	if src.IsURL() {
		return src.URL, nil
	}
	data, err := readAllSource(src, 64*1024)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "URL="))
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", ingest.Malformed(fmt.Errorf("%s contains no URL", src.Identifier()))
}

func (w *Web) extractPage(ctx context.Context, pageURL, sourceID string) (*ingest.ExtractionResult, error) {
	body, finalURL, err := w.retrieve(ctx, pageURL)
	if err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("fetch %s: %w", pageURL, err))
	}
	return w.extractBody(ctx, body, pageURL, finalURL, sourceID)
}

// extractBody converts an already-fetched page body, so crawls that need
// the raw HTML for link discovery fetch each page exactly once.
func (w *Web) extractBody(ctx context.Context, body []byte, pageURL, finalURL, sourceID string) (*ingest.ExtractionResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, ingest.Malformed(fmt.Errorf("parse html: %w", err))
	}

	title := htmlTitle(doc)
	if title == "" {
		if u, err := url.Parse(pageURL); err == nil {
			title = u.Host
		}
	}

	markdown, err := w.conv.ConvertString(w.sanitizer.Sanitize(string(body)))
	if err != nil {
		return nil, ingest.Malformed(fmt.Errorf("html to markdown: %w", err))
	}

	result := &ingest.ExtractionResult{
		MediaType: mediatype.Web,
		SourceID:  sourceID,
		Metadata:  map[string]any{"title": title, "url": pageURL},
	}

	downloaded := make(map[string]string) // resolved URL → carried filename
	result.Markdown = normalizeWhitespace(rewriteImageRefs(markdown, func(target string) (string, bool) {
		return w.downloadImage(ctx, finalURL, target, downloaded, result)
	}))

	return result, nil
}

// retrieve fetches the page body, through the browser renderer when one
// is configured.
func (w *Web) retrieve(ctx context.Context, pageURL string) (body []byte, finalURL string, err error) {
	if w.renderer != nil {
		body, err = w.renderer.Render(ctx, pageURL)
		return body, pageURL, err
	}
	res, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	return res.Body, res.FinalURL, nil
}

// downloadImage resolves an image reference against the page URL and
// fetches it, capped at MaxImages per page. Failures degrade to a failed
// slot so the markdown keeps its position.
func (w *Web) downloadImage(ctx context.Context, baseURL, target string, downloaded map[string]string, result *ingest.ExtractionResult) (string, bool) {
	if strings.HasPrefix(target, "data:") {
		return "", false
	}
	resolved := resolveRef(baseURL, target)
	if resolved == "" {
		return "", false
	}
	if name, done := downloaded[resolved]; done {
		return name, name != ""
	}
	if len(downloaded) >= w.MaxImages {
		return "", false
	}

	name := fmt.Sprintf("image_%03d%s", len(downloaded)+1, imageExt(resolved))
	format := formatFromName(name)

	res, err := w.fetcher.Fetch(ctx, resolved)
	if err != nil {
		w.logger.Debug("web: image fetch failed", "url", resolved, "error", err)
		result.Images = append(result.Images, ingest.Image{Name: name, Format: format, Failed: true})
		result.AddWarning("image %s failed to download", resolved)
		downloaded[resolved] = name
		return name, true
	}

	result.Images = append(result.Images, ingest.Image{Data: res.Body, Format: format, Name: name})
	downloaded[resolved] = name
	return name, true
}

// CrawlDeep performs a breadth-first same-domain crawl from startURL,
// bounded by MaxDepth and MaxPages, returning one result per page.
func (w *Web) CrawlDeep(ctx context.Context, startURL string) ([]*ingest.ExtractionResult, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, ingest.Unreadable(fmt.Errorf("parse url: %w", err))
	}

	type queued struct {
		url   string
		depth int
	}

	var results []*ingest.ExtractionResult
	seen := map[string]bool{startURL: true}
	queue := []queued{{url: startURL, depth: 0}}

	for len(queue) > 0 && len(results) < w.MaxPages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		item := queue[0]
		queue = queue[1:]

		body, finalURL, err := w.retrieve(ctx, item.url)
		if err != nil {
			w.logger.Warn("crawl: fetch failed", "url", item.url, "error", err)
			continue
		}

		result, err := w.extractBody(ctx, body, item.url, finalURL, item.url)
		if err != nil {
			w.logger.Warn("crawl: extract failed", "url", item.url, "error", err)
			continue
		}
		result.Metadata["depth"] = item.depth
		results = append(results, result)

		if item.depth >= w.MaxDepth {
			continue
		}
		for _, link := range pageLinks(body, finalURL) {
			if seen[link] || len(seen) > w.MaxPages*4 {
				continue
			}
			if u, err := url.Parse(link); err != nil || u.Host != start.Host {
				continue
			}
			seen[link] = true
			queue = append(queue, queued{url: link, depth: item.depth + 1})
		}
	}
	return results, nil
}

// pageLinks extracts absolute http(s) links from a page, in order.
func pageLinks(body []byte, baseURL string) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key == "href" {
					if resolved := resolveRef(baseURL, a.Val); resolved != "" {
						links = append(links, resolved)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

// htmlTitle extracts the <title> text.
func htmlTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := htmlTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// resolveRef resolves a (possibly relative) reference against a base
// URL, stripping fragments. Empty when the result is not http(s).
func resolveRef(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// imageExt guesses a filename extension from an image URL path.
func imageExt(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".png"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff", ".svg":
		return ext
	}
	return ".png"
}
