// Package scraper crawls a documentation site breadth-first from a seed URL,
// extracts text and code blocks per page, and feeds chunked content to the
// vector store. The crawl is sequential with a fixed inter-request delay and
// no retries; a failed page is logged and skipped.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/fabfab/docs-agent/chunker"
	"github.com/fabfab/docs-agent/store"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Code snippets at or below this length are boilerplate (inline identifiers,
// prompt fragments) and are not worth extracting.
const minCodeBlockChars = 10

// Blocks shorter than this are extracted but not indexed as code chunks.
const minCodeChunkChars = 20

// ChunkSink receives chunks incrementally, one page at a time, so partial
// crawl progress is persisted.
type ChunkSink interface {
	AddChunks(ctx context.Context, chunks []store.Chunk) error
}

type Page struct {
	URL          string
	Title        string
	Content      string
	CodeExamples []CodeBlock
}

type CodeBlock struct {
	Text     string
	Language string
}

type Scraper struct {
	base    *url.URL
	client  *http.Client
	chunker *chunker.Chunker
	delay   time.Duration
	logger  *log.Logger
}

func New(seedURL string, ch *chunker.Chunker, delay time.Duration, logger *log.Logger) (*Scraper, error) {
	if logger == nil {
		logger = log.Default()
	}

	base, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("seed url must be http(s), got %q", seedURL)
	}
	if base.Hostname() == "" {
		return nil, fmt.Errorf("seed url has no host: %q", seedURL)
	}

	return &Scraper{
		base:    base,
		client:  &http.Client{Timeout: 15 * time.Second},
		chunker: ch,
		delay:   delay,
		logger:  logger,
	}, nil
}

// ScrapeDocumentation drives the crawl: a FIFO frontier seeded with the
// start URL, a seen set guaranteeing each URL is enqueued at most once, and
// a page budget. It returns the number of pages fetched (attempted), which
// includes pages that failed. Store failures abort the crawl; page failures
// do not.
func (s *Scraper) ScrapeDocumentation(ctx context.Context, maxPages int, sink ChunkSink) (int, error) {
	if maxPages <= 0 {
		return 0, fmt.Errorf("max pages must be positive, got %d", maxPages)
	}

	seed := *s.base
	seed.Fragment = ""
	start := seed.String()

	frontier := []string{start}
	seen := map[string]bool{start: true}
	fetched := 0

	s.logger.Printf("starting documentation scrape from %s (budget %d pages)", start, maxPages)

	for len(frontier) > 0 && fetched < maxPages {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		pageURL := frontier[0]
		frontier = frontier[1:]
		fetched++

		doc, raw, err := s.fetch(ctx, pageURL)
		if err != nil {
			s.logger.Printf("scrape failed for %s: %v", pageURL, err)
		} else {
			parsed, _ := url.Parse(pageURL)
			for _, link := range s.DiscoverLinks(doc, parsed, seen) {
				seen[link] = true
				frontier = append(frontier, link)
			}

			page := s.extract(doc, raw, pageURL)
			chunks := s.pageChunks(page)
			if len(chunks) > 0 {
				if err := sink.AddChunks(ctx, chunks); err != nil {
					return fetched, fmt.Errorf("store chunks for %s: %w", pageURL, err)
				}
				s.logger.Printf("scraped %d/%d: %s (%d chunks)", fetched, maxPages, pageURL, len(chunks))
			} else {
				s.logger.Printf("scraped %d/%d: %s (no content)", fetched, maxPages, pageURL)
			}
		}

		if len(frontier) == 0 || fetched >= maxPages {
			break
		}

		select {
		case <-ctx.Done():
			return fetched, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	s.logger.Printf("scrape complete: %d pages fetched", fetched)
	return fetched, nil
}

// ScrapePage fetches and extracts a single page.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string) (Page, error) {
	doc, raw, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	return s.extract(doc, raw, pageURL), nil
}

// DiscoverLinks extracts anchor targets from doc, resolves them against
// base, and returns those on the seed's domain that are not already in seen.
// The returned slice contains no duplicates; seen is not modified.
func (s *Scraper) DiscoverLinks(doc *goquery.Document, base *url.URL, seen map[string]bool) []string {
	var links []string
	batch := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		if !s.sameDomain(resolved.Hostname()) {
			return
		}

		link := resolved.String()
		if seen[link] || batch[link] {
			return
		}
		batch[link] = true
		links = append(links, link)
	})

	return links
}

// sameDomain accepts the seed host and its subdomains.
func (s *Scraper) sameDomain(host string) bool {
	seedHost := s.base.Hostname()
	return host == seedHost || strings.HasSuffix(host, "."+seedHost)
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("fetch page: status %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return nil, nil, fmt.Errorf("skipping non-HTML content type %q", contentType)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	return doc, raw, nil
}

func (s *Scraper) extract(doc *goquery.Document, raw []byte, pageURL string) Page {
	page := Page{URL: pageURL}
	page.Title = strings.TrimSpace(doc.Find("h1").First().Text())

	content := doc.Find("div.content, div.main-content, div.documentation").First()
	if content.Length() == 0 {
		content = doc.Find("main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}

	if content.Length() > 0 {
		page.Content = blockText(content)
	} else if parsed, err := url.Parse(pageURL); err == nil {
		// No conventional content container; let readability pull the
		// article body out of the full page.
		if article, err := readability.FromReader(bytes.NewReader(raw), parsed); err == nil {
			page.Content = strings.TrimSpace(article.TextContent)
			if page.Title == "" {
				page.Title = strings.TrimSpace(article.Title)
			}
		}
	}
	if page.Title == "" {
		page.Title = "No Title"
	}

	doc.Find("pre, code").Each(func(_ int, sel *goquery.Selection) {
		// A <code> inside a <pre> is already covered by the <pre> pass.
		if goquery.NodeName(sel) == "code" && sel.ParentsFiltered("pre").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if len(text) <= minCodeBlockChars {
			return
		}
		page.CodeExamples = append(page.CodeExamples, CodeBlock{
			Text:     text,
			Language: languageHint(sel),
		})
	})

	return page
}

// blockText joins the page's block-level text nodes with newlines, so the
// chunker sees paragraph boundaries instead of one run-on line.
func blockText(sel *goquery.Selection) string {
	var lines []string
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, pre, dt, dd, td").Each(func(_ int, block *goquery.Selection) {
		if text := strings.TrimSpace(block.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// languageHint guesses a code block's language from language-*/lang-*
// classes on the element, a nested <code>, or the enclosing <pre>.
func languageHint(sel *goquery.Selection) string {
	candidates := []string{sel.AttrOr("class", "")}
	if nested := sel.Find("code").First(); nested.Length() > 0 {
		candidates = append(candidates, nested.AttrOr("class", ""))
	}
	if parent := sel.ParentsFiltered("pre").First(); parent.Length() > 0 {
		candidates = append(candidates, parent.AttrOr("class", ""))
	}

	for _, classes := range candidates {
		for _, class := range strings.Fields(classes) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
			if lang, ok := strings.CutPrefix(class, "lang-"); ok {
				return lang
			}
		}
	}
	return ""
}

func (s *Scraper) pageChunks(page Page) []store.Chunk {
	var chunks []store.Chunk

	for i, text := range s.chunker.Chunk(page.Content) {
		chunks = append(chunks, store.Chunk{
			Text:   text,
			Source: page.URL,
			Title:  page.Title,
			Index:  i,
			Kind:   store.KindDocumentation,
		})
	}

	for i, code := range page.CodeExamples {
		if len(code.Text) <= minCodeChunkChars {
			continue
		}
		var metadata map[string]string
		if code.Language != "" {
			metadata = map[string]string{"language": code.Language}
		}
		chunks = append(chunks, store.Chunk{
			Text:     "Code example:\n" + code.Text,
			Source:   page.URL,
			Title:    page.Title,
			Index:    i,
			Kind:     store.KindCode,
			Metadata: metadata,
		})
	}

	return chunks
}
