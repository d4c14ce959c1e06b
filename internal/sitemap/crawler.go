package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/voyago/voyago/internal/log"
)

const (
	// defaultMaxPages caps a crawl so a misconfigured base URL cannot
	// produce an unbounded snapshot.
	defaultMaxPages = 50

	// maxContentRunes bounds the text extracted per page. Embedding inputs
	// beyond this add cost without improving retrieval for support answers.
	maxContentRunes = 4000

	crawlDepth = 2
	userAgent  = "voyago-sitemap/1.0"
)

// Crawler builds a site snapshot by crawling the live site, extracting
// readable text from each HTML page.
type Crawler struct {
	base     *url.URL
	maxPages int
	logger   log.Logger
}

// NewCrawler creates a Crawler rooted at baseURL. maxPages <= 0 uses the
// default cap.
func NewCrawler(baseURL string, maxPages int, logger log.Logger) (*Crawler, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("sitemap: base URL %q must be absolute", baseURL)
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Crawler{base: base, maxPages: maxPages, logger: logger}, nil
}

// Pages crawls the site and returns one Page per HTML document, ordered by
// URL path for a deterministic snapshot. Pages that fail extraction are
// logged and skipped.
func (c *Crawler) Pages(ctx context.Context) ([]Page, error) {
	collector := colly.NewCollector(
		colly.AllowedDomains(c.base.Hostname()),
		colly.MaxDepth(crawlDepth),
		colly.UserAgent(userAgent),
	)

	seen := make(map[string]bool)
	var pages []Page

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || len(pages) >= c.maxPages {
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// Visit resolves relative links against the current page.
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}

		path := r.Request.URL.Path
		if path == "" {
			path = "/"
		}
		if seen[path] || len(pages) >= c.maxPages {
			return
		}
		seen[path] = true

		page, err := extractPage(r.Body, r.Request.URL, path)
		if err != nil {
			c.logger.Warn("skipping page", "url", path, "error", err)
			return
		}
		pages = append(pages, page)
	})

	if err := collector.Visit(c.base.String()); err != nil {
		return nil, fmt.Errorf("sitemap: crawl %s: %w", c.base, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].URL < pages[j].URL })

	c.logger.Info("crawl completed", "pages", len(pages))
	return pages, nil
}

// extractPage pulls a title and readable text out of an HTML document.
// Readability output is preferred; the raw <title> and meta description are
// the fallback for pages without article content.
func extractPage(body []byte, pageURL *url.URL, path string) (Page, error) {
	title, content := "", ""

	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		title = strings.TrimSpace(article.Title)
		content = normalizeText(article.TextContent)
	}

	if title == "" || content == "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return Page{}, fmt.Errorf("parse html: %w", err)
		}
		if title == "" {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		if content == "" {
			if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
				content = normalizeText(desc)
			} else {
				content = normalizeText(doc.Find("body").Text())
			}
		}
	}

	if content == "" {
		return Page{}, fmt.Errorf("no readable content")
	}
	if title == "" {
		title = path
	}

	return Page{URL: path, Title: title, Content: content}, nil
}

// normalizeText collapses whitespace and truncates to the content bound.
func normalizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxContentRunes {
		s = string(runes[:maxContentRunes])
	}
	return s
}
