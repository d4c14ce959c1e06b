// Package sitemap provides the content source for the knowledge base: an
// ordered snapshot of the site's pages as {url, title, content} records.
//
// Three sources are provided. Client fetches the snapshot from a JSON
// endpoint, Crawler builds one by crawling the live site, and Static serves
// the built-in snapshot used as a fallback and in development.
package sitemap

import "context"

// Page is one entry of a site snapshot.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Source returns a full site snapshot on every call.
type Source interface {
	Pages(ctx context.Context) ([]Page, error)
}
