package vectorstore

import "time"

// Document type tags. The tag is an open string, not a closed enum: documents
// persisted by older versions may carry tags this version does not know, and
// Stats reports them under their own tag (or "unknown" when absent).
const (
	// TypePage is site content indexed from the content source.
	TypePage = "page"

	// TypeConversation is a stored chat turn (user message or reply).
	TypeConversation = "conversation"

	// TypeFAQ is curated question/answer content.
	TypeFAQ = "faq"

	// typeUnknown is the Stats bucket for documents without a type tag.
	typeUnknown = "unknown"
)

// Metadata carries the free-form fields attached to a document.
// Content is required; the rest depends on the document's origin.
type Metadata struct {
	Content   string    `json:"content"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Type      string    `json:"type,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Document is the unit of storage: an identifier, an embedding vector and
// metadata. Re-upserting an existing ID replaces the prior entry.
type Document struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Result is a single query hit with its cosine similarity to the query.
type Result struct {
	Document   Document
	Similarity float64
}

// Stats summarizes the store contents.
type Stats struct {
	TotalDocuments int            `json:"totalDocuments"`
	ByType         map[string]int `json:"byType"`
}
