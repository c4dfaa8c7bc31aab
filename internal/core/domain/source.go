package domain

import "time"

// SourceKind identifies the connector variant behind a content source.
type SourceKind string

const (
	// KindSitemap is a site crawled through its sitemap/robots manifest.
	KindSitemap SourceKind = "sitemap"

	// KindRecords is a ticketing/knowledge API with paginated records.
	KindRecords SourceKind = "records"

	// KindWiki is a wiki-style site with per-site DOM extraction rules.
	KindWiki SourceKind = "wiki"
)

// ContentSource describes one configured knowledge source.
// Sources are assembled into an immutable list at startup; there is no
// mutable registry.
type ContentSource struct {
	// ID is the unique identifier for the source.
	ID string

	// DisplayName is the human-readable name shown in citations and CLI output.
	DisplayName string

	// Kind identifies the connector variant that serves this source.
	Kind SourceKind
}

// RawDocument is one content item as fetched from a source, before
// normalisation.
type RawDocument struct {
	// SourceID links to the ContentSource that produced this document.
	SourceID string

	// ContentID is unique within a source.
	ContentID string

	// Title is the human-readable title, if the source provides one.
	Title string

	// URL is the original location of the content.
	URL string

	// RawBody is the unprocessed markup.
	RawBody string

	// FetchedAt is when the body was retrieved.
	FetchedAt time.Time

	// ContentHash fingerprints RawBody so unchanged content can be
	// skipped on re-ingestion.
	ContentHash string
}

// ItemError reports a per-item fetch failure. Partial fetch results carry
// one ItemError per failed content id.
type ItemError struct {
	// ContentID is the item that failed.
	ContentID string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e ItemError) Error() string {
	return "content " + e.ContentID + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error for errors.Is checks.
func (e ItemError) Unwrap() error {
	return e.Err
}
