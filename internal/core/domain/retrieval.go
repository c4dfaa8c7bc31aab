package domain

// Reference is a citation pointing back to the document or chunk a piece
// of retrieved context came from.
type Reference struct {
	// ID identifies the cited item, unique across tools in one pass.
	ID string

	// Title is the human-readable citation title.
	Title string

	// Link is the URL of the cited content.
	Link string
}

// RetrievalResult is the context one retrieval tool contributes for a
// question. References must resolve to content actually present in Content.
type RetrievalResult struct {
	// Prefix is prepended when the result is composed into a prompt.
	Prefix string

	// Content is the retrieved context text.
	Content string

	// References are the citable sources for Content, without duplicates.
	References []Reference
}

// Empty reports whether the result carries no usable context.
// An empty result is a valid outcome, distinct from a tool error.
func (r *RetrievalResult) Empty() bool {
	return r == nil || (r.Content == "" && len(r.References) == 0)
}
