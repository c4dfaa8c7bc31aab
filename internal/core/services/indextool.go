package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/logger"
)

// Ensure IndexTool implements the interface.
var _ driven.RetrievalTool = (*IndexTool)(nil)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

// IndexToolConfig configures one index-backed retrieval tool.
type IndexToolConfig struct {
	// Name identifies the tool; conventionally the source id.
	Name string

	// Collection is the index collection queried.
	Collection string

	// Prefix is prepended when composing the result into a prompt,
	// e.g. "From the product documentation:".
	Prefix string

	// TopK is the number of chunks retrieved (default 5).
	TopK int

	// Fallback marks this as the designated fallback tool.
	Fallback bool
}

// IndexTool answers questions from one search index collection: it
// embeds the question, queries the collection and assembles retrieved
// chunks with their citations.
type IndexTool struct {
	cfg      IndexToolConfig
	embedder driven.EmbeddingService
	index    driven.SearchIndex
}

// NewIndexTool creates an index-backed retrieval tool.
func NewIndexTool(cfg IndexToolConfig, embedder driven.EmbeddingService, index driven.SearchIndex) (*IndexTool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: retrieval tool needs a name", domain.ErrConfig)
	}
	if cfg.Collection == "" {
		cfg.Collection = cfg.Name
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &IndexTool{cfg: cfg, embedder: embedder, index: index}, nil
}

// Name identifies the tool.
func (t *IndexTool) Name() string {
	return t.cfg.Name
}

// IsFallback reports whether this is the designated fallback tool.
func (t *IndexTool) IsFallback() bool {
	return t.cfg.Fallback
}

// Retrieve embeds the question, queries the collection and assembles the
// top chunks into citable context. No matches is an empty result, not an
// error; an unreachable backend wraps domain.ErrToolUnavailable.
func (t *IndexTool) Retrieve(ctx context.Context, args map[string]string, question string) (*domain.RetrievalResult, error) {
	vector, err := t.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", domain.ErrToolUnavailable, err)
	}

	k := t.cfg.TopK
	if v, ok := args["top_k"]; ok {
		if n, err := parsePositiveInt(v); err == nil {
			k = n
		}
	}

	hits, err := t.index.Query(ctx, t.cfg.Collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrToolUnavailable, t.cfg.Collection, err)
	}
	if len(hits) == 0 {
		logger.Debug("tool %s: no matches", t.cfg.Name)
		return &domain.RetrievalResult{Prefix: t.cfg.Prefix}, nil
	}

	var (
		content strings.Builder
		refs    []domain.Reference
		seen    = map[string]bool{}
	)
	for _, hit := range hits {
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(hit.Chunk.Text)

		ref := referenceForChunk(&hit.Chunk)
		if ref.ID != "" && !seen[ref.ID] {
			seen[ref.ID] = true
			refs = append(refs, ref)
		}
	}

	return &domain.RetrievalResult{
		Prefix:     t.cfg.Prefix,
		Content:    content.String(),
		References: refs,
	}, nil
}

// AnswerPromptTemplate substitutes the retrieved context into the answer
// template's {context} slot, or appends it when no slot exists.
func (t *IndexTool) AnswerPromptTemplate(template, context string) string {
	if strings.Contains(template, "{context}") {
		return strings.ReplaceAll(template, "{context}", context)
	}
	return template + "\n\n" + context
}

// ParseAnswer returns the answer unchanged; index-backed tools add no
// structured extras.
func (t *IndexTool) ParseAnswer(answer string) (string, map[string]string) {
	return strings.TrimSpace(answer), nil
}

// referenceForChunk builds a citation from chunk metadata. Chunks from
// the same content share one reference id.
func referenceForChunk(chunk *domain.Chunk) domain.Reference {
	ref := domain.Reference{ID: chunk.Collection + ":" + chunk.ContentID}
	if chunk.Metadata != nil {
		if title, ok := chunk.Metadata.Get("title"); ok {
			ref.Title = title
		}
		if url, ok := chunk.Metadata.Get("url"); ok {
			ref.Link = url
		}
	}
	if ref.Title == "" {
		ref.Title = chunk.ContentID
	}
	return ref
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("not positive: %d", n)
	}
	return n, nil
}
