package driven

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// RetrievalTool answers a question from one knowledge source, returning
// text plus citable references. Tools never mutate their backing index;
// they only read.
//
// An empty RetrievalResult is a valid, non-error outcome. A backend
// outage is reported as an error wrapping domain.ErrToolUnavailable,
// which causes the orchestrator to skip the tool for the pass.
type RetrievalTool interface {
	// Name identifies the tool in configuration and logs.
	Name() string

	// Retrieve gathers context for the question. args carries
	// tool-specific parameters from the orchestrator.
	Retrieve(ctx context.Context, args map[string]string, question string) (*domain.RetrievalResult, error)

	// AnswerPromptTemplate lets the tool adjust the downstream answer
	// prompt for its retrieved context. Tools without an opinion return
	// the template unchanged.
	AnswerPromptTemplate(template, context string) string

	// IsFallback reports whether this is the designated fallback tool,
	// invoked only when every primary tool returns nothing usable.
	IsFallback() bool

	// ParseAnswer post-processes a generated answer, returning the
	// cleaned answer and any tool-specific extras.
	ParseAnswer(answer string) (string, map[string]string)
}
