package driven

import "context"

// QuestionGenerator produces synthetic questions a reader might ask about
// a piece of content. The questions are indexed alongside the content's
// chunks to improve retrieval recall.
//
// This is an optional service - when nil, connectors fall back to
// heading-derived questions.
type QuestionGenerator interface {
	// GenerateQuestions returns up to max questions for the given text.
	GenerateQuestions(ctx context.Context, title, text string, max int) ([]string, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
