package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// Implementations share one read-only model instance and must be safe to
// invoke concurrently. The output dimension is fixed per model version;
// vectors from different model versions must never be mixed in one index.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order. More efficient than calling Embed in a loop.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536).
	Dimensions() int

	// ModelVersion identifies the model that produced the vectors.
	// Two vectors are only comparable if their model versions match.
	ModelVersion() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
