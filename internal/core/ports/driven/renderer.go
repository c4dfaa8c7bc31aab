package driven

import "context"

// RenderSession is one pooled page-fetch session. Sessions are expensive
// (a headless browser tab or a keep-alive HTTP client) and must be
// returned to the pool on completion or error.
type RenderSession interface {
	// FetchPage retrieves and renders the page at url, returning the
	// final markup after any client-side rendering the session performs.
	FetchPage(ctx context.Context, url string) (string, error)
}

// RendererPool hands out page-fetch sessions with scoped acquire/release.
// Acquire blocks until a session is available or the context is done;
// Release must be called exactly once per acquired session, on success,
// failure, or timeout.
type RendererPool interface {
	// Acquire obtains a session, blocking while the pool is exhausted.
	Acquire(ctx context.Context) (RenderSession, error)

	// Release returns a session to the pool.
	Release(session RenderSession)

	// Close drains the pool and releases all sessions.
	Close() error
}
