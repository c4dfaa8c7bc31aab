// Package browser provides pooled page-fetch sessions for connectors
// that crawl web pages. Sessions are bounded and handed out with scoped
// acquire/release so a slow page never starves the rest of a run.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// Ensure Pool implements the interface.
var _ driven.RendererPool = (*Pool)(nil)

// DefaultPoolSize is the default number of concurrent fetch sessions.
const DefaultPoolSize = 4

// Pool hands out a fixed number of page-fetch sessions. Acquire blocks
// while the pool is exhausted; Release returns the session for reuse.
type Pool struct {
	sessions chan driven.RenderSession
	size     int

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool of size sessions built by the given constructor.
// A non-positive size is a configuration error.
func NewPool(size int, newSession func() driven.RenderSession) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: browser_pool_size must be positive, got %d", domain.ErrConfig, size)
	}

	p := &Pool{
		sessions: make(chan driven.RenderSession, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		p.sessions <- newSession()
	}
	return p, nil
}

// Acquire obtains a session, blocking until one is available or the
// context is cancelled.
func (p *Pool) Acquire(ctx context.Context) (driven.RenderSession, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("renderer pool closed")
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case session, ok := <-p.sessions:
		// Close may land between the closed check above and this receive;
		// a closed channel hands out nil sessions.
		if !ok || session == nil {
			return nil, errors.New("renderer pool closed")
		}
		return session, nil
	}
}

// Release returns a session to the pool. Releasing into a closed pool is
// a no-op.
func (p *Pool) Release(session driven.RenderSession) {
	if session == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.sessions <- session:
	default:
		// More releases than acquires; drop the extra session.
	}
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return p.size
}

// Close drains the pool. Outstanding sessions are dropped on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.sessions)
	for range p.sessions {
	}
	return nil
}
