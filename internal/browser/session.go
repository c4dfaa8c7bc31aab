package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// Ensure HTTPSession implements the interface.
var _ driven.RenderSession = (*HTTPSession)(nil)

// Default session configuration.
const (
	DefaultUserAgent = "smart-answer-crawler/1.0"
	DefaultTimeout   = 30 * time.Second

	// MaxPageSize caps a single page body at 5MB.
	MaxPageSize = int64(5 * 1024 * 1024)
)

// SessionConfig configures an HTTP fetch session.
type SessionConfig struct {
	// UserAgent sent with every request.
	UserAgent string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// HTTPSession fetches pages over plain HTTP with a keep-alive client.
// Pages requiring client-side rendering need a different RenderSession
// implementation behind the same pool.
type HTTPSession struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSession creates a session with the given configuration.
func NewHTTPSession(cfg SessionConfig) *HTTPSession {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPSession{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// FetchPage retrieves the page at url. Network failures and server
// errors wrap domain.ErrFetch so callers can retry them.
func (s *HTTPSession) FetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", domain.ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageSize))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrFetch, err)
	}

	return string(body), nil
}
