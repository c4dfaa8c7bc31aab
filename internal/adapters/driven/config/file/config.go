// Package file loads and validates the TOML configuration file. All
// validation happens at load time; a configuration error aborts startup
// before any work begins.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// Defaults applied when the file omits a key.
const (
	DefaultMaxChunkSize       = 2000
	DefaultOverlapSize        = 200
	DefaultRetryMaxAttempts   = 3
	DefaultBrowserPoolSize    = 4
	DefaultEmbeddingBatchSize = 16
	DefaultTopK               = 5
)

// Config is the full application configuration.
type Config struct {
	// MaxChunkSize is the chunk budget in characters.
	MaxChunkSize int `toml:"max_chunk_size"`

	// OverlapSize is the character overlap between consecutive chunks.
	OverlapSize int `toml:"overlap_size"`

	// EmbeddingModelVersion pins the model version recorded in the index.
	EmbeddingModelVersion string `toml:"embedding_model_version"`

	// RetryMaxAttempts bounds retries for transient per-item failures.
	RetryMaxAttempts int `toml:"retry_max_attempts"`

	// BrowserPoolSize is the number of pooled page-fetch sessions.
	BrowserPoolSize int `toml:"browser_pool_size"`

	// EmbeddingBatchSize caps texts per embedding request.
	EmbeddingBatchSize int `toml:"embedding_batch_size"`

	// FallbackToolID names the source whose retrieval tool runs only
	// when every primary tool comes back empty.
	FallbackToolID string `toml:"fallback_tool_id"`

	// TopK is the number of chunks retrieved per tool query.
	TopK int `toml:"top_k"`

	// DataDir holds the sqlite index and ledger. Empty uses
	// ~/.smart-answer/data.
	DataDir string `toml:"data_dir"`

	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Questions QuestionsConfig `toml:"questions"`
	Sources   []SourceConfig  `toml:"sources"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama" (default) or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// APIKey authenticates openai requests.
	APIKey string `toml:"api_key"`

	// Dimensions overrides the model's default vector size.
	Dimensions int `toml:"dimensions"`
}

// IndexConfig selects the search index backend.
type IndexConfig struct {
	// Backend is "sqlite" (default), "qdrant" or "memory".
	Backend string `toml:"backend"`

	// URL is the qdrant base URL when Backend is "qdrant".
	URL string `toml:"url"`

	// APIKey authenticates qdrant requests.
	APIKey string `toml:"api_key"`
}

// QuestionsConfig configures LLM question generation. Disabled means
// connectors derive questions from headings.
type QuestionsConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// SourceConfig is one content source block.
type SourceConfig struct {
	// ID uniquely identifies the source.
	ID string `toml:"id"`

	// Kind is "sitemap", "records" or "wiki".
	Kind string `toml:"kind"`

	// DisplayName is shown in citations. Empty uses the id.
	DisplayName string `toml:"display_name"`

	// Collection is the index collection. Empty uses the id.
	Collection string `toml:"collection"`

	// BaseURL is the site or API root.
	BaseURL string `toml:"base_url"`

	// SitemapURL reads this sitemap directly (sitemap kind).
	SitemapURL string `toml:"sitemap_url"`

	// ContentSelector narrows extraction (sitemap kind).
	ContentSelector string `toml:"content_selector"`

	// DropSelectors are stripped before conversion.
	DropSelectors []string `toml:"drop_selectors"`

	// APIToken authenticates the records API (records kind).
	APIToken string `toml:"api_token"`

	// RequestsPerSecond paces records API requests (records kind).
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// PathPrefix filters discovered pages (wiki kind).
	PathPrefix string `toml:"path_prefix"`

	// TitleSelector extracts the article title (wiki kind).
	TitleSelector string `toml:"title_selector"`

	// MaxQuestions caps synthetic questions per item.
	MaxQuestions int `toml:"max_questions"`
}

// Load reads and validates the configuration file. If path is empty,
// defaults to ~/.smart-answer/config.toml.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: getting home directory: %w", domain.ErrConfig, err)
		}
		path = filepath.Join(home, ".smart-answer", "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrConfig, path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrConfig, path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills unset numeric and provider fields.
func (c *Config) applyDefaults() {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.OverlapSize == 0 && c.MaxChunkSize > DefaultOverlapSize {
		c.OverlapSize = DefaultOverlapSize
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if c.BrowserPoolSize == 0 {
		c.BrowserPoolSize = DefaultBrowserPoolSize
	}
	if c.EmbeddingBatchSize == 0 {
		c.EmbeddingBatchSize = DefaultEmbeddingBatchSize
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "sqlite"
	}
	if c.EmbeddingModelVersion == "" {
		c.EmbeddingModelVersion = c.Embedding.Model
	}
}

// Validate enforces the startup rules. Every violation wraps
// domain.ErrConfig.
func (c *Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max_chunk_size must be positive, got %d", domain.ErrConfig, c.MaxChunkSize)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap_size must not be negative, got %d", domain.ErrConfig, c.OverlapSize)
	}
	if c.OverlapSize >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap_size %d must be smaller than max_chunk_size %d",
			domain.ErrConfig, c.OverlapSize, c.MaxChunkSize)
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("%w: retry_max_attempts must not be negative", domain.ErrConfig)
	}
	if c.BrowserPoolSize <= 0 {
		return fmt.Errorf("%w: browser_pool_size must be positive", domain.ErrConfig)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: embedding_batch_size must be positive", domain.ErrConfig)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", domain.ErrConfig)
	}

	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: embedding provider openai requires api_key", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfig, c.Embedding.Provider)
	}

	switch c.Index.Backend {
	case "sqlite", "memory":
	case "qdrant":
		if c.Index.URL == "" {
			return fmt.Errorf("%w: index backend qdrant requires url", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index backend %q", domain.ErrConfig, c.Index.Backend)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one source must be configured", domain.ErrConfig)
	}

	ids := map[string]bool{}
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("%w: source %d has no id", domain.ErrConfig, i)
		}
		if ids[src.ID] {
			return fmt.Errorf("%w: duplicate source id %q", domain.ErrConfig, src.ID)
		}
		ids[src.ID] = true

		switch domain.SourceKind(src.Kind) {
		case domain.KindSitemap:
			if src.BaseURL == "" && src.SitemapURL == "" {
				return fmt.Errorf("%w: sitemap source %q needs base_url or sitemap_url", domain.ErrConfig, src.ID)
			}
		case domain.KindRecords:
			if src.BaseURL == "" {
				return fmt.Errorf("%w: records source %q needs base_url", domain.ErrConfig, src.ID)
			}
			if src.APIToken == "" {
				return fmt.Errorf("%w: records source %q needs api_token", domain.ErrConfig, src.ID)
			}
		case domain.KindWiki:
			if src.BaseURL == "" {
				return fmt.Errorf("%w: wiki source %q needs base_url", domain.ErrConfig, src.ID)
			}
		default:
			return fmt.Errorf("%w: source %q has unknown kind %q", domain.ErrConfig, src.ID, src.Kind)
		}
	}

	if c.FallbackToolID != "" && !ids[c.FallbackToolID] {
		return fmt.Errorf("%w: fallback_tool_id %q does not match any source", domain.ErrConfig, c.FallbackToolID)
	}

	return nil
}

// SourceByID returns the source block for id, or nil.
func (c *Config) SourceByID(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}
