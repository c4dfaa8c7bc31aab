// Package app is the composition root: it builds the full object graph
// (connectors, pipeline, retrieval tools, orchestrator) from a loaded
// configuration file.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/junyang168/smart-answer/internal/adapters/driven/config/file"
	ollamaembed "github.com/junyang168/smart-answer/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/junyang168/smart-answer/internal/adapters/driven/embedding/openai"
	"github.com/junyang168/smart-answer/internal/adapters/driven/index/memory"
	"github.com/junyang168/smart-answer/internal/adapters/driven/index/qdrant"
	"github.com/junyang168/smart-answer/internal/adapters/driven/index/sqlite"
	ollamaquestions "github.com/junyang168/smart-answer/internal/adapters/driven/questions/ollama"
	"github.com/junyang168/smart-answer/internal/browser"
	"github.com/junyang168/smart-answer/internal/connectors/records"
	"github.com/junyang168/smart-answer/internal/connectors/sitemap"
	"github.com/junyang168/smart-answer/internal/connectors/wiki"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
	"github.com/junyang168/smart-answer/internal/core/services"
	"github.com/junyang168/smart-answer/internal/logger"
	"github.com/junyang168/smart-answer/internal/splitter"
)

const userAgent = "smart-answer-crawler/1.0"

// App holds the wired application services and the resources they own.
type App struct {
	Config    *file.Config
	Sources   []domain.ContentSource
	Context   driving.ContextService
	Ingestion driving.IngestionRunner

	closers []func() error
}

// Build loads the configuration and wires every service. The returned
// App must be closed when done.
func Build(ctx context.Context, configPath string) (*App, error) {
	cfg, err := file.Load(configPath)
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(ctx, cfg)
}

// BuildWithConfig wires every service from an already validated
// configuration.
func BuildWithConfig(ctx context.Context, cfg *file.Config) (*App, error) {
	a := &App{Config: cfg}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(embedder.Close)

	// The sqlite store is always opened: it carries the ingestion
	// ledger even when the search index lives elsewhere.
	store, err := sqlite.NewStore(cfg.DataDir, cfg.EmbeddingModelVersion)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(store.Close)

	index, err := buildIndex(cfg, store, embedder)
	if err != nil {
		a.Close()
		return nil, err
	}

	var questions driven.QuestionGenerator
	if cfg.Questions.Enabled {
		questions = ollamaquestions.NewGenerator(ollamaquestions.Config{
			BaseURL: cfg.Questions.BaseURL,
			Model:   cfg.Questions.Model,
		})
	}

	pool, err := browser.NewPool(cfg.BrowserPoolSize, func() driven.RenderSession {
		return browser.NewHTTPSession(browser.SessionConfig{
			UserAgent: userAgent,
			Timeout:   30 * time.Second,
		})
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(pool.Close)

	conns, err := buildConnectors(ctx, cfg, pool, questions)
	if err != nil {
		a.Close()
		return nil, err
	}
	for _, c := range conns {
		a.Sources = append(a.Sources, c.Source())
		a.onClose(c.Close)
	}

	split, err := splitter.New(cfg.MaxChunkSize, cfg.OverlapSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	pipeline, err := services.NewPipeline(conns, split, embedder, index, store.Ledger(), services.PipelineConfig{
		RetryMaxAttempts:   cfg.RetryMaxAttempts,
		EmbeddingBatchSize: cfg.EmbeddingBatchSize,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ingestion = pipeline

	orchestrator, err := buildOrchestrator(cfg, conns, embedder, index)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Context = orchestrator

	logger.Debug("application wired: %d sources, %s index, %s embeddings",
		len(conns), cfg.Index.Backend, cfg.Embedding.Provider)
	return a, nil
}

// Close releases every resource the app owns, in reverse build order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func buildEmbedder(cfg *file.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:       cfg.Embedding.APIKey,
			BaseURL:      cfg.Embedding.BaseURL,
			Model:        cfg.Embedding.Model,
			ModelVersion: cfg.EmbeddingModelVersion,
			Dimensions:   cfg.Embedding.Dimensions,
		})
	case "ollama", "":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:      cfg.Embedding.BaseURL,
			Model:        cfg.Embedding.Model,
			ModelVersion: cfg.EmbeddingModelVersion,
			Dimensions:   cfg.Embedding.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfig, cfg.Embedding.Provider)
	}
}

func buildIndex(cfg *file.Config, store *sqlite.Store, embedder driven.EmbeddingService) (driven.SearchIndex, error) {
	switch cfg.Index.Backend {
	case "sqlite", "":
		return store.SearchIndex(), nil
	case "qdrant":
		index, err := qdrant.NewIndex(qdrant.Config{
			URL:          cfg.Index.URL,
			APIKey:       cfg.Index.APIKey,
			ModelVersion: cfg.EmbeddingModelVersion,
			Dimensions:   embedder.Dimensions(),
		})
		if err != nil {
			return nil, err
		}
		return index, nil
	case "memory":
		return memory.NewIndex(cfg.EmbeddingModelVersion), nil
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrConfig, cfg.Index.Backend)
	}
}

func buildConnectors(ctx context.Context, cfg *file.Config, pool driven.RendererPool, questions driven.QuestionGenerator) ([]driven.Connector, error) {
	var conns []driven.Connector
	for _, src := range cfg.Sources {
		conn, err := buildConnector(ctx, src, pool, questions)
		if err != nil {
			for _, c := range conns {
				c.Close() //nolint:errcheck
			}
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func buildConnector(ctx context.Context, src file.SourceConfig, pool driven.RendererPool, questions driven.QuestionGenerator) (driven.Connector, error) {
	switch src.Kind {
	case "sitemap":
		return sitemap.New(sitemap.Config{
			SourceID:        src.ID,
			DisplayName:     src.DisplayName,
			Collection:      src.Collection,
			BaseURL:         src.BaseURL,
			SitemapURL:      src.SitemapURL,
			ContentSelector: src.ContentSelector,
			DropSelectors:   src.DropSelectors,
			UserAgent:       userAgent,
			MaxQuestions:    src.MaxQuestions,
		}, pool, questions)
	case "records":
		return records.New(ctx, records.Config{
			SourceID:          src.ID,
			DisplayName:       src.DisplayName,
			Collection:        src.Collection,
			BaseURL:           src.BaseURL,
			APIToken:          src.APIToken,
			RequestsPerSecond: src.RequestsPerSecond,
			MaxQuestions:      src.MaxQuestions,
		}, questions)
	case "wiki":
		cfg := wiki.Config{
			SourceID:     src.ID,
			DisplayName:  src.DisplayName,
			Collection:   src.Collection,
			BaseURL:      src.BaseURL,
			PathPrefix:   src.PathPrefix,
			UserAgent:    userAgent,
			MaxQuestions: src.MaxQuestions,
		}
		if src.ContentSelector != "" || src.TitleSelector != "" {
			parsed, err := url.Parse(src.BaseURL)
			if err != nil || parsed.Hostname() == "" {
				return nil, fmt.Errorf("%w: source %s has unparsable base_url %q", domain.ErrConfig, src.ID, src.BaseURL)
			}
			cfg.Rules = []wiki.SiteRules{{
				Host:            parsed.Hostname(),
				ContentSelector: src.ContentSelector,
				TitleSelector:   src.TitleSelector,
				DropSelectors:   src.DropSelectors,
			}}
		}
		return wiki.New(cfg, pool, questions)
	default:
		return nil, fmt.Errorf("%w: source %s has unknown kind %q", domain.ErrConfig, src.ID, src.Kind)
	}
}

func buildOrchestrator(cfg *file.Config, conns []driven.Connector, embedder driven.EmbeddingService, index driven.SearchIndex) (driving.ContextService, error) {
	var tools []driven.RetrievalTool
	for _, c := range conns {
		src := c.Source()
		prefix := src.DisplayName
		if prefix == "" {
			prefix = src.ID
		}
		tool, err := services.NewIndexTool(services.IndexToolConfig{
			Name:       src.ID,
			Collection: c.CollectionName(),
			Prefix:     fmt.Sprintf("From %s:", prefix),
			TopK:       cfg.TopK,
			Fallback:   src.ID == cfg.FallbackToolID,
		}, embedder, index)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return services.NewOrchestrator(tools)
}
