package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
	"github.com/junyang168/smart-answer/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.ContextService = (*Orchestrator)(nil)

// Orchestrator fans a question out to the primary retrieval tools,
// merges their results in tool-priority order and falls back to the
// designated fallback tool only when every primary comes back empty.
type Orchestrator struct {
	primaries []driven.RetrievalTool
	fallback  driven.RetrievalTool
}

// NewOrchestrator validates the tool set: at most one fallback tool may
// be configured. Tool order is priority order for merging.
func NewOrchestrator(tools []driven.RetrievalTool) (*Orchestrator, error) {
	o := &Orchestrator{}
	for _, tool := range tools {
		if !tool.IsFallback() {
			o.primaries = append(o.primaries, tool)
			continue
		}
		if o.fallback != nil {
			return nil, fmt.Errorf("%w: tools %s and %s are both marked fallback",
				domain.ErrConfig, o.fallback.Name(), tool.Name())
		}
		o.fallback = tool
	}
	if len(o.primaries) == 0 && o.fallback == nil {
		return nil, fmt.Errorf("%w: no retrieval tools configured", domain.ErrConfig)
	}
	return o, nil
}

// Retrieve runs the primary tools concurrently and merges non-empty
// results in priority order, deduplicating references by id (first seen
// wins). A tool error skips that tool for the pass; the fallback runs
// only when all primaries produced nothing usable.
func (o *Orchestrator) Retrieve(ctx context.Context, question string) (*domain.RetrievalResult, error) {
	results := make([]*domain.RetrievalResult, len(o.primaries))

	var wg sync.WaitGroup
	for i, tool := range o.primaries {
		wg.Add(1)
		go func(i int, tool driven.RetrievalTool) {
			defer wg.Done()
			result, err := tool.Retrieve(ctx, nil, question)
			if err != nil {
				logger.Warn("tool %s unavailable: %v", tool.Name(), err)
				return
			}
			results[i] = result
		}(i, tool)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := mergeResults(results)
	if !merged.Empty() {
		return merged, nil
	}

	if o.fallback == nil {
		return merged, nil
	}

	logger.Debug("all primary tools empty, invoking fallback %s", o.fallback.Name())
	result, err := o.fallback.Retrieve(ctx, nil, question)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Warn("fallback tool %s unavailable: %v", o.fallback.Name(), err)
		return merged, nil
	}
	// The fallback result is returned verbatim, not merged.
	return result, nil
}

// mergeResults concatenates non-empty results in priority order and
// dedupes references by id, keeping the first occurrence.
func mergeResults(results []*domain.RetrievalResult) *domain.RetrievalResult {
	merged := &domain.RetrievalResult{}
	var content strings.Builder
	seen := map[string]bool{}

	for _, result := range results {
		if result.Empty() {
			continue
		}

		if result.Content != "" {
			if content.Len() > 0 {
				content.WriteString("\n\n")
			}
			if result.Prefix != "" {
				content.WriteString(result.Prefix)
				content.WriteString("\n")
			}
			content.WriteString(result.Content)
		}

		for _, ref := range result.References {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			merged.References = append(merged.References, ref)
		}
	}

	merged.Content = content.String()
	return merged
}
