// Package generate assembles one generation request from a user turn.
//
// The orchestrator fans out the enrichment calls (retrieval query, file
// extractions), joins them, optionally runs the sequential depth-classify
// then web-search pair, and issues the terminal generation call. It holds
// no state of its own: session and message mutation belong to the caller.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/log"
)

// Enricher is the set of backend calls the orchestrator drives.
// *client.Client satisfies it; tests substitute fakes.
type Enricher interface {
	// QueryRetrieval is best-effort: failures come back as empty text.
	QueryRetrieval(ctx context.Context, question string) string

	// ClassifyDepth is best-effort: failures come back as client.DepthLow.
	ClassifyDepth(ctx context.Context, question string) client.Depth

	// WebSearch is best-effort: failures come back as empty text.
	WebSearch(ctx context.Context, question string, resultCount int) string

	// ExtractFile errors abort the turn.
	ExtractFile(ctx context.Context, f client.File) (client.FileContent, error)

	// Generate errors abort the turn (after enrichment).
	Generate(ctx context.Context, p client.GenerateParams) (string, error)
}

var _ Enricher = (*client.Client)(nil)

// Request is one user turn to be enriched and generated.
type Request struct {
	Input            string
	Files            []client.File
	WebSearchEnabled bool
	ConversationID   string
}

// Result is the generation outcome, returned verbatim from the backend.
type Result struct {
	Content string
}

// Orchestrator coordinates enrichment fan-out/fan-in for one turn.
// It is stateless and safe for concurrent use, though the session layer
// serializes turns per session.
type Orchestrator struct {
	enricher Enricher
	logger   log.Logger
}

// New creates an Orchestrator.
func New(enricher Enricher, logger log.Logger) (*Orchestrator, error) {
	if enricher == nil {
		return nil, errors.New("generate.New: enricher is required")
	}
	if logger == nil {
		return nil, errors.New("generate.New: logger is required")
	}
	return &Orchestrator{enricher: enricher, logger: logger}, nil
}

// Submit enriches and generates one turn.
//
// Retrieval and all file extractions start concurrently. File results
// are joined first, in input order; any file failure aborts before the
// generation call with an error wrapping client.ErrFileExtraction.
// Retrieval and web-search failures degrade to empty context. Depth
// classification and web search run sequentially because the
// classification frames the search.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Result, error) {
	// Retrieval runs alongside the file fan-out. Buffered channel so the
	// goroutine never blocks if we abort on a file error.
	ragCh := make(chan string, 1)
	go func() {
		ragCh <- o.enricher.QueryRetrieval(ctx, req.Input)
	}()

	fileContext, err := o.extractFiles(ctx, req.Files)
	if err != nil {
		return Result{}, err
	}

	ragContext := <-ragCh

	var webContext *string
	if req.WebSearchEnabled {
		depth := o.enricher.ClassifyDepth(ctx, req.Input)
		text := o.enricher.WebSearch(ctx, req.Input, depth.ResultCount())
		webContext = &text
		o.logger.Debug("web search completed",
			"depth", depth,
			"result_count", depth.ResultCount(),
			"context_len", len(text),
		)
	}

	content, err := o.enricher.Generate(ctx, client.GenerateParams{
		Prompt:         req.Input,
		RAGContext:     ragContext,
		FileContext:    fileContext,
		WebContext:     webContext,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Content: content}, nil
}

// extractFiles runs all file extractions concurrently and joins their
// "name: content" pairs with newlines, preserving input order.
func (o *Orchestrator) extractFiles(ctx context.Context, files []client.File) (string, error) {
	if len(files) == 0 {
		return "", nil
	}

	results := make([]client.FileContent, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			fc, err := o.enricher.ExtractFile(gctx, f)
			if err != nil {
				return err
			}
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, client.ErrFileExtraction) {
			err = fmt.Errorf("%w: %w", client.ErrFileExtraction, err)
		}
		return "", err
	}

	pairs := make([]string, len(results))
	for i, fc := range results {
		pairs[i] = fc.Name + ": " + fc.Content
	}
	return strings.Join(pairs, "\n"), nil
}
