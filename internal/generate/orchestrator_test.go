package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/log"
)

// fakeEnricher records calls and returns scripted results.
type fakeEnricher struct {
	mu sync.Mutex

	ragText    string
	depth      client.Depth
	webText    string
	genContent string
	genErr     error

	extractErr   map[string]error // keyed by file name
	extractDelay time.Duration

	generateCalls  []client.GenerateParams
	webSearchCalls []int // result counts requested
	classifyCalls  int
}

func (f *fakeEnricher) QueryRetrieval(_ context.Context, _ string) string {
	return f.ragText
}

func (f *fakeEnricher) ClassifyDepth(_ context.Context, _ string) client.Depth {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyCalls++
	return f.depth
}

func (f *fakeEnricher) WebSearch(_ context.Context, _ string, resultCount int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webSearchCalls = append(f.webSearchCalls, resultCount)
	return f.webText
}

func (f *fakeEnricher) ExtractFile(ctx context.Context, file client.File) (client.FileContent, error) {
	if f.extractDelay > 0 {
		select {
		case <-time.After(f.extractDelay):
		case <-ctx.Done():
			return client.FileContent{}, ctx.Err()
		}
	}
	if err := f.extractErr[file.Name]; err != nil {
		return client.FileContent{}, err
	}
	return client.FileContent{Name: file.Name, Content: "content of " + file.Name}, nil
}

func (f *fakeEnricher) Generate(_ context.Context, p client.GenerateParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls = append(f.generateCalls, p)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.genContent, nil
}

func newTestOrchestrator(t *testing.T, e Enricher) *Orchestrator {
	t.Helper()
	o, err := New(e, log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(nil, log.NewNop()); err == nil {
		t.Error("expected error for nil enricher")
	}
	if _, err := New(&fakeEnricher{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestSubmit_ReturnsContentVerbatim(t *testing.T) {
	fake := &fakeEnricher{ragText: "rag", genContent: "  raw reply\n"}
	o := newTestOrchestrator(t, fake)

	res, err := o.Submit(context.Background(), Request{Input: "what is X?"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Content != "  raw reply\n" {
		t.Errorf("content mutated: %q", res.Content)
	}
}

func TestSubmit_PassesLiteralInputAndRAGContext(t *testing.T) {
	fake := &fakeEnricher{ragText: "rag context", genContent: "ok"}
	o := newTestOrchestrator(t, fake)

	_, err := o.Submit(context.Background(), Request{Input: "  question with spaces  ", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if len(fake.generateCalls) != 1 {
		t.Fatalf("expected 1 generate call, got %d", len(fake.generateCalls))
	}
	p := fake.generateCalls[0]
	if p.Prompt != "  question with spaces  " {
		t.Errorf("prompt not passed literally: %q", p.Prompt)
	}
	if p.RAGContext != "rag context" {
		t.Errorf("rag context = %q", p.RAGContext)
	}
	if p.ConversationID != "c1" {
		t.Errorf("conversation id = %q", p.ConversationID)
	}
}

// Depth policy: high→5, medium→2, low→1, unrecognized→1.
func TestSubmit_DepthPolicy(t *testing.T) {
	tests := []struct {
		depth client.Depth
		want  int
	}{
		{client.DepthHigh, 5},
		{client.DepthMedium, 2},
		{client.DepthLow, 1},
		{client.Depth("weird"), 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.depth), func(t *testing.T) {
			fake := &fakeEnricher{depth: tt.depth, webText: "w", genContent: "ok"}
			o := newTestOrchestrator(t, fake)

			_, err := o.Submit(context.Background(), Request{Input: "q", WebSearchEnabled: true})
			if err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			if len(fake.webSearchCalls) != 1 || fake.webSearchCalls[0] != tt.want {
				t.Errorf("web search result counts = %v, want [%d]", fake.webSearchCalls, tt.want)
			}
		})
	}
}

// Web disabled: the web-context argument is absent (nil), never "".
func TestSubmit_WebDisabledOmitsWebContext(t *testing.T) {
	fake := &fakeEnricher{genContent: "ok"}
	o := newTestOrchestrator(t, fake)

	_, err := o.Submit(context.Background(), Request{Input: "q", WebSearchEnabled: false})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if fake.generateCalls[0].WebContext != nil {
		t.Errorf("web context should be nil when web search is disabled, got %q", *fake.generateCalls[0].WebContext)
	}
	if fake.classifyCalls != 0 || len(fake.webSearchCalls) != 0 {
		t.Error("classification and web search must not run when web search is disabled")
	}
}

// Web enabled but search finds nothing: context is present and empty.
func TestSubmit_WebEnabledEmptyResultIsPresent(t *testing.T) {
	fake := &fakeEnricher{depth: client.DepthLow, webText: "", genContent: "ok"}
	o := newTestOrchestrator(t, fake)

	_, err := o.Submit(context.Background(), Request{Input: "q", WebSearchEnabled: true})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	wc := fake.generateCalls[0].WebContext
	if wc == nil {
		t.Fatal("web context should be present (non-nil) when web search is enabled")
	}
	if *wc != "" {
		t.Errorf("web context = %q, want empty", *wc)
	}
}

func TestSubmit_JoinsFilesInInputOrder(t *testing.T) {
	fake := &fakeEnricher{genContent: "ok", extractDelay: 5 * time.Millisecond}
	o := newTestOrchestrator(t, fake)

	files := []client.File{
		{Name: "a.txt", Path: "/tmp/a.txt"},
		{Name: "b.txt", Path: "/tmp/b.txt"},
		{Name: "c.txt", Path: "/tmp/c.txt"},
	}
	_, err := o.Submit(context.Background(), Request{Input: "q", Files: files})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	want := "a.txt: content of a.txt\nb.txt: content of b.txt\nc.txt: content of c.txt"
	if got := fake.generateCalls[0].FileContext; got != want {
		t.Errorf("file context = %q, want %q", got, want)
	}
}

// Any single file failure aborts the turn before generation.
func TestSubmit_FileFailureAbortsBeforeGeneration(t *testing.T) {
	fake := &fakeEnricher{
		genContent: "ok",
		extractErr: map[string]error{
			"bad.txt": fmt.Errorf("%w: bad.txt: boom", client.ErrFileExtraction),
		},
	}
	o := newTestOrchestrator(t, fake)

	files := []client.File{
		{Name: "good.txt", Path: "/tmp/good.txt"},
		{Name: "bad.txt", Path: "/tmp/bad.txt"},
	}
	_, err := o.Submit(context.Background(), Request{Input: "q", Files: files})
	if !errors.Is(err, client.ErrFileExtraction) {
		t.Fatalf("Submit() = %v, want ErrFileExtraction", err)
	}
	if len(fake.generateCalls) != 0 {
		t.Errorf("generation must not run after a file failure, got %d calls", len(fake.generateCalls))
	}
}

// Extraction errors that are not already wrapped still surface as
// ErrFileExtraction to the caller.
func TestSubmit_WrapsUnexpectedExtractionErrors(t *testing.T) {
	fake := &fakeEnricher{
		genContent: "ok",
		extractErr: map[string]error{"f.txt": errors.New("connection reset")},
	}
	o := newTestOrchestrator(t, fake)

	_, err := o.Submit(context.Background(), Request{
		Input: "q",
		Files: []client.File{{Name: "f.txt", Path: "/tmp/f.txt"}},
	})
	if !errors.Is(err, client.ErrFileExtraction) {
		t.Fatalf("Submit() = %v, want ErrFileExtraction", err)
	}
}

func TestSubmit_GenerationFailurePropagates(t *testing.T) {
	fake := &fakeEnricher{genErr: fmt.Errorf("%w: 500", client.ErrGeneration)}
	o := newTestOrchestrator(t, fake)

	_, err := o.Submit(context.Background(), Request{Input: "q"})
	if !errors.Is(err, client.ErrGeneration) {
		t.Fatalf("Submit() = %v, want ErrGeneration", err)
	}
}
