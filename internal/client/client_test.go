package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/log"
	"github.com/ragpilot/ragpilot/internal/testutil"
)

func newClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Logger:  log.NewNop(),
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := client.New(client.Config{BaseURL: "http://localhost:8000"})
	assert.Error(t, err, "logger is required")

	_, err = client.New(client.Config{BaseURL: "not a url", Logger: log.NewNop()})
	assert.Error(t, err, "base URL must parse")

	_, err = client.New(client.Config{BaseURL: "http://localhost:8000/", Logger: log.NewNop()})
	assert.NoError(t, err, "trailing slash is tolerated")
}

func TestQueryRetrieval(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.RetrievalResponse = "retrieved context"
	c := newClient(t, backend.URL())

	got := c.QueryRetrieval(context.Background(), "what is X?")
	assert.Equal(t, "retrieved context", got)
}

func TestQueryRetrieval_FailureYieldsEmpty(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.RetrievalResponse = "never seen"
	backend.FailWith("/rag/query", http.StatusBadRequest)
	c := newClient(t, backend.URL())

	got := c.QueryRetrieval(context.Background(), "what is X?")
	assert.Empty(t, got, "retrieval is best-effort")
}

func TestClassifyDepth(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     client.Depth
	}{
		{"high", "high", client.DepthHigh},
		{"medium", "medium", client.DepthMedium},
		{"low", "low", client.DepthLow},
		{"unknown maps to low", "extreme", client.DepthLow},
		{"mixed case", "HIGH", client.DepthHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewBackend(t)
			backend.Depth = tt.response
			c := newClient(t, backend.URL())
			assert.Equal(t, tt.want, c.ClassifyDepth(context.Background(), "q"))
		})
	}
}

func TestClassifyDepth_FailureYieldsLow(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Depth = "high"
	backend.FailWith("/generate/inDepth_context", http.StatusBadRequest)
	c := newClient(t, backend.URL())

	assert.Equal(t, client.DepthLow, c.ClassifyDepth(context.Background(), "q"))
}

func TestWebSearch_PassesResultCount(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.WebResponse = "web context"
	c := newClient(t, backend.URL())

	got := c.WebSearch(context.Background(), "what is X?", 5)
	assert.Equal(t, "web context", got)

	reqs := backend.WebRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "what is X?", reqs[0].Get("question"))
	assert.Equal(t, "5", reqs[0].Get("result_count"))
}

func TestExtractFile(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.FileContents["notes.txt"] = "extracted text"
	c := newClient(t, backend.URL())

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("raw bytes"), 0o600))

	got, err := c.ExtractFile(context.Background(), client.File{Name: "notes.txt", Path: path})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, "extracted text", got.Content)
}

func TestExtractFile_MissingLocalFile(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	_, err := c.ExtractFile(context.Background(),
		client.File{Name: "gone.txt", Path: "/nonexistent/gone.txt"})
	assert.ErrorIs(t, err, client.ErrFileExtraction)
}

func TestExtractFile_BackendFailure(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.FailWith("/files/read", http.StatusUnsupportedMediaType)
	c := newClient(t, backend.URL())

	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := c.ExtractFile(context.Background(), client.File{Name: "a.bin", Path: path})
	assert.ErrorIs(t, err, client.ErrFileExtraction)
}

func TestGenerate_SendsAllContexts(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.GenerateContent = "the answer"
	c := newClient(t, backend.URL())

	web := "web ctx"
	got, err := c.Generate(context.Background(), client.GenerateParams{
		Prompt:         "what is X?",
		RAGContext:     "rag ctx",
		FileContext:    "file ctx",
		WebContext:     &web,
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)

	reqs := backend.GenerateRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "what is X?", reqs[0].Get("prompt"))
	assert.Equal(t, "rag ctx", reqs[0].Get("rag_response"))
	assert.Equal(t, "file ctx", reqs[0].Get("file_response"))
	assert.Equal(t, "web ctx", reqs[0].Get("web_response"))
	assert.Equal(t, "conv-1", reqs[0].Get("conversation_id"))
}

// web_response must be absent, not empty, when web search is disabled.
func TestGenerate_OmitsWebParamWhenNil(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	_, err := c.Generate(context.Background(), client.GenerateParams{Prompt: "q"})
	require.NoError(t, err)

	reqs := backend.GenerateRequests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].Has("web_response"), "web_response must be omitted entirely")
}

func TestGenerate_EmptyWebContextIsSent(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	empty := ""
	_, err := c.Generate(context.Background(), client.GenerateParams{Prompt: "q", WebContext: &empty})
	require.NoError(t, err)

	reqs := backend.GenerateRequests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Has("web_response"), "empty web context is still a parameter")
}

func TestGenerate_FailurePropagates(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.FailWith("/generate/gen_content", http.StatusBadGateway)
	c := newClient(t, backend.URL())

	_, err := c.Generate(context.Background(), client.GenerateParams{Prompt: "q"})
	assert.ErrorIs(t, err, client.ErrGeneration)
}

// The wrap must keep the cause in the chain: callers tell a canceled
// context apart from a backend failure with errors.Is.
func TestGenerate_KeepsCancellationInChain(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, client.GenerateParams{Prompt: "q"})
	assert.ErrorIs(t, err, client.ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractFile_KeepsCancellationInChain(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExtractFile(ctx, client.File{Name: "a.txt", Path: path})
	assert.ErrorIs(t, err, client.ErrFileExtraction)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConversationLifecycle(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())
	ctx := context.Background()

	id, err := c.CreateConversation(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	list, err := c.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "alice", list[0].UserID)

	// Another user's listing is empty.
	other, err := c.ListConversations(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, c.RenameConversation(ctx, id, "new title"))
	list, err = c.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new title", list[0].Title)

	require.NoError(t, c.DeleteConversation(ctx, id))
	list, err = c.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHistory(t *testing.T) {
	backend := testutil.NewBackend(t)
	id := backend.Seed("alice", "seeded",
		testutil.StoredMessage{Role: "user", Content: "q1", Timestamp: time.Now().UTC()},
		testutil.StoredMessage{Role: "assistant", Content: "a1", Timestamp: time.Now().UTC()},
		testutil.StoredMessage{Role: "user", Content: "q2", Timestamp: time.Now().UTC()},
	)
	c := newClient(t, backend.URL())

	msgs, err := c.History(context.Background(), id, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, client.RoleUser, msgs[0].Role)
	assert.Equal(t, "q1", msgs[0].Content)

	// The limit keeps the newest entries.
	msgs, err = c.History(context.Background(), id, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a1", msgs[0].Content)
}

func TestHistory_NotFound(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	_, err := c.History(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, client.ErrConversationNotFound)
}

func TestRename_NotFound(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	err := c.RenameConversation(context.Background(), "missing", "t")
	assert.ErrorIs(t, err, client.ErrConversationNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := newClient(t, backend.URL())

	err := c.DeleteConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, client.ErrConversationNotFound)
}

// Idempotent GETs retry on 5xx; the injected failure clears after two
// attempts and the call succeeds.
func TestGet_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversations":[]}`))
	}))
	defer srv.Close()

	c, err := client.New(client.Config{
		BaseURL: srv.URL,
		Logger:  log.NewNop(),
		Retry: client.RetryConfig{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	_, err = c.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

// Client errors are terminal, not retried.
func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := client.New(client.Config{
		BaseURL: srv.URL,
		Logger:  log.NewNop(),
		Retry: client.RetryConfig{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	_, err = c.ListConversations(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
