// Package testutil provides a fake RagPilot backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// StoredConversation is one conversation held by the fake backend.
type StoredConversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []StoredMessage
}

// StoredMessage is one history entry held by the fake backend.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend is an in-memory fake of the RagPilot HTTP backend. Handlers
// mirror the real API's routes and JSON shapes; per-route failures can
// be injected with FailWith.
type Backend struct {
	mu sync.Mutex

	server *httptest.Server

	conversations map[string]*StoredConversation
	nextID        int

	// Scripted enrichment responses.
	RetrievalResponse string
	Depth             string            // response of the depth classifier ("low"/"medium"/"high")
	WebResponse       string
	FileContents      map[string]string // file name -> extracted text
	GenerateContent   string

	// Failure injection: route prefix -> HTTP status to return.
	failures map[string]int

	// Recorded generation calls, newest last.
	generateRequests []url.Values
	webRequests      []url.Values
}

// NewBackend starts a fake backend. The server shuts down with the test.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		conversations:   make(map[string]*StoredConversation),
		FileContents:    make(map[string]string),
		failures:        make(map[string]int),
		Depth:           "low",
		GenerateContent: "fake reply",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rag/query", b.handleRAGQuery)
	mux.HandleFunc("GET /generate/inDepth_context", b.handleDepth)
	mux.HandleFunc("GET /web/search", b.handleWebSearch)
	mux.HandleFunc("POST /files/read", b.handleFileRead)
	mux.HandleFunc("GET /generate/gen_content", b.handleGenerate)
	mux.HandleFunc("POST /conversations/create", b.handleCreate)
	mux.HandleFunc("GET /conversations/user/{userID}", b.handleList)
	// "GET /conversations/{id}/history" would be ambiguous with the
	// list route above ("/conversations/user/history" matches both), so
	// ServeMux rejects it; dispatch history manually instead.
	mux.HandleFunc("GET /conversations/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
		if id, ok := strings.CutSuffix(rest, "/history"); ok && !strings.Contains(id, "/") {
			r.SetPathValue("id", id)
			b.handleHistory(w, r)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /conversations/rename", b.handleRename)
	mux.HandleFunc("DELETE /conversations/{id}", b.handleDelete)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// FailWith makes every request whose path starts with prefix return the
// given status. A zero status clears the injection.
func (b *Backend) FailWith(prefix string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, prefix)
		return
	}
	b.failures[prefix] = status
}

// Seed adds a conversation directly to the store and returns its id.
func (b *Backend) Seed(userID, title string, messages ...StoredMessage) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	now := time.Now().UTC()
	b.conversations[id] = &StoredConversation{
		ID: id, UserID: userID, Title: title,
		CreatedAt: now, UpdatedAt: now,
		Messages: messages,
	}
	return id
}

// Conversation returns a copy of the stored conversation, or nil.
func (b *Backend) Conversation(id string) *StoredConversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conversations[id]
	if !ok {
		return nil
	}
	cp := *c
	cp.Messages = append([]StoredMessage(nil), c.Messages...)
	return &cp
}

// GenerateRequests returns the recorded query parameters of every
// /generate/gen_content call.
func (b *Backend) GenerateRequests() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.generateRequests...)
}

// WebRequests returns the recorded query parameters of every
// /web/search call.
func (b *Backend) WebRequests() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.webRequests...)
}

func (b *Backend) newID() string {
	b.nextID++
	return fmt.Sprintf("conv-%04d", b.nextID)
}

// failed handles failure injection; returns true when the request was
// already answered.
func (b *Backend) failed(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for prefix, status := range b.failures {
		if strings.HasPrefix(r.URL.Path, prefix) {
			http.Error(w, http.StatusText(status), status)
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	b.mu.Lock()
	resp := b.RetrievalResponse
	b.mu.Unlock()
	writeJSON(w, map[string]string{"response": resp})
}

func (b *Backend) handleDepth(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	b.mu.Lock()
	depth := b.Depth
	b.mu.Unlock()
	// The real endpoint returns a bare JSON string.
	writeJSON(w, depth)
}

func (b *Backend) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	b.mu.Lock()
	b.webRequests = append(b.webRequests, r.URL.Query())
	resp := b.WebResponse
	b.mu.Unlock()
	writeJSON(w, map[string]string{"response": resp})
}

func (b *Backend) handleFileRead(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	b.mu.Lock()
	content, scripted := b.FileContents[header.Filename]
	b.mu.Unlock()
	if !scripted {
		// Default: echo the uploaded bytes.
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		content = string(data)
	}
	writeJSON(w, map[string]string{
		"file_name": header.Filename,
		"content":   content,
	})
}

func (b *Backend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	q := r.URL.Query()

	b.mu.Lock()
	b.generateRequests = append(b.generateRequests, q)
	content := b.GenerateContent
	// Record the turn in the conversation's history when one is named.
	if id := q.Get("conversation_id"); id != "" {
		if c, ok := b.conversations[id]; ok {
			now := time.Now().UTC()
			c.Messages = append(c.Messages,
				StoredMessage{Role: "user", Content: q.Get("prompt"), Timestamp: now},
				StoredMessage{Role: "assistant", Content: content, Timestamp: now},
			)
			c.UpdatedAt = now
		}
	}
	b.mu.Unlock()

	writeJSON(w, map[string]string{"content": content})
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	var in struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.UserID == "" {
		http.Error(w, "user_id required", http.StatusUnprocessableEntity)
		return
	}

	b.mu.Lock()
	id := b.newID()
	now := time.Now().UTC()
	b.conversations[id] = &StoredConversation{
		ID: id, UserID: in.UserID, CreatedAt: now, UpdatedAt: now,
	}
	b.mu.Unlock()

	writeJSON(w, map[string]string{"conversation_id": id})
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	userID := r.PathValue("userID")

	b.mu.Lock()
	list := make([]map[string]any, 0)
	for _, c := range b.conversations {
		if c.UserID != userID {
			continue
		}
		entry := map[string]any{
			"conversation_id": c.ID,
			"user_id":         c.UserID,
			"created_at":      c.CreatedAt,
			"updated_at":      c.UpdatedAt,
		}
		if c.Title != "" {
			entry["title"] = c.Title
		}
		if len(c.Messages) > 0 {
			entry["preview"] = c.Messages[0].Content
		}
		list = append(list, entry)
	}
	b.mu.Unlock()

	writeJSON(w, map[string]any{"conversations": list})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	id := r.PathValue("id")

	b.mu.Lock()
	c, ok := b.conversations[id]
	if !ok {
		b.mu.Unlock()
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	messages := append([]StoredMessage(nil), c.Messages...)
	b.mu.Unlock()

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit < len(messages) {
			messages = messages[len(messages)-limit:]
		}
	}
	writeJSON(w, map[string]any{"messages": messages})
}

func (b *Backend) handleRename(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	var in struct {
		ConversationID string `json:"conversation_id"`
		Title          string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusUnprocessableEntity)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conversations[in.ConversationID]
	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	c.Title = in.Title
	c.UpdatedAt = time.Now().UTC()
	writeJSON(w, map[string]bool{"success": true})
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, r) {
		return
	}
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conversations[id]; !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	delete(b.conversations, id)
	writeJSON(w, map[string]bool{"success": true})
}
