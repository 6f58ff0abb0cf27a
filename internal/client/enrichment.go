package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Depth is the coarse classification of how much external web context a
// question warrants.
type Depth string

// Recognized search depths. Anything else is treated as DepthLow.
const (
	DepthLow    Depth = "low"
	DepthMedium Depth = "medium"
	DepthHigh   Depth = "high"
)

// ResultCount maps a depth to the number of web results to request.
// This mapping is fixed policy, not tunable configuration.
func (d Depth) ResultCount() int {
	switch d {
	case DepthHigh:
		return 5
	case DepthMedium:
		return 2
	default:
		return 1
	}
}

// File identifies a local file attached to a turn.
type File struct {
	Name string // display name sent to the backend
	Path string // local filesystem path
}

// FileContent is the extracted text of one attached file.
type FileContent struct {
	Name    string `json:"file_name"`
	Content string `json:"content"`
}

// GenerateParams are the inputs to the terminal generation call.
type GenerateParams struct {
	Prompt      string
	RAGContext  string
	FileContext string

	// WebContext is nil when web search was disabled for the turn.
	// The backend distinguishes "disabled" (parameter absent) from
	// "searched and found nothing" (empty string).
	WebContext *string

	ConversationID string
}

// QueryRetrieval fetches retrieval-augmentation context for a question.
// Best-effort: any failure yields empty text, never an error. Retrieval
// context is optional for a reply.
func (c *Client) QueryRetrieval(ctx context.Context, question string) string {
	params := url.Values{"question": {question}}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.getJSON(ctx, "/rag/query", params, &out); err != nil {
		c.logger.Debug("retrieval query failed", "error", err)
		return ""
	}
	return out.Response
}

// ClassifyDepth asks the backend how much web context a question warrants.
// Best-effort: failures and unrecognized answers yield DepthLow.
func (c *Client) ClassifyDepth(ctx context.Context, question string) Depth {
	params := url.Values{"question": {question}}
	body, err := c.withRetry(ctx, func() ([]byte, error) {
		return c.get(ctx, "/generate/inDepth_context", params)
	})
	if err != nil {
		c.logger.Debug("depth classification failed", "error", err)
		return DepthLow
	}

	// The endpoint returns a bare JSON string ("high"). Tolerate an
	// unquoted plain-text body as well.
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		s = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}

	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthHigh:
		return DepthHigh
	case DepthMedium:
		return DepthMedium
	default:
		return DepthLow
	}
}

// WebSearch fetches web-search context for a question.
// Best-effort: any failure yields empty text, never an error.
func (c *Client) WebSearch(ctx context.Context, question string, resultCount int) string {
	params := url.Values{
		"question":     {question},
		"result_count": {strconv.Itoa(resultCount)},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.getJSON(ctx, "/web/search", params, &out); err != nil {
		c.logger.Debug("web search failed", "error", err)
		return ""
	}
	return out.Response
}

// ExtractFile uploads one attached file and returns its extracted text.
// NOT best-effort: errors propagate so the caller can abort the turn.
func (c *Client) ExtractFile(ctx context.Context, f File) (FileContent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return FileContent{}, fmt.Errorf("%w: rate limit wait: %w", ErrFileExtraction, err)
	}

	src, err := os.Open(f.Path)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: opening %s: %w", ErrFileExtraction, f.Name, err)
	}
	defer func() { _ = src.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: building form for %s: %w", ErrFileExtraction, f.Name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return FileContent{}, fmt.Errorf("%w: reading %s: %w", ErrFileExtraction, f.Name, err)
	}
	if err := mw.Close(); err != nil {
		return FileContent{}, fmt.Errorf("%w: finalizing form for %s: %w", ErrFileExtraction, f.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/read", &buf)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: building request for %s: %w", ErrFileExtraction, f.Name, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return FileContent{}, fmt.Errorf("%w: %s: %w", ErrFileExtraction, f.Name, err)
	}

	var out FileContent
	if err := json.Unmarshal(body, &out); err != nil {
		return FileContent{}, fmt.Errorf("%w: decoding response for %s: %w", ErrFileExtraction, f.Name, err)
	}
	return out, nil
}

// Generate issues the terminal generation call. Its failure is never
// absorbed; it surfaces as a turn-level failure.
//
// The web_response parameter is omitted entirely when p.WebContext is
// nil so the backend can tell "web search disabled" apart from
// "searched and found nothing".
func (c *Client) Generate(ctx context.Context, p GenerateParams) (string, error) {
	params := url.Values{
		"prompt":        {p.Prompt},
		"rag_response":  {p.RAGContext},
		"file_response": {p.FileContext},
	}
	if p.WebContext != nil {
		params.Set("web_response", *p.WebContext)
	}
	if p.ConversationID != "" {
		params.Set("conversation_id", p.ConversationID)
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := c.getJSON(ctx, "/generate/gen_content", params, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return out.Content, nil
}
