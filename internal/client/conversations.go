package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Conversation is one conversation thread as the backend reports it.
// Title and Preview are server-derived display hints; absence renders a
// placeholder in the UI.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   string    `json:"preview,omitempty"`
}

// Backend history roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryMessage is one stored message in a conversation's history.
type HistoryMessage struct {
	Role      string    `json:"role"` // RoleUser or RoleAssistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateConversation creates a new conversation for userID and returns its id.
func (c *Client) CreateConversation(ctx context.Context, userID string) (string, error) {
	in := map[string]string{"user_id": userID}
	var out struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.postJSON(ctx, "/conversations/create", in, &out); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	if out.ConversationID == "" {
		return "", fmt.Errorf("creating conversation: backend returned empty id")
	}
	return out.ConversationID, nil
}

// ListConversations returns all conversations belonging to userID.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	path := "/conversations/user/" + url.PathEscape(userID)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return out.Conversations, nil
}

// History fetches up to limit stored messages of a conversation, oldest first.
func (c *Client) History(ctx context.Context, conversationID string, limit int) ([]HistoryMessage, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	var out struct {
		Messages []HistoryMessage `json:"messages"`
	}
	path := "/conversations/" + url.PathEscape(conversationID) + "/history"
	if err := c.getJSON(ctx, path, params, &out); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("history for %s: %w", conversationID, ErrConversationNotFound)
		}
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return out.Messages, nil
}

// RenameConversation sets a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	in := map[string]string{
		"conversation_id": conversationID,
		"title":           title,
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.postJSON(ctx, "/conversations/rename", in, &out); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("renaming %s: %w", conversationID, ErrConversationNotFound)
		}
		return fmt.Errorf("renaming conversation: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("renaming %s: %w", conversationID, ErrRenameRejected)
	}
	return nil
}

// DeleteConversation removes a conversation and its history.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	var out struct {
		Success bool `json:"success"`
	}
	path := "/conversations/" + url.PathEscape(conversationID)
	if err := c.deleteJSON(ctx, path, &out); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("deleting %s: %w", conversationID, ErrConversationNotFound)
		}
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("deleting %s: %w", conversationID, ErrDeleteRejected)
	}
	return nil
}

// isNotFound reports whether err carries an HTTP 404 status.
func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
