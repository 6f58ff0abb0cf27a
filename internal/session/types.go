// Package session owns the conversation session state for one client
// session: the active conversation, the authoritative conversation list,
// the in-memory message log, and the serialization of turns.
//
// Thread safety: Manager and MessageLog synchronize internally; callers
// may invoke them from any goroutine (the TUI runs operations in
// background commands).
package session

import (
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ragpilot/ragpilot/internal/client"
)

// Sender identifies who produced a message.
type Sender string

// Message senders.
const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// AttachmentRef is display metadata for a file attached to a message.
// The file bytes themselves belong to the enrichment call that consumed
// them; the log never owns them.
type AttachmentRef struct {
	ID       string
	Name     string
	Size     int64
	MIMEType string
}

// Message is one entry in a conversation. Immutable once appended.
// Ordering within a conversation is append order; Timestamp is
// informational only (two messages may share a millisecond).
type Message struct {
	ID          uuid.UUID
	Content     string
	Sender      Sender
	Timestamp   time.Time
	Attachments []AttachmentRef
}

// NewUserMessage builds a user message with attachment metadata.
func NewUserMessage(content string, attachments []AttachmentRef) Message {
	return Message{
		ID:          uuid.New(),
		Content:     content,
		Sender:      SenderUser,
		Timestamp:   time.Now(),
		Attachments: attachments,
	}
}

// NewBotMessage builds a bot message.
func NewBotMessage(content string) Message {
	return Message{
		ID:        uuid.New(),
		Content:   content,
		Sender:    SenderBot,
		Timestamp: time.Now(),
	}
}

// FromHistory converts stored backend history into log messages.
// The backend's user/assistant roles map to user/bot senders; entries
// with unknown roles are dropped.
func FromHistory(entries []client.HistoryMessage) []Message {
	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		var sender Sender
		switch e.Role {
		case client.RoleUser:
			sender = SenderUser
		case client.RoleAssistant:
			sender = SenderBot
		default:
			continue
		}
		messages = append(messages, Message{
			ID:        uuid.New(),
			Content:   e.Content,
			Sender:    sender,
			Timestamp: e.Timestamp,
		})
	}
	return messages
}

// AttachmentRefs builds display metadata for the files attached to a turn.
// Sizes come from the sizes slice when provided (index-aligned with files).
func AttachmentRefs(files []client.File, sizes []int64) []AttachmentRef {
	if len(files) == 0 {
		return nil
	}
	refs := make([]AttachmentRef, len(files))
	for i, f := range files {
		var size int64
		if i < len(sizes) {
			size = sizes[i]
		}
		refs[i] = AttachmentRef{
			ID:       uuid.NewString(),
			Name:     f.Name,
			Size:     size,
			MIMEType: mime.TypeByExtension(filepath.Ext(f.Name)),
		}
	}
	return refs
}
