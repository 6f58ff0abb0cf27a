package tui

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/session"
)

// Messages delivered back into the Bubble Tea loop by commands.
type (
	conversationsLoadedMsg struct{ err error }

	// sendResultMsg carries the submitted input and attachments along
	// with the outcome so an aborted turn can hand them back for retry.
	sendResultMsg struct {
		input string
		files []client.File
		bot   session.Message
		err   error
	}

	typingTickMsg struct{}

	// noticeMsg surfaces the outcome of a conversation management
	// operation (create, switch, rename, delete) as a system line.
	noticeMsg struct {
		text string
		err  error
	}
)

// loadConversations fetches the conversation list and, on first
// success, restores the persisted active conversation if the backend
// still knows it.
func (m *Model) loadConversations() tea.Cmd {
	ctx := m.ctx
	mgr := m.manager
	return func() tea.Msg {
		list, err := mgr.LoadConversations(ctx)
		if err != nil {
			return conversationsLoadedMsg{err: err}
		}

		if id, err := session.LoadCurrentConversationID(); err == nil && id != "" {
			for _, c := range list {
				if c.ID != id {
					continue
				}
				if err := mgr.Select(ctx, id); err != nil {
					return conversationsLoadedMsg{err: fmt.Errorf("restoring conversation: %w", err)}
				}
				break
			}
		}
		return conversationsLoadedMsg{}
	}
}

// startSend runs one turn in the background. The files attached via
// /attach ride along; if the turn aborts before anything is appended,
// handleSendResult puts them back.
func (m *Model) startSend(input string) tea.Cmd {
	ctx, cancel := context.WithTimeout(m.ctx, sendTimeout)
	m.sendCancel = cancel

	files := m.pendingFiles
	m.pendingFiles = nil
	webSearch := m.webSearch
	mgr := m.manager

	return func() tea.Msg {
		defer cancel()
		bot, err := mgr.Send(ctx, input, files, webSearch)
		return sendResultMsg{input: input, files: files, bot: bot, err: err}
	}
}

// typingTick schedules the next reveal step.
func typingTick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return typingTickMsg{}
	})
}

func (m *Model) createConversation() tea.Cmd {
	ctx := m.ctx
	mgr := m.manager
	return func() tea.Msg {
		id, err := mgr.Create(ctx)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Started conversation " + shortID(id)}
	}
}

func (m *Model) selectConversation(conv client.Conversation) tea.Cmd {
	ctx := m.ctx
	mgr := m.manager
	return func() tea.Msg {
		if err := mgr.Select(ctx, conv.ID); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Switched to " + conversationLabel(conv)}
	}
}

func (m *Model) renameConversation(title string) tea.Cmd {
	ctx := m.ctx
	mgr := m.manager
	id := mgr.ActiveConversationID()
	return func() tea.Msg {
		if id == "" {
			return noticeMsg{err: session.ErrNotLoaded}
		}
		if err := mgr.Rename(ctx, id, title); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Renamed conversation to " + title}
	}
}

func (m *Model) deleteActiveConversation() tea.Cmd {
	ctx := m.ctx
	mgr := m.manager
	id := mgr.ActiveConversationID()
	return func() tea.Msg {
		if id == "" {
			return noticeMsg{text: "No active conversation to delete"}
		}
		if err := mgr.Delete(ctx, id); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Deleted conversation " + shortID(id)}
	}
}

// shortID abbreviates a conversation id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// conversationLabel prefers the title, falling back to the short id.
func conversationLabel(conv client.Conversation) string {
	if conv.Title != "" {
		return conv.Title
	}
	return shortID(conv.ID)
}
