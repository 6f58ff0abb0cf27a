package tui

import (
	"context"
	"errors"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/session"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateGenerating {
			m.rebuildViewportContent()
		}
		return m, cmd

	case conversationsLoadedMsg:
		if msg.err != nil {
			m.setNotice("Could not load conversations: "+msg.err.Error(), true)
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, nil

	case sendResultMsg:
		return m.handleSendResult(msg)

	case typingTickMsg:
		if m.state != StateTyping {
			return m, nil
		}
		more := m.presenter.Tick()
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		if more {
			return m, typingTick(m.typingInterval)
		}
		m.state = StateInput
		return m, m.input.Focus()

	case noticeMsg:
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
		} else {
			m.setNotice(msg.text, false)
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSendResult finishes a turn: the reply (or the fallback reply on
// generation failure) starts revealing; aborted turns return to input
// with an error notice and the submission restored for retry.
func (m *Model) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	m.sendCancel = nil

	if msg.err != nil {
		// Context sentinels first: a canceled generate wraps
		// ErrGeneration too, but nothing was appended for it.
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.setNotice("(Canceled)", false)
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.setNotice("Request timed out. Try a simpler question.", true)
		case errors.Is(msg.err, client.ErrGeneration):
			// The fallback reply is already in the log; reveal it like
			// any other reply.
			m.setNotice("Generation failed: "+msg.err.Error(), true)
			return m.presentReply(msg.bot)
		case errors.Is(msg.err, client.ErrFileExtraction):
			m.setNotice("Could not read an attached file: "+msg.err.Error(), true)
		case errors.Is(msg.err, session.ErrCreateConversation):
			m.setNotice("Could not start a conversation: "+msg.err.Error(), true)
		default:
			m.setNotice(msg.err.Error(), true)
		}
		m.restoreSubmission(msg)
		m.state = StateInput
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	return m.presentReply(msg.bot)
}

// restoreSubmission puts an aborted turn's input and attachments back.
// Text typed while the turn was running is kept over the old input;
// attachments staged since go behind the restored ones.
func (m *Model) restoreSubmission(msg sendResultMsg) {
	if strings.TrimSpace(m.input.Value()) == "" {
		m.input.SetValue(msg.input)
		m.input.CursorEnd()
	}
	if len(msg.files) > 0 {
		m.pendingFiles = append(msg.files, m.pendingFiles...)
	}
}

// presentReply binds the presenter to a bot message and starts the
// reveal ticks.
func (m *Model) presentReply(bot session.Message) (tea.Model, tea.Cmd) {
	m.presenter.Present(bot.Content)
	m.presentedID = bot.ID
	m.state = StateTyping
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	if !m.presenter.Revealing() {
		// Empty reply: nothing to animate.
		m.state = StateInput
		return m, m.input.Focus()
	}
	return m, typingTick(m.typingInterval)
}

func (m *Model) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeIsError = isError
}
