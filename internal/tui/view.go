package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/ragpilot/ragpilot/internal/session"
)

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable message history.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	// Viewport (scrollable message area)
	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Input prompt - always show and always accept input
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport content from the
// message log and presentation state. Called when the log, the reveal,
// or the state changes.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	for _, msg := range m.manager.Log().Messages() {
		switch msg.Sender {
		case session.SenderUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
			if note := attachmentNote(msg); note != "" {
				_, _ = b.WriteString("\n")
				_, _ = b.WriteString(m.styles.System.Render(note))
			}
		case session.SenderBot:
			_, _ = b.WriteString(m.styles.Assistant.Render("Pilot> "))
			_, _ = b.WriteString(m.renderBotMessage(msg))
		}
		_, _ = b.WriteString("\n\n")
	}

	// Thinking indicator while the turn is in flight
	if m.state == StateGenerating {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Thinking...\n\n")
	}

	// Transient status line
	if m.notice != "" {
		if m.noticeIsError {
			_, _ = b.WriteString(m.styles.Error.Render(m.notice))
		} else {
			_, _ = b.WriteString(m.styles.System.Render(m.notice))
		}
		_, _ = b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// renderBotMessage shows the revealed prefix for the message currently
// being presented (raw text: partial markdown renders badly) and full
// markdown for everything else. A stopped reveal keeps showing its
// frozen prefix.
func (m *Model) renderBotMessage(msg session.Message) string {
	if msg.ID == m.presentedID {
		switch m.presenter.State() {
		case PresenterTyping, PresenterStopped:
			return m.presenter.Visible()
		}
	}
	return m.markdown.Render(msg.Content)
}

// attachmentNote summarizes a user message's attachments.
func attachmentNote(msg session.Message) string {
	if len(msg.Attachments) == 0 {
		return ""
	}
	names := make([]string, len(msg.Attachments))
	for i, a := range msg.Attachments {
		names[i] = a.Name
	}
	return "  (attached: " + strings.Join(names, ", ") + ")"
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80 // Default width
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateInput:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.History,
			m.keys.Cancel, m.keys.Quit, m.keys.ScrollUp,
		}
	case StateGenerating, StateTyping:
		bindings = []key.Binding{
			m.keys.EscStop, m.keys.Cancel,
			m.keys.ScrollUp, m.keys.ScrollDown,
		}
	}
	return m.help.ShortHelpView(bindings)
}
