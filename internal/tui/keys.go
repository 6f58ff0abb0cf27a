package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/ragpilot/ragpilot/internal/client"
)

// Slash command constants.
const (
	cmdHelp   = "/help"
	cmdNew    = "/new"
	cmdList   = "/list"
	cmdSwitch = "/switch"
	cmdRename = "/rename"
	cmdDelete = "/delete"
	cmdAttach = "/attach"
	cmdWeb    = "/web"
	cmdExit   = "/exit"
	cmdQuit   = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscStop    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscStop:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			cmd := m.cleanup()
			return m, cmd
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		if m.state == StateInput {
			// Enter without Shift = submit
			// Shift+Enter = newline (pass through to textarea)
			if k.Mod&tea.ModShift == 0 {
				return m.handleSubmit()
			}
		}

	case tea.KeyUp:
		// Up at first line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		// Down at last line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyEscape:
		switch m.state {
		case StateTyping:
			// Freeze the revealed prefix; the full reply stays in the log.
			m.presenter.Stop()
			m.state = StateInput
			m.rebuildViewportContent()
			return m, m.input.Focus()
		case StateGenerating:
			m.cancelSend()
			return m, nil
		}

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Pass keys to textarea for typing - ALWAYS allow typing even while
	// a reply is generating or revealing, so the next message can be
	// prepared early.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		cmd := m.cleanup()
		return m, cmd
	}
	m.lastCtrlC = now

	switch m.state {
	case StateInput:
		m.input.Reset()
		return m, nil

	case StateGenerating:
		m.cancelSend()
		return m, nil

	case StateTyping:
		m.presenter.Stop()
		m.state = StateInput
		m.rebuildViewportContent()
		return m, m.input.Focus()
	}

	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	if !m.manager.Loaded() {
		m.setNotice("Conversations are still loading, one moment...", false)
		m.rebuildViewportContent()
		return m, nil
	}

	// Add to history (enforce maxHistory cap)
	m.history = append(m.history, query)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	m.input.Reset()
	m.notice = ""
	m.state = StateGenerating

	cmd := m.startSend(query)
	m.rebuildViewportContent()
	m.viewport.GotoBottom()

	return m, tea.Batch(m.spinner.Tick, cmd)
}

//nolint:gocyclo // One case per slash command
func (m *Model) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	m.input.Reset()

	switch name {
	case cmdHelp:
		m.setNotice(helpText, false)

	case cmdNew:
		m.rebuildViewportContent()
		return m, m.createConversation()

	case cmdList:
		m.setNotice(m.renderConversationList(), false)

	case cmdSwitch:
		conv, err := m.conversationByIndex(arg)
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		m.rebuildViewportContent()
		return m, m.selectConversation(conv)

	case cmdRename:
		if arg == "" {
			m.setNotice("Usage: /rename <new title>", true)
			break
		}
		m.rebuildViewportContent()
		return m, m.renameConversation(arg)

	case cmdDelete:
		m.rebuildViewportContent()
		return m, m.deleteActiveConversation()

	case cmdAttach:
		m.attachFile(arg)

	case cmdWeb:
		m.webSearch = !m.webSearch
		if m.webSearch {
			m.setNotice("Web search enabled", false)
		} else {
			m.setNotice("Web search disabled", false)
		}

	case cmdExit, cmdQuit:
		cleanupCmd := m.cleanup()
		return m, cleanupCmd

	default:
		m.setNotice("Unknown command: "+name, true)
	}

	m.rebuildViewportContent()
	return m, nil
}

const helpText = "Commands: /new, /list, /switch N, /rename <title>, /delete, /attach <path>, /web, /exit\n" +
	"Shortcuts: Enter send, Shift+Enter newline, Esc stop reveal, Ctrl+C cancel, Ctrl+D exit, Up/Down history, PgUp/PgDn scroll"

// renderConversationList formats the known conversations with 1-based
// indices for /switch.
func (m *Model) renderConversationList() string {
	conversations := m.manager.Conversations()
	if len(conversations) == 0 {
		return "No conversations yet. Send a message or use /new to start one."
	}

	var b strings.Builder
	b.WriteString("Conversations:\n")
	active := m.manager.ActiveConversationID()
	for i, c := range conversations {
		marker := "  "
		if c.ID == active {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%d. %s\n", marker, i+1, conversationLabel(c))
	}
	b.WriteString("Use /switch N to open one.")
	return b.String()
}

func (m *Model) conversationByIndex(arg string) (client.Conversation, error) {
	conversations := m.manager.Conversations()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > len(conversations) {
		return client.Conversation{}, fmt.Errorf("usage: /switch N (1-%d, see /list)", len(conversations))
	}
	return conversations[idx-1], nil
}

// attachFile stages a file for the next turn after checking it exists.
func (m *Model) attachFile(path string) {
	if path == "" {
		m.setNotice("Usage: /attach <path>", true)
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		m.setNotice("Cannot attach: "+err.Error(), true)
		return
	}
	if info.IsDir() {
		m.setNotice("Cannot attach a directory: "+path, true)
		return
	}
	m.pendingFiles = append(m.pendingFiles, client.File{
		Name: filepath.Base(path),
		Path: path,
	})
	m.setNotice(fmt.Sprintf("Attached %s (%d file(s) pending)", filepath.Base(path), len(m.pendingFiles)), false)
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta

	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		m.input.CursorEnd()
	}

	return m, nil
}

func (m *Model) cancelSend() {
	if m.sendCancel != nil {
		m.sendCancel()
		m.sendCancel = nil
	}
}

// cleanup cancels any in-flight turn and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	// Cancel main context first - this covers every background command.
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}

	m.cancelSend()

	return tea.Quit
}
