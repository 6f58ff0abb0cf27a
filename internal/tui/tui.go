// Package tui provides the Bubble Tea terminal interface for RagPilot.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/session"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput      State = iota // Awaiting user input
	StateGenerating              // Turn submitted, waiting for the reply
	StateTyping                  // Revealing the reply rune by rune
)

// Memory bound for command history entries.
const maxHistory = 100

// sendTimeout bounds a single turn end to end.
const sendTimeout = 5 * time.Minute

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Model is the Bubble Tea model for the RagPilot terminal interface.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Reply presentation
	presenter   *Presenter
	presentedID uuid.UUID // Log id of the message the presenter is revealing
	spinner     spinner.Model
	viewBuf     strings.Builder // Reusable buffer for View() to reduce allocations

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Turn management
	sendCancel   context.CancelFunc
	pendingFiles []client.File
	webSearch    bool

	// Transient status line (op outcomes, soft failures)
	notice        string
	noticeIsError bool

	// Dependencies
	manager   *session.Manager
	ctx       context.Context
	ctxCancel context.CancelFunc // For canceling all operations on exit

	typingInterval time.Duration

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// Options configures TUI behavior.
type Options struct {
	TypingInterval   time.Duration
	WebSearchEnabled bool
}

// New creates a Model bound to a session manager.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, manager *session.Manager, opts Options) (*Model, error) {
	if manager == nil {
		return nil, errors.New("tui.New: manager is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if opts.TypingInterval <= 0 {
		opts.TypingInterval = 20 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Disable built-in keyboard handling; keys are routed explicitly in
	// handleKey to avoid conflicts with textarea/history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()

	return &Model{
		manager:        manager,
		ctx:            ctx,
		ctxCancel:      cancel,
		input:          ta,
		spinner:        sp,
		viewport:       vp,
		help:           h,
		keys:           newKeyMap(),
		styles:         DefaultStyles(),
		presenter:      NewPresenter(),
		history:        make([]string, 0, maxHistory),
		webSearch:      opts.WebSearchEnabled,
		typingInterval: opts.TypingInterval,
		markdown:       newMarkdownRenderer(80),
		width:          80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model. The conversation listing starts
// immediately; sends stay rejected until it settles.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(),
		m.loadConversations(),
	)
}
