package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ragpilot/ragpilot/internal/client"
	"github.com/ragpilot/ragpilot/internal/generate"
	"github.com/ragpilot/ragpilot/internal/log"
)

// Store is the conversation lifecycle surface the manager drives.
// *client.Client satisfies it; tests substitute fakes.
type Store interface {
	CreateConversation(ctx context.Context, userID string) (string, error)
	ListConversations(ctx context.Context, userID string) ([]client.Conversation, error)
	History(ctx context.Context, conversationID string, limit int) ([]client.HistoryMessage, error)
	RenameConversation(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

var _ Store = (*client.Client)(nil)

// Generator produces one enriched reply per turn.
type Generator interface {
	Submit(ctx context.Context, req generate.Request) (generate.Result, error)
}

var _ Generator = (*generate.Orchestrator)(nil)

// Config contains all required parameters for the session Manager.
type Config struct {
	Store     Store
	Generator Generator
	Logger    log.Logger

	// UserID scopes every store call to a tenant.
	UserID string

	// HistoryLimit bounds how many messages a history reload fetches.
	HistoryLimit int

	// PersistState mirrors the active conversation id to
	// ~/.ragpilot/current_conversation across runs. Tests leave it off.
	PersistState bool
}

// Manager owns the session state: the active conversation id, the
// conversation list, the settled/in-flight flags, and the MessageLog.
//
// Two invariants are enforced here, not in the orchestrator:
//   - at most one generation request is in flight per session; a second
//     Send is rejected, not queued
//   - no conversation is implicitly created by a send until the initial
//     listing has settled
type Manager struct {
	store     Store
	generator Generator
	logger    log.Logger

	userID       string
	historyLimit int
	persist      bool

	messages *MessageLog

	mu            sync.Mutex
	activeID      string
	conversations []client.Conversation
	loaded        bool
	sendInFlight  bool
	refreshSeq    uint64
	appliedSeq    uint64
}

// NewManager creates a session Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("session.NewManager: store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("session.NewManager: generator is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("session.NewManager: logger is required")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("session.NewManager: user ID is required")
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 100
	}

	return &Manager{
		store:        cfg.Store,
		generator:    cfg.Generator,
		logger:       cfg.Logger,
		userID:       cfg.UserID,
		historyLimit: historyLimit,
		persist:      cfg.PersistState,
		messages:     NewMessageLog(),
	}, nil
}

// Log exposes the message log for read-only observation by the UI.
func (m *Manager) Log() *MessageLog {
	return m.messages
}

// UserID returns the tenant this session is scoped to.
func (m *Manager) UserID() string {
	return m.userID
}

// ActiveConversationID returns the active conversation id, or "" when
// no conversation is active.
func (m *Manager) ActiveConversationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Loaded reports whether the initial conversation listing has settled.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// SendInFlight reports whether a generation request is outstanding.
func (m *Manager) SendInFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendInFlight
}

// Conversations returns a snapshot of the conversation list.
func (m *Manager) Conversations() []client.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]client.Conversation, len(m.conversations))
	copy(result, m.conversations)
	return result
}

// LoadConversations fetches the user's conversation list. The settled
// flag flips true whether the listing succeeded or failed, so Send can
// safely create conversations afterwards either way.
func (m *Manager) LoadConversations(ctx context.Context) ([]client.Conversation, error) {
	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	return m.Conversations(), nil
}

// refresh re-fetches the conversation list. Refreshes from overlapping
// mutating operations may interleave; responses older than the
// last-applied one are discarded so the displayed list converges.
func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	m.refreshSeq++
	seq := m.refreshSeq
	m.mu.Unlock()

	list, err := m.store.ListConversations(ctx, m.userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true // the listing settled, success or not
	if err != nil {
		return fmt.Errorf("loading conversations: %w", err)
	}
	if seq <= m.appliedSeq {
		m.logger.Debug("discarding stale conversation list",
			"seq", seq, "applied", m.appliedSeq)
		return nil
	}
	m.appliedSeq = seq
	m.conversations = list
	return nil
}

// Select makes a conversation active and reloads its history, replacing
// the message log wholesale. While a send is in flight the reload is
// skipped: the in-progress turn is authoritative over freshly fetched
// server state until it completes.
func (m *Manager) Select(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	m.activeID = conversationID
	inFlight := m.sendInFlight
	m.mu.Unlock()

	m.persistActive(conversationID)

	if inFlight {
		m.logger.Debug("send in flight, skipping history reload",
			"conversation_id", conversationID)
		return nil
	}

	entries, err := m.store.History(ctx, conversationID, m.historyLimit)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// The selection may have moved on while the history was loading.
	if m.activeID != conversationID || m.sendInFlight {
		return nil
	}
	m.messages.Replace(FromHistory(entries))
	return nil
}

// Create makes a fresh conversation active with an empty message log
// and refreshes the conversation list.
func (m *Manager) Create(ctx context.Context) (string, error) {
	id, err := m.store.CreateConversation(ctx, m.userID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCreateConversation, err)
	}

	m.mu.Lock()
	m.activeID = id
	m.mu.Unlock()

	m.messages.Clear()
	m.persistActive(id)

	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("refreshing conversation list after create", "error", err)
	}
	return id, nil
}

// Rename sets a conversation's title and refreshes the list.
func (m *Manager) Rename(ctx context.Context, conversationID, title string) error {
	if err := m.store.RenameConversation(ctx, conversationID, title); err != nil {
		return err
	}
	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("refreshing conversation list after rename", "error", err)
	}
	return nil
}

// Delete removes a conversation. Deleting the active conversation
// clears the active id and the message log without creating a
// replacement.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	if err := m.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	m.mu.Lock()
	wasActive := m.activeID == conversationID
	if wasActive {
		m.activeID = ""
	}
	m.mu.Unlock()

	if wasActive {
		m.messages.Clear()
		m.clearPersisted()
	}

	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("refreshing conversation list after delete", "error", err)
	}
	return nil
}

// Send runs one turn: it validates, creates a conversation if none is
// active, drives the orchestrator, and appends the outcome to the log.
//
// Messages are appended only after every hard-abort step succeeded: a
// file-extraction or conversation-creation failure, a canceled context
// and a deadline all leave the log untouched so the caller can restore
// the input for retry. A generation
// failure appends the user message plus the FallbackReply bot message
// (the thread shows the attempt) and still returns the error.
func (m *Manager) Send(ctx context.Context, input string, files []client.File, webSearchEnabled bool) (Message, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Message{}, ErrEmptyInput
	}

	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return Message{}, ErrNotLoaded
	}
	if m.sendInFlight {
		m.mu.Unlock()
		return Message{}, ErrSendInFlight
	}
	m.sendInFlight = true
	conversationID := m.activeID
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.sendInFlight = false
		m.mu.Unlock()
	}()

	if conversationID == "" {
		// Safe: the listing has settled (checked above), so this cannot
		// race a concurrently loading list into a ghost conversation.
		id, err := m.Create(ctx)
		if err != nil {
			return Message{}, err
		}
		conversationID = id
	}

	userMsg := NewUserMessage(trimmed, AttachmentRefs(files, statSizes(files)))

	res, err := m.generator.Submit(ctx, generate.Request{
		Input:            trimmed,
		Files:            files,
		WebSearchEnabled: webSearchEnabled,
		ConversationID:   conversationID,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// A canceled or timed-out turn is not a failed reply: nothing
			// is appended and the input can be retried.
			return Message{}, err
		}
		if errors.Is(err, client.ErrGeneration) {
			botMsg := NewBotMessage(FallbackReply)
			m.messages.Append(userMsg, botMsg)
			m.logger.Error("generation failed", "conversation_id", conversationID, "error", err)
			if rerr := m.refresh(ctx); rerr != nil {
				m.logger.Warn("refreshing conversation list after failed turn", "error", rerr)
			}
			return botMsg, err
		}
		// Hard abort before generation: nothing is appended.
		return Message{}, err
	}

	botMsg := NewBotMessage(res.Content)
	m.messages.Append(userMsg, botMsg)

	// Titles and previews may change server-side after a turn.
	if rerr := m.refresh(ctx); rerr != nil {
		m.logger.Warn("refreshing conversation list after turn", "error", rerr)
	}
	return botMsg, nil
}

// statSizes collects attachment sizes for display metadata, best-effort.
func statSizes(files []client.File) []int64 {
	if len(files) == 0 {
		return nil
	}
	sizes := make([]int64, len(files))
	for i, f := range files {
		if info, err := os.Stat(f.Path); err == nil {
			sizes[i] = info.Size()
		}
	}
	return sizes
}

// persistActive mirrors the active conversation id to disk when enabled.
func (m *Manager) persistActive(conversationID string) {
	if !m.persist {
		return
	}
	if err := SaveCurrentConversationID(conversationID); err != nil {
		m.logger.Warn("persisting active conversation", "error", err)
	}
}

// clearPersisted removes the mirrored active conversation id.
func (m *Manager) clearPersisted() {
	if !m.persist {
		return
	}
	if err := ClearCurrentConversationID(); err != nil {
		m.logger.Warn("clearing persisted conversation", "error", err)
	}
}
