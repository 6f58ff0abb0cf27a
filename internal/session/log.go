package session

import "sync"

// MessageLog is the append-only ordered message sequence for the active
// conversation. During a turn it only grows via Append; switching
// conversations fully replaces it via Replace (never merges).
//
// The zero value is NOT useful - use NewMessageLog() to create instances.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMessageLog creates an empty MessageLog.
func NewMessageLog() *MessageLog {
	return &MessageLog{
		messages: make([]Message, 0),
	}
}

// Append adds messages in order at the end of the log.
func (l *MessageLog) Append(messages ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, messages...)
}

// Replace swaps the entire log content.
// Makes a defensive copy to prevent external modification.
func (l *MessageLog) Replace(messages []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = make([]Message, len(messages))
	copy(l.messages, messages)
}

// Messages returns a copy of all messages for thread-safe access.
func (l *MessageLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]Message, len(l.messages))
	copy(result, l.messages)
	return result
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Clear removes all messages.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = make([]Message, 0)
}
