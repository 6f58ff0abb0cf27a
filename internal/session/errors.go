package session

import "errors"

// FallbackReply is appended as a visible bot message when the terminal
// generation call fails, so the thread shows the attempt was made.
const FallbackReply = "Sorry, something went wrong."

// Sentinel errors for session operations.
// These are part of the Manager's public API; check with errors.Is().
var (
	// ErrEmptyInput indicates the trimmed user input was empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrNotLoaded indicates Send was called before the initial
	// conversation listing settled. Sending before the list settles
	// could race an implicit conversation creation against a
	// concurrently loading list.
	ErrNotLoaded = errors.New("conversation list not yet settled")

	// ErrSendInFlight indicates another send is outstanding for this
	// session. Sends are rejected, not queued.
	ErrSendInFlight = errors.New("send already in flight")

	// ErrCreateConversation indicates the implicit or explicit
	// conversation creation failed; the turn is abandoned.
	ErrCreateConversation = errors.New("conversation creation failed")
)
