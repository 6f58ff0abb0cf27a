package client

import "errors"

// Sentinel errors for backend operations.
// Checked by callers with errors.Is().
var (
	// ErrFileExtraction indicates a file-content read failed.
	// File content is user-intended; its silent loss would corrupt the
	// answer, so this aborts the whole turn.
	ErrFileExtraction = errors.New("file extraction failed")

	// ErrGeneration indicates the terminal generation call failed.
	ErrGeneration = errors.New("generation failed")

	// ErrConversationNotFound indicates the conversation does not exist
	// on the backend.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrRenameRejected indicates the backend refused a rename
	// (success=false without an HTTP error).
	ErrRenameRejected = errors.New("rename rejected")

	// ErrDeleteRejected indicates the backend refused a delete
	// (success=false without an HTTP error).
	ErrDeleteRejected = errors.New("delete rejected")
)
