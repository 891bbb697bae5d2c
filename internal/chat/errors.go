package chat

import "errors"

const (
	errorMessageValidation  = "validation failed"
	errorMessageNotFound    = "not found"
	errorMessagePermission  = "permission denied"
	errorMessageTransientIO = "temporary storage failure"
	errorMessageProtocol    = "malformed request"
)

// The error taxonomy for the chat core. Every error leaving this package
// wraps exactly one of these sentinels, and the wrapped text is safe to
// show to an end user verbatim.
var (
	// ErrValidation indicates a missing, too-short, or otherwise rejected input field.
	ErrValidation = errors.New(errorMessageValidation)
	// ErrNotFound indicates an unknown thread, website, or capability mismatch.
	ErrNotFound = errors.New(errorMessageNotFound)
	// ErrPermission indicates an ownership mismatch or a disabled chat.
	ErrPermission = errors.New(errorMessagePermission)
	// ErrTransientIO indicates a recoverable storage or upload failure.
	ErrTransientIO = errors.New(errorMessageTransientIO)
	// ErrProtocol indicates a malformed or incomplete control frame.
	ErrProtocol = errors.New(errorMessageProtocol)
)
