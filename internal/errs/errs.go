// Package errs collects the sentinel errors shared across the header-sync
// core. Every per-channel or per-session failure surfaces as one of these so
// callers can branch on error kind with errors.Is instead of string matching.
package errs

import "errors"

// Transport errors.
var (
	ErrSendFailed     = errors.New("send failed")
	ErrChannelStopped = errors.New("channel stopped")
	ErrChannelTimeout = errors.New("channel timeout")
)

// Protocol semantic errors.
var (
	ErrInvalidPreviousBlock = errors.New("invalid previous block")
	ErrOperationFailed      = errors.New("operation failed")
)

// Shutdown.
var ErrServiceStopped = errors.New("service stopped")

// ErrNilChannel is raised when a component is handed a nil channel handle
// where the caller is required to have already validated non-nilness - a
// programming fault, not a runtime condition.
var ErrNilChannel = errors.New("nil channel handle")
