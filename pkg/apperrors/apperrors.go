package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the stable categories the API and
// the workers dispatch on. Kinds survive wrapping; use Is/KindOf rather
// than string matching.
type Kind string

const (
	KindInvalidInput             Kind = "invalid_input"
	KindPermissionDenied         Kind = "permission_denied"
	KindNotFound                 Kind = "not_found"
	KindFolderCapExceeded        Kind = "folder_cap_exceeded"
	KindEmptyFolder              Kind = "empty_folder"
	KindRateLimitExhausted       Kind = "rate_limit_exhausted"
	KindTransientUpstream        Kind = "transient_upstream"
	KindProcessingFailed         Kind = "processing_failed"
	KindVectorBackendUnavailable Kind = "vector_backend_unavailable"
	KindQueueUnavailable         Kind = "queue_unavailable"
	KindStoreUnavailable         Kind = "store_unavailable"
)

// Error carries a kind plus a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a kinded error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from anywhere in the chain; empty if untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the queue should retry the job that produced
// this error. Only transient upstream failures and untyped errors retry;
// everything classified is a terminal outcome for the row.
func Retryable(err error) bool {
	kind := KindOf(err)
	return kind == "" || kind == KindTransientUpstream || kind == KindQueueUnavailable || kind == KindStoreUnavailable
}
