// Package errors holds the error taxonomy shared by the discovery, match and
// chat services, plus the mappers that turn it into transport status codes.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure for callers and transports.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidAction       Kind = "invalid_action"
	KindInvalidArgument     Kind = "invalid_argument"
	KindPolicyViolation     Kind = "policy_violation"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTranslationFailed   Kind = "translation_failed"
	KindInternal            Kind = "internal"
)

// Error is a classified service error.
type Error struct {
	Kind     Kind
	Message  string
	Resource string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NotFound reports a missing profile, conversation or message.
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Resource: resource, Message: resource + " not found"}
}

// InvalidAction reports an action the caller may never perform, e.g. liking oneself.
func InvalidAction(msg string) error {
	return &Error{Kind: KindInvalidAction, Message: msg}
}

// InvalidArgument creates a validation error for malformed input.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

// PolicyViolation reports a region policy breach, e.g. age below the region minimum.
func PolicyViolation(msg string) error {
	return &Error{Kind: KindPolicyViolation, Message: msg}
}

// Unavailable wraps a store/infrastructure failure. Retryable.
func Unavailable(op string, cause error) error {
	return &Error{Kind: KindUpstreamUnavailable, Message: op + " failed", Cause: cause}
}

// TranslationFailed wraps a provider failure. Never returned to message senders.
func TranslationFailed(cause error) error {
	return &Error{Kind: KindTranslationFailed, Message: "translation failed", Cause: cause}
}

// KindOf returns the Kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether a caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return Is(err, KindUpstreamUnavailable)
}
