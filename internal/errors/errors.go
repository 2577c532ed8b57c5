// Package errors defines the error taxonomy shared by the gateway, the
// domain services, and the dispatcher. Every failure a service can surface
// is one of the kinds below; the dispatcher translates them into the wire
// envelope, and the display strings here are the only strings that reach
// the client.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure with a stable wire representation.
type Kind string

const (
	// KindDatabase covers any gateway failure.
	KindDatabase Kind = "DATABASE_ERROR"
	// KindUserAlreadyExists is returned when registering a taken username.
	KindUserAlreadyExists Kind = "USER_ALREADY_EXISTS"
	// KindUserNotFound is returned on login failure or a missing lookup.
	// It deliberately masks whether the user or the password was wrong.
	KindUserNotFound Kind = "USER_NOT_FOUND"
	// KindAlreadyFriends is returned on duplicate friendship creation.
	KindAlreadyFriends Kind = "ALREADY_FRIENDS"
	// KindChatAlreadyExists covers duplicate group names and duplicate
	// one-on-one member pairs.
	KindChatAlreadyExists Kind = "CHAT_ALREADY_EXISTS"
	// KindActionBlocked is returned when a block row exists between parties.
	KindActionBlocked Kind = "ACTION_BLOCKED"
	// KindForbidden is returned on non-member access to chat resources.
	KindForbidden Kind = "FORBIDDEN"
	// KindInvalidToken covers missing, malformed, and expired tokens.
	KindInvalidToken Kind = "INVALID_TOKEN"
	// KindPasswordInvalid covers hashing and hash-parsing failures.
	KindPasswordInvalid Kind = "PASSWORD_INVALID"
	// KindRequestInvalid covers unparseable JSON, oversized frames, and
	// unknown commands.
	KindRequestInvalid Kind = "REQUEST_INVALID"
	// KindDisconnected means the peer closed mid-frame. It is never
	// converted to a response; the session task exits instead.
	KindDisconnected Kind = "DISCONNECTED"
)

// displayPrefix holds the fixed human-readable form per kind. Kinds with an
// empty detail render the prefix alone.
var displayPrefix = map[Kind]string{
	KindDatabase:          "Database error",
	KindUserAlreadyExists: "User already exists",
	KindUserNotFound:      "User not found",
	KindAlreadyFriends:    "Already friends",
	KindChatAlreadyExists: "Chat already exists",
	KindActionBlocked:     "Action blocked",
	KindForbidden:         "Forbidden",
	KindInvalidToken:      "Invalid Token",
	KindPasswordInvalid:   "Password invalid",
	KindRequestInvalid:    "Invalid request",
	KindDisconnected:      "Disconnected",
}

// Error is the single error type carried across the service boundary.
type Error struct {
	Kind   Kind
	Detail string // optional; appended after the display prefix
	Err    error  // optional wrapped cause
}

// Error renders the stable wire string for the kind.
func (e *Error) Error() string {
	prefix, ok := displayPrefix[e.Kind]
	if !ok {
		prefix = string(e.Kind)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Detail)
	}
	return prefix
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with no detail.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf creates an Error of the given kind with a formatted detail.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, preserving an existing
// *Error untouched so kinds set close to the failure survive the climb up
// the call stack.
func Wrap(err error, kind Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
