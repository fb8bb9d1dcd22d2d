package app

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so handlers can map it to an HTTP status and
// clients can tell "fix your input" from "re-poll availability" from
// "re-authenticate".
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindLinkExpired   Kind = "link_expired"
	KindLinkExhausted Kind = "link_exhausted"
	KindSlotConflict  Kind = "slot_conflict"
	KindUpstream      Kind = "upstream_error"
	KindInternal      Kind = "internal_error"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Ef(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal for errors that
// never got classified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
