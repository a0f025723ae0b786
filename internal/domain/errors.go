package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of business failures the HTTP boundary knows
// how to map to a status code.
type ErrorKind int

const (
	KindMissingValues ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindUnauthorized
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func MissingValues(fields ...string) *Error {
	msg := "required values are missing"
	if len(fields) > 0 {
		msg = fmt.Sprintf("the following required values are missing: %s", strings.Join(fields, ", "))
	}

	return &Error{Kind: KindMissingValues, Message: msg}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the business kind from an error chain. The second return
// is false for unexpected errors, which the boundary turns into a plain 500.
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}

	return 0, false
}
