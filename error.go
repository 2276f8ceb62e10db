package telldb

import (
	"errors"
	"fmt"
)

// ErrorCode enumerates the error kinds surfaced by TellDB, per the error
// handling design: backend-level versioning errors from the store,
// user-level cache errors, Field-level errors, and transaction-lifecycle
// errors.
type ErrorCode int

const (
	Unknown ErrorCode = iota

	// Backend-level versioning errors from the store, surfaced verbatim
	// to the B-link tree so it can drive its own retry protocol.
	ObjectDoesntExist
	ObjectExists
	WrongVersion

	// User-level cache errors: a programming error in the caller.
	KeyNotFound
	KeyExists

	// Field-level errors.
	TypeMismatch
	Unorderable
	BadCast
	NotSerializable

	// Transaction-lifecycle errors.
	ReadOnlyViolation
	Conflict
	AlreadyFinished
	TransportError
)

func (c ErrorCode) String() string {
	switch c {
	case ObjectDoesntExist:
		return "ObjectDoesntExist"
	case ObjectExists:
		return "ObjectExists"
	case WrongVersion:
		return "WrongVersion"
	case KeyNotFound:
		return "KeyNotFound"
	case KeyExists:
		return "KeyExists"
	case TypeMismatch:
		return "TypeMismatch"
	case Unorderable:
		return "Unorderable"
	case BadCast:
		return "BadCast"
	case NotSerializable:
		return "NotSerializable"
	case ReadOnlyViolation:
		return "ReadOnlyViolation"
	case Conflict:
		return "Conflict"
	case AlreadyFinished:
		return "AlreadyFinished"
	case TransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// Error is TellDB's custom error type. UserData carries context useful to
// callers or to internal retry logic (e.g. the key that raced) without
// requiring a new error type per call site.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("telldb: %s", e.Code)
	}
	return fmt.Sprintf("telldb: %s: %v", e.Code, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with the given code, wrapped error, and optional
// user data.
func NewError(code ErrorCode, err error, userData any) Error {
	return Error{Code: code, Err: err, UserData: userData}
}

// Is reports whether err is (or wraps) a telldb.Error carrying the given code.
func Is(err error, code ErrorCode) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
