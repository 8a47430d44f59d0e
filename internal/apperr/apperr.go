package apperr

import (
	"errors"
	"fmt"
)

// error category shared by every component
type Code string

const (
	NotFound             Code = "NOT_FOUND"
	InvalidInput         Code = "INVALID_INPUT"
	FetchFailed          Code = "FETCH_FAILED"
	ParseFailed          Code = "PARSE_FAILED"
	StorageQuotaExceeded Code = "STORAGE_QUOTA_EXCEEDED"
	StaleMessage         Code = "STALE_MESSAGE"
	Internal             Code = "INTERNAL"
)

// coded error carrying the failing operation
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func New(code Code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg}
}

// wraps err with a code, returns nil for nil err
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// matches any *Error with the same code and, if set, the same message
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// code of the first coded error in the chain, Internal otherwise
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// reports whether err carries code
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
