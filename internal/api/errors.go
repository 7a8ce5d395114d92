package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind categorizes a failed API call.
type ErrorKind int

const (
	// KindTransport indicates the request was rejected or the server was unreachable.
	KindTransport ErrorKind = iota
	// KindDecode indicates the response body could not be parsed.
	KindDecode
	// KindApplication indicates a well-formed response that reports failure
	// or lacks the data the caller needs.
	KindApplication
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String() + " error"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors that did not come from this package are
// treated as transport failures, which covers context cancellation.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransport
}

// IsCanceled reports whether err was caused by context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func transportErr(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func decodeErr(op string, status int, err error, body []byte) *Error {
	return &Error{Kind: KindDecode, Op: op, Status: status, Message: "body: " + truncate(string(body), 200), Err: err}
}

func appErr(op string, status int, message string) *Error {
	return &Error{Kind: KindApplication, Op: op, Status: status, Message: message}
}
