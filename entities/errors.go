package entities

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the recoverable failures the engine reports
type ErrorKind int

const (
	KindMissingContext ErrorKind = iota + 1
	KindMalformedResponse
	KindVoteRejected
	KindArithmetic
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingContext:
		return "missing_context"
	case KindMalformedResponse:
		return "malformed_response"
	case KindVoteRejected:
		return "vote_rejected"
	case KindArithmetic:
		return "arithmetic_error"
	}
	return "unknown"
}

// Sentinels for errors.Is matching on kind alone
var (
	ErrMissingContext    = &EngineError{Kind: KindMissingContext}
	ErrMalformedResponse = &EngineError{Kind: KindMalformedResponse}
	ErrVoteRejected      = &EngineError{Kind: KindVoteRejected}
	ErrArithmetic        = &EngineError{Kind: KindArithmetic}
)

// EngineError is returned by every engine operation that can fail.
// Status carries the upstream HTTP status for rejected votes, zero otherwise.
type EngineError struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Status int
	Err    error
}

func (e *EngineError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches any EngineError of the same kind
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an EngineError with a formatted detail message
func NewError(kind ErrorKind, op string, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an EngineError around a cause
func WrapError(kind ErrorKind, op string, err error) *EngineError {
	return &EngineError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or zero when err is not an engine error
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
