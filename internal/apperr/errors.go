// Package apperr defines the error vocabulary shared by the plan pipeline,
// the HTTP API, and the MCP tools.
package apperr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Kind classifies a failed generation attempt.
type Kind string

const (
	KindServiceUnavailable Kind = "service_unavailable"
	KindMalformedEnvelope  Kind = "malformed_envelope"
	KindSyntaxInvalid      Kind = "syntax_invalid"
	KindShapeInvalid       Kind = "shape_invalid"
	KindStorageFailure     Kind = "storage_failure"
)

// Kind sentinels, so callers can write errors.Is(err, apperr.ErrShapeInvalid).
var (
	ErrServiceUnavailable = errors.New(string(KindServiceUnavailable))
	ErrMalformedEnvelope  = errors.New(string(KindMalformedEnvelope))
	ErrSyntaxInvalid      = errors.New(string(KindSyntaxInvalid))
	ErrShapeInvalid       = errors.New(string(KindShapeInvalid))
	ErrStorageFailure     = errors.New(string(KindStorageFailure))
)

var kindSentinels = map[Kind]error{
	KindServiceUnavailable: ErrServiceUnavailable,
	KindMalformedEnvelope:  ErrMalformedEnvelope,
	KindSyntaxInvalid:      ErrSyntaxInvalid,
	KindShapeInvalid:       ErrShapeInvalid,
	KindStorageFailure:     ErrStorageFailure,
}

// GenerationError is a classified pipeline failure. Location fields are
// filled only when they are known; Index is -1 when no item is implicated.
type GenerationError struct {
	Kind     Kind
	Reason   string
	Day      string
	Category string
	Index    int
	Field    string
	Excerpt  string
	Err      error
}

// NewGenerationError returns a GenerationError with no location attached.
func NewGenerationError(kind Kind, reason string, err error) *GenerationError {
	return &GenerationError{Kind: kind, Reason: reason, Index: -1, Err: err}
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if loc := e.Location(); loc != "" {
		b.WriteString(" at ")
		b.WriteString(loc)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Location renders the offending position as Day.Category[Index].Field.
func (e *GenerationError) Location() string {
	var parts []string
	if e.Day != "" {
		parts = append(parts, e.Day)
	}
	if e.Category != "" {
		c := e.Category
		if e.Index >= 0 {
			c += "[" + strconv.Itoa(e.Index) + "]"
		}
		parts = append(parts, c)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	return strings.Join(parts, ".")
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches the kind sentinel for e.Kind.
func (e *GenerationError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Retryable reports whether the caller may retry the same request as-is.
func (e *GenerationError) Retryable() bool {
	return e.Kind == KindServiceUnavailable
}

// KindOf returns the classification of err, or "" if it is not a
// GenerationError.
func KindOf(err error) Kind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Invalid wraps ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
