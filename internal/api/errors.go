package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNetwork      = errors.New("network failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrUnlockDenied = errors.New("unlock denied")
	ErrNotFound     = errors.New("not found")
)

var kinds = []error{ErrUnauthorized, ErrUnlockDenied, ErrValidation, ErrNotFound, ErrNetwork}

// Error is a classified backend failure. Kind is one of the Err* sentinels and
// errors.Is matches against it.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	// Fields holds per-field messages from a validation envelope.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("request failed")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if reason := e.reason(); reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func (e *Error) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Kind returns the sentinel an error was classified as, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Reason is the user-facing explanation of err: the backend's message when it
// sent one, otherwise the error text.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if r := apiErr.reason(); r != "" {
			return r
		}
	}
	return err.Error()
}

func ValidationError(op, field, msg string) *Error {
	return &Error{
		Kind:    ErrValidation,
		Op:      op,
		Message: msg,
		Fields:  map[string]string{field: msg},
	}
}

func networkError(op string, status int, err error) *Error {
	return &Error{Kind: ErrNetwork, Op: op, Status: status, Err: err}
}
