package domain

import (
	"errors"
	"fmt"
)

// ErrKind classifies failures so callers can map them without string matching.
type ErrKind string

const (
	KindValidation ErrKind = "validation"
	KindConflict   ErrKind = "conflict"
	KindNotFound   ErrKind = "not_found"
	KindStore      ErrKind = "store"
)

// Error carries the failure kind plus the offending field or record.
type Error struct {
	Kind  ErrKind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is lets errors.Is match against the kind sentinels below.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrStore:
		return e.Kind == KindStore
	}
	return false
}

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store failure")

	// ErrTxConflict marks a serialization failure (deadlock, lock wait timeout)
	// under concurrent writes; the booking service retries these a bounded
	// number of times before giving up.
	ErrTxConflict = errors.New("transaction conflict")
)

func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func Conflict(field, msg string) error {
	return &Error{Kind: KindConflict, Field: field, Msg: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Field: what, Msg: "no such record"}
}

func StoreFailure(err error) error {
	return &Error{Kind: KindStore, Msg: err.Error()}
}
