package workflow

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every core operation. Callers classify with
// errors.Is or KindOf.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrDuplicateVote = errors.New("duplicate vote")
	ErrValidation    = errors.New("validation failed")
	ErrDuplicateName = errors.New("duplicate name")
	ErrConflict      = errors.New("concurrent modification")
	ErrPersistence   = errors.New("persistence failure")
)

// ErrorKind names an error class for transport layers.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindNotFound     ErrorKind = "NotFound"
	KindInvalidState ErrorKind = "InvalidState"
	KindDuplicate    ErrorKind = "DuplicateVote"
	KindValidation   ErrorKind = "ValidationFailed"
	KindDupName      ErrorKind = "DuplicateName"
	KindConflict     ErrorKind = "Conflict"
	KindPersistence  ErrorKind = "PersistenceFailure"
	KindInternal     ErrorKind = "Internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidState, KindInvalidState},
	{ErrDuplicateVote, KindDuplicate},
	{ErrValidation, KindValidation},
	{ErrDuplicateName, KindDupName},
	{ErrConflict, KindConflict},
	{ErrPersistence, KindPersistence},
}

// KindOf classifies err. Unclassified non-nil errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
