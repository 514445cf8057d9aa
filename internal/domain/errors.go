package domain

import "errors"

var (
	ErrInsufficientData   = errors.New("not enough candidates to form a pair")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrDuplicateSession   = errors.New("session token already used")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrInvalidEntity      = errors.New("invalid entity")
	ErrConcurrentUpdate   = errors.New("concurrent rating update")
	ErrMatchAlreadyScored = errors.New("match already has rating history")
	ErrPersistence        = errors.New("persistence failure")
)

// PersistenceError reports a failed store operation. It matches both
// ErrPersistence and the underlying cause with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Persistence wraps err as a PersistenceError for the named operation.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
