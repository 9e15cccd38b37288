package service

import (
	"errors"
	"fmt"
)

// ErrSearchUnavailable matches every *SearchError via errors.Is
var ErrSearchUnavailable = errors.New("room search unavailable")

// SearchError reports that the catalog could not be read. Search callers do
// not retry it.
type SearchError struct {
	Op  string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("room search unavailable: %s: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func (e *SearchError) Is(target error) bool { return target == ErrSearchUnavailable }

func unavailable(op string, err error) error {
	return &SearchError{Op: op, Err: err}
}
