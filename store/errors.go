package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item doesn't exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrConditionFailed is returned when a conditional write or a
	// transaction precondition fails.
	ErrConditionFailed = errors.New("store: condition failed")

	// ErrAmbiguous is returned when a lookup expected to match at most one
	// item matches several.
	ErrAmbiguous = errors.New("store: query matched more than one item")
)

// TxConditionError reports which item of an atomic transaction failed its
// precondition. It matches ErrConditionFailed under errors.Is.
type TxConditionError struct {
	// Index is the position of the losing item in the submitted transaction.
	Index int
}

func (e *TxConditionError) Error() string {
	return fmt.Sprintf("store: transaction item %d failed its precondition", e.Index)
}

func (e *TxConditionError) Is(target error) bool {
	return target == ErrConditionFailed
}
