package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidVector = errors.New("invalid feature vector")
	ErrLookupFailed  = errors.New("catalog lookup failed")
	ErrScanNotFound  = errors.New("scan not found")
	ErrStageLocked   = errors.New("pipeline stage already locked")
	ErrStageOrder    = errors.New("pipeline stage out of order")
	ErrConflict      = errors.New("conflicting state")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
