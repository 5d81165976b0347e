package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrValidation: missing or malformed identity, item id or flag.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: the referenced item does not exist or is inactive.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable: transient storage failure; every write is idempotent, so retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr classifies a repository error for op.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}

// Retryable reports whether the caller may resend the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
