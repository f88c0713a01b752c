package discovery

import "fmt"

// ErrInvalidQuery indicates the certification query failed validation and
// the run never started.
type ErrInvalidQuery struct {
	Err error
}

func (e ErrInvalidQuery) Error() string {
	return fmt.Errorf("invalid query: %w", e.Err).Error()
}

func (e ErrInvalidQuery) Unwrap() error {
	return e.Err
}

// ErrInvariant indicates a pipeline stage produced an internally
// inconsistent structure. It signals a bug, not a remote failure.
type ErrInvariant struct {
	Err error
}

func (e ErrInvariant) Error() string {
	return fmt.Errorf("invariant violated: %w", e.Err).Error()
}

func (e ErrInvariant) Unwrap() error {
	return e.Err
}
