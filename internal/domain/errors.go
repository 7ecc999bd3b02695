package domain

import "errors"

// Error taxonomy shared by the store, the reconciliation policy, and both
// adapters. Wrap with fmt.Errorf("...: %w", Err...) and match with errors.Is.
var (
	// ErrConflict means a uniqueness invariant would be violated: a handle
	// or channel address already belongs to a different person.
	ErrConflict = errors.New("conflict with existing record")

	// ErrNotFound is an expected lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// Collaborator failures. The core never retries these; the current
	// interaction is aborted and no history entry is written.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrAnalysisFailed     = errors.New("file analysis failed")
)
