package conduct

import "errors"

var (
	// Configuration errors.
	ErrNoStore    = errors.New("conduct: no record store configured")
	ErrNoResolver = errors.New("conduct: no node resolver configured")

	// Not found errors.
	ErrNodeNotFound      = errors.New("conduct: node not found")
	ErrExecutionNotFound = errors.New("conduct: execution not found")

	// Request errors.
	ErrInvalidRequest = errors.New("conduct: invalid request")
	ErrNilResult      = errors.New("conduct: node returned nil result")

	// Lifecycle errors.
	ErrSchedulerClosed = errors.New("conduct: scheduler closed")
)
