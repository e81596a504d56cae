package library

import "github.com/pkg/errors"

// semantic error kinds surfaced to the protocol adapters
var (
	// ErrNotFound indicates an unknown ID on a lookup or mutation
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedOperation indicates a mutation on a virtual playlist
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrConflict indicates that a rename target already exists
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates a malformed request, e.g. an empty playlist
	// name
	ErrInvalidInput = errors.New("invalid input")
)
