package domain

import "errors"

var (
	// ErrAccountNotFound is returned when no balance row exists for a company
	ErrAccountNotFound = errors.New("balance account not found")

	// ErrAccountAlreadyExists is returned when provisioning a company that already has a balance row
	ErrAccountAlreadyExists = errors.New("balance account already exists")

	// ErrVersionConflict is returned when a write presents a stale version.
	// The caller may re-read and retry the whole operation.
	ErrVersionConflict = errors.New("balance version conflict")

	// ErrOperationNotFound is returned when a balance operation is not found
	ErrOperationNotFound = errors.New("balance operation not found")
)
