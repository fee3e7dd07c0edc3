package models

import "errors"

var (
	// ErrTerminalStatus is returned when a decided application is moderated again.
	ErrTerminalStatus = errors.New("application status is final")
	// ErrNotDeletable is returned when an owner tries to cancel a non-pending application.
	ErrNotDeletable = errors.New("only pending applications can be cancelled")
	// ErrAlreadyPaid is returned when a paid application is paid again.
	ErrAlreadyPaid = errors.New("application fee already paid")
)
