// Package repository defines the persistence adapters of the session
// subsystem: the MySQL-backed credential store and the Redis-backed
// ephemeral cache.  The sentinel values below allow the service layer to
// tell expected conditions from infrastructure failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup by id, email or one-time token
// matches nothing.  Services translate it into the appropriate 4xx.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by Create when the unique index on email
// rejects the insert.  It is the source of truth for duplicate
// registrations; any pre-check in the service is only an optimisation.
var ErrEmailExists = errors.New("email already exists")
