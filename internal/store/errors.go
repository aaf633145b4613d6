package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoRowsAffected is returned when an insert or update that targeted an
// existing record wrote nothing. Distinct from ErrNotFound: the record was
// located by filter but the write did not land.
var ErrNoRowsAffected = errors.New("no rows affected")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")
