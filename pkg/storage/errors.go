package storage

import "errors"

// ErrNotFound is returned by Get* when no row matches the given id.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned on unique-constraint violations (duplicate
// hostname, duplicate scheduling rule name).
var ErrConflict = errors.New("record conflict")
