package store

import "errors"

// ErrDuplicateID is returned by InsertCommand when the id already exists.
var ErrDuplicateID = errors.New("duplicate command id")

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("not found")
