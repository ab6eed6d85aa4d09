package storage

import "errors"

// ErrNilHistory is returned by Save when given a nil history. An empty,
// non-nil slice is valid and stores an empty history.
var ErrNilHistory = errors.New("nil history")
