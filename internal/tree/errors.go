package tree

import "errors"

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrIncompleteMove = errors.New("move event without both endpoints")
	ErrOutsideRoot    = errors.New("path is outside of the watched folder")
)
