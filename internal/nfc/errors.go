package nfc

import "errors"

var (
	ErrTargetExists = errors.New("canonical name is taken by another entry")
	ErrNotDirectory = errors.New("not a directory")
)
