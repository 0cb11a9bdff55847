package core

import (
	"errors"
	"fmt"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrInvalidLimit   = errors.New("limit must be positive")
)

// StorageError reports a failed persistence operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
