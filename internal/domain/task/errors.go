package task

import "errors"

var (
	// ErrNotFound indicates the task is not in the local collection.
	ErrNotFound = errors.New("task not found")
	// ErrEmptySequence indicates a reorder was requested for no tasks.
	ErrEmptySequence = errors.New("empty task sequence")
)
