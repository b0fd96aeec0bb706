package object

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no object with the requested hash exists.
var ErrNotFound = errors.New("object not found")

// ErrCorrupt reports that stored bytes violate a structural invariant.
// Corruption is always surfaced, never masked.
var ErrCorrupt = errors.New("corrupt object")

// NotFoundError carries the missing hash.
type NotFoundError struct {
	Hash Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %s: not found", e.Hash)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptObjectError describes a decode failure for a specific object.
type CorruptObjectError struct {
	Hash   Hash // may be empty when decoding detached bytes
	Type   ObjectType
	Reason string
}

func (e *CorruptObjectError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("corrupt %s object: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("corrupt %s object %s: %s", e.Type, e.Hash, e.Reason)
}

func (e *CorruptObjectError) Is(target error) bool { return target == ErrCorrupt }

func corruptf(objType ObjectType, format string, args ...any) error {
	return &CorruptObjectError{Type: objType, Reason: fmt.Sprintf(format, args...)}
}

// TypeMismatchError reports a typed read against an object of another kind.
type TypeMismatchError struct {
	Hash Hash
	Got  ObjectType
	Want ObjectType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("object %s: type mismatch: got %q, want %q", e.Hash, e.Got, e.Want)
}
