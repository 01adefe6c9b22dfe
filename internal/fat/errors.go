package fat

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSpace is returned when an allocation cannot be satisfied.
	ErrOutOfSpace = errors.New("out of space")

	// ErrCorruptChain is returned when a chain walk hits a cycle or a bad link.
	ErrCorruptChain = errors.New("corrupt chain")
)

// OutOfSpaceError reports a failed allocation.
type OutOfSpaceError struct {
	Requested int
	Available int
}

func (e *OutOfSpaceError) Error() string {
	return fmt.Sprintf("out of space: requested %d clusters, %d free", e.Requested, e.Available)
}

// Is reports whether target is ErrOutOfSpace.
func (e *OutOfSpaceError) Is(target error) bool { return target == ErrOutOfSpace }

// CorruptChainError reports where a chain walk failed.
type CorruptChainError struct {
	Head    int32
	Cluster int32
	Reason  string
}

func (e *CorruptChainError) Error() string {
	return fmt.Sprintf("corrupt chain at head %d: cluster %d: %s", e.Head, e.Cluster, e.Reason)
}

// Is reports whether target is ErrCorruptChain.
func (e *CorruptChainError) Is(target error) bool { return target == ErrCorruptChain }
