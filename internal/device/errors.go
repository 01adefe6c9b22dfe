package device

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCluster is returned for an index outside [0, ClusterCount).
	ErrInvalidCluster = errors.New("invalid cluster")

	// ErrSizeMismatch is returned when a write buffer is not exactly one cluster.
	ErrSizeMismatch = errors.New("cluster size mismatch")

	// ErrInvalidGeometry is returned for unusable cluster size/count pairs.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("device closed")
)

// InvalidClusterError reports an out-of-range cluster index.
type InvalidClusterError struct {
	Index int32
	Count int
}

func (e *InvalidClusterError) Error() string {
	return fmt.Sprintf("invalid cluster %d (volume has %d clusters)", e.Index, e.Count)
}

// Is reports whether target is ErrInvalidCluster.
func (e *InvalidClusterError) Is(target error) bool { return target == ErrInvalidCluster }

// SizeMismatchError reports a write buffer of the wrong length.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("cluster size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrSizeMismatch.
func (e *SizeMismatchError) Is(target error) bool { return target == ErrSizeMismatch }

// CheckIndex validates a cluster index against the geometry.
func CheckIndex(g Geometry, index int32) error {
	if !g.Contains(index) {
		return &InvalidClusterError{Index: index, Count: g.ClusterCount}
	}
	return nil
}

// CheckWrite validates index and buffer length for a cluster write.
func CheckWrite(g Geometry, index int32, data []byte) error {
	if err := CheckIndex(g, index); err != nil {
		return err
	}
	if len(data) != g.ClusterSize {
		return &SizeMismatchError{Expected: g.ClusterSize, Actual: len(data)}
	}
	return nil
}
