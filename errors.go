package vdisk

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/directory"
	"github.com/hupe1980/vdisk/internal/engine"
	"github.com/hupe1980/vdisk/internal/fat"
	"github.com/hupe1980/vdisk/internal/snapshot"
	"github.com/hupe1980/vdisk/internal/superblock"
)

var (
	// ErrNotFound is returned when a named entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a name that is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrWrongType is returned when a file operation names a directory or
	// the other way around.
	ErrWrongType = errors.New("wrong entry type")

	// ErrNotEmpty is returned when removing a directory with entries.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrOutOfSpace is returned when there are not enough free clusters.
	ErrOutOfSpace = errors.New("out of space")

	// ErrCorruptChain is returned when a cluster chain loops or links to a
	// free or out-of-range cluster.
	ErrCorruptChain = errors.New("corrupt chain")

	// ErrInvalidCluster is returned for a cluster index outside the volume.
	ErrInvalidCluster = errors.New("invalid cluster")

	// ErrSizeMismatch is returned when a cluster write is not exactly one
	// cluster long.
	ErrSizeMismatch = errors.New("cluster size mismatch")

	// ErrInvalidName is returned for names that are empty after formatting.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidGeometry is returned for unusable cluster size or count.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrClosed is returned by operations on a closed volume.
	ErrClosed = errors.New("volume closed")

	// ErrBadSuperblock is returned when the volume header is damaged or
	// describes a different geometry.
	ErrBadSuperblock = errors.New("bad superblock")

	// ErrBadSnapshot is returned when a snapshot is damaged or written in
	// an unsupported format.
	ErrBadSnapshot = errors.New("bad snapshot")
)

// OutOfSpaceError carries the requested and available cluster counts of a
// failed allocation. It matches ErrOutOfSpace with errors.Is.
type OutOfSpaceError = fat.OutOfSpaceError

// CorruptChainError identifies the chain head and cluster where a walk
// failed. It matches ErrCorruptChain with errors.Is.
type CorruptChainError = fat.CorruptChainError

var errorMap = []struct {
	internal error
	public   error
}{
	{directory.ErrNotFound, ErrNotFound},
	{directory.ErrAlreadyExists, ErrAlreadyExists},
	{directory.ErrInvalidName, ErrInvalidName},
	{engine.ErrWrongType, ErrWrongType},
	{engine.ErrNotEmpty, ErrNotEmpty},
	{fat.ErrOutOfSpace, ErrOutOfSpace},
	{fat.ErrCorruptChain, ErrCorruptChain},
	{device.ErrInvalidCluster, ErrInvalidCluster},
	{device.ErrSizeMismatch, ErrSizeMismatch},
	{device.ErrInvalidGeometry, ErrInvalidGeometry},
	{device.ErrClosed, ErrClosed},
	{superblock.ErrBadSuperblock, ErrBadSuperblock},
	{snapshot.ErrCorrupt, ErrBadSnapshot},
	{snapshot.ErrUnsupported, ErrBadSnapshot},
	{blobstore.ErrNotFound, ErrNotFound},
}

// translateError maps errors of the internal layers onto the public
// sentinels while keeping the original chain reachable.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range errorMap {
		if errors.Is(err, m.public) {
			return err
		}
		if errors.Is(err, m.internal) {
			return fmt.Errorf("%w: %w", m.public, err)
		}
	}
	return err
}
