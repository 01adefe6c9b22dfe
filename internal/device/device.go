package device

import (
	"fmt"
	"io"
)

// Device exposes fixed-size cluster I/O over a byte-addressable medium.
//
// Implementations do not cache: every call round-trips to the medium.
type Device interface {
	// ReadCluster returns a fresh buffer holding the cluster's content.
	ReadCluster(index int32) ([]byte, error)
	// WriteCluster stores exactly one cluster of data.
	WriteCluster(index int32, data []byte) error
	// Geometry returns the fixed volume shape.
	Geometry() Geometry
	// Sync flushes written clusters to stable storage.
	Sync() error
	io.Closer
}

// Kind selects a Device implementation for on-disk images.
type Kind string

const (
	// KindFile uses positional reads and writes on the image file.
	KindFile Kind = "file"
	// KindMmap maps the image read-write into memory.
	KindMmap Kind = "mmap"
)

// ParseKind parses a device kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFile, "":
		return KindFile, nil
	case KindMmap:
		return KindMmap, nil
	default:
		return "", fmt.Errorf("unknown device kind %q", s)
	}
}

// Zero returns an all-zero cluster buffer.
func Zero(g Geometry) []byte {
	return make([]byte, g.ClusterSize)
}
