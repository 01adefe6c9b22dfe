// Package device is the block store: fixed-size cluster read/write over a
// byte-addressable backing medium. It is the only layer that touches raw
// storage.
//
// Three media are provided:
//
//   - [FileDevice]: positional I/O through the internal/fs abstraction
//   - [MmapDevice]: a shared read-write mapping of the image
//   - [MemoryDevice]: an in-process byte slice
//
// Every implementation rejects indices outside the geometry with
// [InvalidClusterError] and writes that are not exactly one cluster with
// [SizeMismatchError]. Nothing is cached.
package device
