// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with positional read/write and sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests can inject [FaultyFS] to simulate failures of the backing disk image:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: 4096})
//	// inject ffs into the component under test
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Cluster reads and writes against a local image are non-interruptible at the
// syscall level.
package fs
