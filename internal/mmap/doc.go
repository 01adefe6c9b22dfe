// Package mmap provides read-write memory-mapped access to a backing file.
//
// # Usage
//
//	m, err := mmap.Map(f, size, true)
//	if err != nil { ... }
//	defer m.Close()
//
//	copy(m.Bytes()[off:], cluster)
//	m.Flush() // msync
//
// # Platform Support
//
// Unix platforms use mmap(2), msync(2) and madvise(2) from golang.org/x/sys/unix.
// Other platforms return ErrUnsupported from Map.
//
// # Thread Safety
//
// The Close() method is idempotent and protected by atomic operations. Callers
// must ensure no goroutines access Bytes() after Close() returns.
package mmap
