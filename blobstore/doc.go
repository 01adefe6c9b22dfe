// Package blobstore provides storage targets for volume snapshots.
//
// A BlobStore holds named immutable blobs. Snapshots are streamed with
// Create and read back frame by frame with ReadRange, so remote backends
// never need the whole image in memory at once.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system, mmap for reads
//   - MemoryStore: in-process, for tests
//   - s3.Store: Amazon S3 (package blobstore/s3)
//   - minio.Store: MinIO and other S3 compatible servers (package blobstore/minio)
package blobstore
