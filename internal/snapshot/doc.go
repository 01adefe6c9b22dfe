// Package snapshot copies whole volume images to and from a blob store.
//
// An export reads the image in frames of FrameClusters clusters,
// compresses the frames in parallel and stores them back to back in one
// blob. A second blob, NAME.manifest, records the geometry, the codec and
// the offset, length and CRC32C of every frame. The manifest is written
// last and deleted first, so its presence marks a complete snapshot.
package snapshot
