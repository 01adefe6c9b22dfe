// Package directory implements the directory index: fixed 32-byte records
// stored in the clusters of a directory's chain.
//
// Record layout (little endian):
//
//	0..10   name, 8.3 form, upper case, space padded
//	11      attribute (0x10 directory, 0x20 file)
//	12..15  first cluster (int32, 0 when the entity owns no chain)
//	16..19  size in bytes (int32, files only)
//	20..31  reserved, written as zero
//
// A record whose first name byte is zero is a free slot. There are no "."
// or ".." records; callers track parents themselves. Directories grow by one
// cluster when full and never shrink.
package directory
