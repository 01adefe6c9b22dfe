// Package hash provides the checksum used for volume integrity.
//
// The superblock trailer and snapshot manifests carry CRC32-Castagnoli
// (CRC32C) sums. The standard library selects hardware instructions on
// amd64 and arm64 when they are available.
//
//	sum := hash.CRC32C(header)
//
//	h := hash.NewCRC32C()
//	h.Write(frame1)
//	h.Write(frame2)
//	sum = h.Sum32()
package hash
