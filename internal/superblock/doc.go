// Package superblock reads and writes the volume header stored in cluster 0.
//
// Layout (little endian):
//
//	0..3    magic "VDSK"
//	4..5    format version
//	6..7    reserved
//	8..11   cluster size
//	12..15  cluster count
//	16..19  FAT start cluster
//	20..23  FAT cluster count
//	24..27  root directory cluster
//	28..31  data start cluster
//	32..42  volume label, space trimmed on read
//	43      reserved
//	44..47  CRC32C of bytes 0..43
//
// The rest of the cluster is zero. A cluster 0 that is entirely zero belongs
// to an image that was never given a header.
package superblock
