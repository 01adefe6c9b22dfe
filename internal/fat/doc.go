// Package fat implements the allocation table: one int32 entry per cluster
// recording FREE (0), END (-1) or the next cluster of a chain.
//
// The table is an explicitly owned value. It is loaded once from the FAT
// region (or initialized on a fresh volume), mutated in memory, and written
// back only by Save.
//
// Allocation always takes the lowest free data clusters first. Chain walks
// carry a visited set bounded by the cluster count, so a cycle is reported
// as a [CorruptChainError] instead of looping.
package fat
