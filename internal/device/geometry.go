package device

import (
	"fmt"
	"math"
)

const (
	// SuperblockCluster is the reserved volume header cluster.
	SuperblockCluster int32 = 0

	// FATStart is the first cluster of the allocation table image.
	FATStart int32 = 1

	// EntrySize is the on-disk width of one allocation table entry.
	EntrySize = 4

	// RecordSize is the on-disk width of one directory record.
	RecordSize = 32

	// DefaultClusterSize and DefaultClusterCount give a 1 MiB volume.
	DefaultClusterSize  = 1024
	DefaultClusterCount = 1024

	minClusterSize = 64
)

// Geometry describes the fixed shape of a volume: cluster capacity in bytes
// and the total number of clusters. Both are fixed at format time.
type Geometry struct {
	ClusterSize  int `json:"cluster_size" yaml:"clusterSize"`
	ClusterCount int `json:"cluster_count" yaml:"clusterCount"`
}

// DefaultGeometry returns the 1024 x 1024 layout.
func DefaultGeometry() Geometry {
	return Geometry{ClusterSize: DefaultClusterSize, ClusterCount: DefaultClusterCount}
}

// Validate checks that the geometry can hold the reserved regions plus at
// least one data cluster.
func (g Geometry) Validate() error {
	if g.ClusterSize < minClusterSize || g.ClusterSize%RecordSize != 0 {
		return fmt.Errorf("%w: cluster size %d must be a multiple of %d and at least %d",
			ErrInvalidGeometry, g.ClusterSize, RecordSize, minClusterSize)
	}
	if g.ClusterCount <= 0 || g.ClusterCount > math.MaxInt32 {
		return fmt.Errorf("%w: cluster count %d out of range", ErrInvalidGeometry, g.ClusterCount)
	}
	if int64(g.ClusterSize)*int64(g.ClusterCount) > math.MaxInt64/2 {
		return fmt.Errorf("%w: volume too large", ErrInvalidGeometry)
	}
	if int64(g.ClusterCount) <= int64(g.DataStart()) {
		return fmt.Errorf("%w: %d clusters leave no data region (data starts at %d)",
			ErrInvalidGeometry, g.ClusterCount, g.DataStart())
	}
	return nil
}

// Size returns the backing medium size in bytes.
func (g Geometry) Size() int64 {
	return int64(g.ClusterSize) * int64(g.ClusterCount)
}

// FATClusters returns the number of clusters holding the allocation table.
func (g Geometry) FATClusters() int32 {
	bytes := g.ClusterCount * EntrySize
	return int32((bytes + g.ClusterSize - 1) / g.ClusterSize)
}

// RootCluster returns the head of the root directory chain.
func (g Geometry) RootCluster() int32 {
	return FATStart + g.FATClusters()
}

// DataStart returns the first allocatable cluster.
func (g Geometry) DataStart() int32 {
	return g.RootCluster() + 1
}

// RecordsPerCluster returns the number of directory slots in one cluster.
func (g Geometry) RecordsPerCluster() int {
	return g.ClusterSize / RecordSize
}

// Contains reports whether index addresses a cluster of this geometry.
func (g Geometry) Contains(index int32) bool {
	return index >= 0 && int(index) < g.ClusterCount
}
