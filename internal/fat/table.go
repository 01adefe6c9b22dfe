package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vdisk/internal/device"
)

const (
	// Free marks an unallocated cluster.
	Free int32 = 0
	// End terminates a chain.
	End int32 = -1
)

// Table is the in-memory allocation table. It mirrors the on-disk FAT region
// and is persisted only by an explicit Save.
type Table struct {
	dev     device.Device
	geom    device.Geometry
	entries []int32
}

// New creates a table sized to the device geometry. All entries start FREE;
// call Initialize or Load before use.
func New(dev device.Device) *Table {
	g := dev.Geometry()
	return &Table{
		dev:     dev,
		geom:    g,
		entries: make([]int32, g.ClusterCount),
	}
}

// Geometry returns the geometry the table was sized for.
func (t *Table) Geometry() device.Geometry { return t.geom }

// Len returns the number of entries (one per cluster).
func (t *Table) Len() int { return len(t.entries) }

// Get returns the raw entry for index.
func (t *Table) Get(index int32) (int32, error) {
	if err := device.CheckIndex(t.geom, index); err != nil {
		return 0, err
	}
	return t.entries[index], nil
}

// Set stores a raw entry. value must be Free, End, or a cluster index.
func (t *Table) Set(index, value int32) error {
	if err := device.CheckIndex(t.geom, index); err != nil {
		return err
	}
	if value != End && !t.geom.Contains(value) {
		return &device.InvalidClusterError{Index: value, Count: t.geom.ClusterCount}
	}
	t.entries[index] = value
	return nil
}

// Initialize resets every entry to FREE and marks the superblock, the FAT run
// and the root directory head as single-cluster chains.
func (t *Table) Initialize() {
	clear(t.entries)
	t.entries[device.SuperblockCluster] = End
	for c := device.FATStart; c < device.FATStart+t.geom.FATClusters(); c++ {
		t.entries[c] = End
	}
	t.entries[t.geom.RootCluster()] = End
}

// Load reads the table image from the FAT region.
func (t *Table) Load() error {
	perCluster := t.geom.ClusterSize / device.EntrySize
	idx := 0
	for c := device.FATStart; c < device.FATStart+t.geom.FATClusters(); c++ {
		data, err := t.dev.ReadCluster(c)
		if err != nil {
			return fmt.Errorf("load allocation table: %w", err)
		}
		for i := 0; i < perCluster && idx < len(t.entries); i++ {
			t.entries[idx] = int32(binary.LittleEndian.Uint32(data[i*device.EntrySize:]))
			idx++
		}
	}
	return nil
}

// Save writes the table image to the FAT region.
func (t *Table) Save() error {
	img := t.Encode()
	for i := int32(0); i < t.geom.FATClusters(); i++ {
		off := int(i) * t.geom.ClusterSize
		if err := t.dev.WriteCluster(device.FATStart+i, img[off:off+t.geom.ClusterSize]); err != nil {
			return fmt.Errorf("save allocation table: %w", err)
		}
	}
	return nil
}

// Encode returns the packed on-disk image: one little-endian int32 per
// cluster, zero-padded to whole clusters.
func (t *Table) Encode() []byte {
	img := make([]byte, int(t.geom.FATClusters())*t.geom.ClusterSize)
	for i, e := range t.entries {
		binary.LittleEndian.PutUint32(img[i*device.EntrySize:], uint32(e))
	}
	return img
}

// FreeCount returns the number of free allocatable clusters.
func (t *Table) FreeCount() int {
	n := 0
	for _, e := range t.entries[t.geom.DataStart():] {
		if e == Free {
			n++
		}
	}
	return n
}

// AllocateChain links the first count free clusters (lowest index first)
// into one chain and returns its head. Nothing is modified on failure.
// A count of zero or less yields head 0.
func (t *Table) AllocateChain(count int) (int32, error) {
	if count <= 0 {
		return 0, nil
	}

	found := make([]int32, 0, count)
	for i := t.geom.DataStart(); int(i) < len(t.entries) && len(found) < count; i++ {
		if t.entries[i] == Free {
			found = append(found, i)
		}
	}
	if len(found) < count {
		return 0, &OutOfSpaceError{Requested: count, Available: len(found)}
	}

	t.link(found)
	return found[0], nil
}

// ExtendChain allocates one cluster and links it after tail, which must be
// the last cluster of its chain.
func (t *Table) ExtendChain(tail int32) (int32, error) {
	if err := device.CheckIndex(t.geom, tail); err != nil {
		return 0, err
	}
	if t.entries[tail] != End {
		return 0, &CorruptChainError{Head: tail, Cluster: tail, Reason: "extended cluster is not a chain tail"}
	}
	c, err := t.AllocateChain(1)
	if err != nil {
		return 0, err
	}
	t.entries[tail] = c
	return c, nil
}

// FreeChain releases every cluster of the chain starting at head. Head 0 is
// a no-op. A corrupt chain is left untouched.
func (t *Table) FreeChain(head int32) error {
	if head == Free {
		return nil
	}
	if head > 0 && head < t.geom.DataStart() {
		return fmt.Errorf("free chain: cluster %d is reserved: %w", head, device.ErrInvalidCluster)
	}
	chain, err := t.FollowChain(head)
	if err != nil {
		return err
	}
	for _, c := range chain {
		t.entries[c] = Free
	}
	return nil
}

// FollowChain returns the clusters of the chain starting at head, in order.
// Head 0 yields an empty chain. Revisiting a cluster, linking to a free
// cluster or leaving the volume is reported as a CorruptChainError.
func (t *Table) FollowChain(head int32) ([]int32, error) {
	if head == Free {
		return nil, nil
	}
	if err := device.CheckIndex(t.geom, head); err != nil {
		return nil, err
	}

	visited := roaring.New()
	var chain []int32
	cur := head
	for {
		if !visited.CheckedAdd(uint32(cur)) {
			return nil, &CorruptChainError{Head: head, Cluster: cur, Reason: "cycle detected"}
		}
		chain = append(chain, cur)

		next := t.entries[cur]
		switch {
		case next == End:
			return chain, nil
		case next == Free:
			return nil, &CorruptChainError{Head: head, Cluster: cur, Reason: "links to a free cluster"}
		case !t.geom.Contains(next):
			return nil, &CorruptChainError{Head: head, Cluster: cur, Reason: fmt.Sprintf("links outside the volume (%d)", next)}
		}
		cur = next
	}
}

// Relink restores a chain from a previously captured cluster list. Every
// cluster must currently be free.
func (t *Table) Relink(chain []int32) error {
	for _, c := range chain {
		if err := device.CheckIndex(t.geom, c); err != nil {
			return err
		}
		if t.entries[c] != Free {
			return &CorruptChainError{Head: chain[0], Cluster: c, Reason: "relinked cluster is in use"}
		}
	}
	t.link(chain)
	return nil
}

func (t *Table) link(chain []int32) {
	for i, c := range chain {
		if i+1 < len(chain) {
			t.entries[c] = chain[i+1]
		} else {
			t.entries[c] = End
		}
	}
}
