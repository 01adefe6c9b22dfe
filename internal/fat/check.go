package fat

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vdisk/internal/device"
)

// Report summarizes a consistency check of the table against a set of
// owner chains.
type Report struct {
	// Lost lists allocated data clusters that no owner chain reaches.
	Lost []uint32 `json:"lost,omitempty"`
	// CrossLinked lists clusters reached by more than one owner chain.
	CrossLinked []uint32 `json:"cross_linked,omitempty"`
	// Corrupt lists owner heads whose chain walk failed.
	Corrupt []int32 `json:"corrupt,omitempty"`
	// BadReserved lists reserved clusters whose entry is not END.
	BadReserved []int32 `json:"bad_reserved,omitempty"`
	Used        int     `json:"used"`
	Free        int     `json:"free"`
}

// Clean reports whether the check found nothing to repair.
func (r Report) Clean() bool {
	return len(r.Lost) == 0 && len(r.CrossLinked) == 0 && len(r.Corrupt) == 0 && len(r.BadReserved) == 0
}

// Check walks every owner chain (file and directory heads, including the
// root) and compares the reached set with the allocated set. Heads of 0 are
// skipped.
func (t *Table) Check(heads []int32) Report {
	var r Report

	reached := roaring.New()
	crossed := roaring.New()
	for _, h := range heads {
		if h == Free {
			continue
		}
		chain, err := t.FollowChain(h)
		if err != nil {
			r.Corrupt = append(r.Corrupt, h)
			continue
		}
		for _, c := range chain {
			if !reached.CheckedAdd(uint32(c)) {
				crossed.Add(uint32(c))
			}
		}
	}

	allocated := roaring.New()
	for i := t.geom.DataStart(); int(i) < len(t.entries); i++ {
		if t.entries[i] == Free {
			r.Free++
			continue
		}
		r.Used++
		allocated.Add(uint32(i))
	}

	for c := device.SuperblockCluster; c < t.geom.RootCluster(); c++ {
		if t.entries[c] != End {
			r.BadReserved = append(r.BadReserved, c)
		}
	}
	// The root head may link into the data region but must not be free.
	if t.entries[t.geom.RootCluster()] == Free {
		r.BadReserved = append(r.BadReserved, t.geom.RootCluster())
	}

	r.Lost = roaring.AndNot(allocated, reached).ToArray()
	r.CrossLinked = crossed.ToArray()
	return r
}
