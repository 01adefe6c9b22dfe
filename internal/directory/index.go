package directory

import (
	"fmt"
	"strings"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/fat"
)

// Index reads and writes directory records stored in directory chains.
// A directory is identified solely by the head cluster of its chain.
type Index struct {
	dev  device.Device
	fat  *fat.Table
	geom device.Geometry
}

// New creates a directory index over dev, growing chains through tbl.
func New(dev device.Device, tbl *fat.Table) *Index {
	return &Index{dev: dev, fat: tbl, geom: dev.Geometry()}
}

// slot addresses one record structurally: the cluster holding it and the
// byte offset inside that cluster.
type slot struct {
	cluster int32
	offset  int
}

// visit calls fn for every record slot of the directory in chain order, with
// the cluster buffer it was read into. fn returns true to stop.
func (x *Index) visit(head int32, fn func(s slot, buf []byte) (stop bool, err error)) (last int32, err error) {
	if head != x.geom.RootCluster() && head < x.geom.DataStart() {
		return 0, fmt.Errorf("cluster %d cannot head a directory: %w", head, device.ErrInvalidCluster)
	}
	chain, err := x.fat.FollowChain(head)
	if err != nil {
		return 0, err
	}
	for _, c := range chain {
		buf, err := x.dev.ReadCluster(c)
		if err != nil {
			return 0, err
		}
		for off := 0; off+device.RecordSize <= len(buf); off += device.RecordSize {
			stop, err := fn(slot{cluster: c, offset: off}, buf)
			if err != nil || stop {
				return c, err
			}
		}
		last = c
	}
	return last, nil
}

// List returns every occupied entry of the directory in chain order.
func (x *Index) List(head int32) ([]Entry, error) {
	var entries []Entry
	_, err := x.visit(head, func(s slot, buf []byte) (bool, error) {
		if !slotFree(buf[s.offset:]) {
			entries = append(entries, decodeEntry(buf[s.offset:]))
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list directory %d: %w", head, err)
	}
	return entries, nil
}

// Find returns the first entry whose name matches name after formatting.
func (x *Index) Find(head int32, name string) (Entry, bool, error) {
	target := FormatName(name)
	entries, err := x.List(head)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if sameName(e.Name, target) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Insert stores e under its formatted name in the first free slot. When every
// cluster of the chain is full, exactly one zeroed cluster is appended.
func (x *Index) Insert(head int32, e Entry) error {
	e.Name = FormatName(e.Name)
	if strings.TrimSpace(e.Name) == "" {
		return ErrInvalidName
	}

	if _, ok, err := x.Find(head, e.Name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.DisplayName())
	}

	var written bool
	tail, err := x.visit(head, func(s slot, buf []byte) (bool, error) {
		if !slotFree(buf[s.offset:]) {
			return false, nil
		}
		e.encode(buf[s.offset:])
		if err := x.dev.WriteCluster(s.cluster, buf); err != nil {
			return true, err
		}
		written = true
		return true, nil
	})
	if err != nil || written {
		return err
	}

	return x.grow(tail, e)
}

// grow appends one cluster after tail and writes e into its first slot.
func (x *Index) grow(tail int32, e Entry) error {
	c, err := x.fat.ExtendChain(tail)
	if err != nil {
		return fmt.Errorf("grow directory: %w", err)
	}
	buf := device.Zero(x.geom)
	e.encode(buf)
	if err := x.dev.WriteCluster(c, buf); err != nil {
		// Detach the unwritten cluster so the chain stays as it was.
		_ = x.fat.Set(tail, fat.End)
		_ = x.fat.Set(c, fat.Free)
		return err
	}
	return nil
}

// Remove deletes the entry named name, releasing the chain it owns.
func (x *Index) Remove(head int32, name string) error {
	_, err := x.remove(head, name, true)
	return err
}

// Unlink deletes the entry named name without releasing its chain and returns
// the removed entry. The caller takes ownership of the chain.
func (x *Index) Unlink(head int32, name string) (Entry, error) {
	return x.remove(head, name, false)
}

func (x *Index) remove(head int32, name string, release bool) (Entry, error) {
	target := FormatName(name)

	var (
		removed Entry
		found   bool
	)
	_, err := x.visit(head, func(s slot, buf []byte) (bool, error) {
		rec := buf[s.offset:]
		if slotFree(rec) {
			return false, nil
		}
		e := decodeEntry(rec)
		if !sameName(e.Name, target) {
			return false, nil
		}
		if release && e.FirstCluster != 0 {
			if err := x.fat.FreeChain(e.FirstCluster); err != nil {
				return true, err
			}
		}
		rec[0] = 0
		if err := x.dev.WriteCluster(s.cluster, buf); err != nil {
			return true, err
		}
		removed, found = e, true
		return true, nil
	})
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(name))
	}
	return removed, nil
}
