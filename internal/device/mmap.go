package device

import (
	"fmt"
	"os"

	"github.com/hupe1980/vdisk/internal/mmap"
)

// MmapDevice serves clusters from a shared read-write mapping of the image.
// It works on the real file system only; fault injection needs FileDevice.
type MmapDevice struct {
	geom Geometry
	f    *os.File
	m    *mmap.Mapping
}

// OpenMmap opens or creates the image at path and maps it.
func OpenMmap(path string, g Geometry) (dev *MmapDevice, created bool, err error) {
	if err := g.Validate(); err != nil {
		return nil, false, err
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		created = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	if info.Size() > g.Size() {
		_ = f.Close()
		return nil, false, fmt.Errorf("%w: image %s is %d bytes, geometry needs %d",
			ErrInvalidGeometry, path, info.Size(), g.Size())
	}
	if info.Size() < g.Size() {
		if err := f.Truncate(g.Size()); err != nil {
			_ = f.Close()
			return nil, false, err
		}
	}

	m, err := mmap.Map(f, int(g.Size()), true)
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	_ = m.Advise(mmap.AccessRandom)

	return &MmapDevice{geom: g, f: f, m: m}, created, nil
}

func (d *MmapDevice) ReadCluster(index int32) ([]byte, error) {
	data := d.m.Bytes()
	if data == nil {
		return nil, ErrClosed
	}
	if err := CheckIndex(d.geom, index); err != nil {
		return nil, err
	}
	off := int64(index) * int64(d.geom.ClusterSize)
	buf := make([]byte, d.geom.ClusterSize)
	copy(buf, data[off:])
	return buf, nil
}

func (d *MmapDevice) WriteCluster(index int32, data []byte) error {
	mapped := d.m.Bytes()
	if mapped == nil {
		return ErrClosed
	}
	if err := CheckWrite(d.geom, index, data); err != nil {
		return err
	}
	off := int64(index) * int64(d.geom.ClusterSize)
	copy(mapped[off:], data)
	return nil
}

func (d *MmapDevice) Geometry() Geometry { return d.geom }

func (d *MmapDevice) Sync() error {
	return d.m.Flush()
}

func (d *MmapDevice) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.m.Flush()
	if unmapErr := d.m.Close(); unmapErr != nil && err == nil {
		err = unmapErr
	}
	if closeErr := d.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	d.f = nil
	return err
}
