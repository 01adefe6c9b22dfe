package device

import (
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/vdisk/internal/fs"
)

// FileDevice serves clusters with positional I/O on an image file.
type FileDevice struct {
	geom Geometry
	f    fs.File
}

// OpenFile opens or creates the image at path. A new or shorter file is
// extended to the full geometry size; created reports whether the image did
// not exist before.
func OpenFile(fsys fs.FileSystem, path string, g Geometry) (dev *FileDevice, created bool, err error) {
	if err := g.Validate(); err != nil {
		return nil, false, err
	}
	if fsys == nil {
		fsys = fs.Default
	}

	_, statErr := fsys.Stat(path)
	switch {
	case os.IsNotExist(statErr):
		created = true
	case statErr != nil:
		return nil, false, statErr
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
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

	return &FileDevice{geom: g, f: f}, created, nil
}

func (d *FileDevice) ReadCluster(index int32) ([]byte, error) {
	if d.f == nil {
		return nil, ErrClosed
	}
	if err := CheckIndex(d.geom, index); err != nil {
		return nil, err
	}
	buf := make([]byte, d.geom.ClusterSize)
	n, err := d.f.ReadAt(buf, d.offset(index))
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return nil, fmt.Errorf("read cluster %d: %w", index, err)
	}
	return buf, nil
}

func (d *FileDevice) WriteCluster(index int32, data []byte) error {
	if d.f == nil {
		return ErrClosed
	}
	if err := CheckWrite(d.geom, index, data); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(data, d.offset(index)); err != nil {
		return fmt.Errorf("write cluster %d: %w", index, err)
	}
	return nil
}

func (d *FileDevice) Geometry() Geometry { return d.geom }

func (d *FileDevice) Sync() error {
	if d.f == nil {
		return ErrClosed
	}
	return d.f.Sync()
}

func (d *FileDevice) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Sync()
	if closeErr := d.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	d.f = nil
	return err
}

func (d *FileDevice) offset(index int32) int64 {
	return int64(index) * int64(d.geom.ClusterSize)
}
