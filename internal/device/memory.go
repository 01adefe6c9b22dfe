package device

// MemoryDevice keeps the whole volume in a byte slice. Used by tests and by
// snapshot import before an image is written out.
type MemoryDevice struct {
	geom   Geometry
	data   []byte
	closed bool
}

// NewMemoryDevice allocates a zero-filled volume.
func NewMemoryDevice(g Geometry) (*MemoryDevice, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &MemoryDevice{geom: g, data: make([]byte, g.Size())}, nil
}

func (d *MemoryDevice) ReadCluster(index int32) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if err := CheckIndex(d.geom, index); err != nil {
		return nil, err
	}
	off := int64(index) * int64(d.geom.ClusterSize)
	buf := make([]byte, d.geom.ClusterSize)
	copy(buf, d.data[off:])
	return buf, nil
}

func (d *MemoryDevice) WriteCluster(index int32, data []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := CheckWrite(d.geom, index, data); err != nil {
		return err
	}
	off := int64(index) * int64(d.geom.ClusterSize)
	copy(d.data[off:], data)
	return nil
}

func (d *MemoryDevice) Geometry() Geometry { return d.geom }

func (d *MemoryDevice) Sync() error { return nil }

func (d *MemoryDevice) Close() error {
	d.closed = true
	return nil
}

// Bytes returns the raw image. The slice aliases the device content.
func (d *MemoryDevice) Bytes() []byte { return d.data }
