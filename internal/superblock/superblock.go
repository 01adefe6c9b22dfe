package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/vdisk/internal/conv"
	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/hash"
)

// Version is the header format written by this package.
const Version uint16 = 1

const (
	labelLen  = 11
	offVer    = 4
	offSize   = 8
	offCount  = 12
	offFAT    = 16
	offFATLen = 20
	offRoot   = 24
	offData   = 28
	offLabel  = 32
	offCRC    = 44
	headerLen = 48
)

var magic = [4]byte{'V', 'D', 'S', 'K'}

var (
	// ErrBadSuperblock is returned when cluster 0 holds a header that is
	// damaged or describes a different layout.
	ErrBadSuperblock = errors.New("bad superblock")

	// ErrNotFormatted is returned when cluster 0 is entirely zero.
	ErrNotFormatted = errors.New("volume has no superblock")
)

// Superblock describes a formatted volume.
type Superblock struct {
	Version  uint16
	Geometry device.Geometry
	Label    string
}

// New returns a header for g with the current format version.
func New(g device.Geometry, label string) Superblock {
	return Superblock{Version: Version, Geometry: g, Label: label}
}

// Encode renders the header into a zero-padded cluster.
func (s Superblock) Encode() ([]byte, error) {
	g := s.Geometry
	if err := g.Validate(); err != nil {
		return nil, err
	}
	size, err := conv.IntToUint32(g.ClusterSize)
	if err != nil {
		return nil, err
	}
	count, err := conv.IntToUint32(g.ClusterCount)
	if err != nil {
		return nil, err
	}

	buf := device.Zero(g)
	copy(buf, magic[:])
	le := binary.LittleEndian
	le.PutUint16(buf[offVer:], s.Version)
	le.PutUint32(buf[offSize:], size)
	le.PutUint32(buf[offCount:], count)
	le.PutUint32(buf[offFAT:], uint32(device.FATStart))
	le.PutUint32(buf[offFATLen:], uint32(g.FATClusters()))
	le.PutUint32(buf[offRoot:], uint32(g.RootCluster()))
	le.PutUint32(buf[offData:], uint32(g.DataStart()))
	conv.PutField(buf[offLabel:offLabel+labelLen], s.Label)
	le.PutUint32(buf[offCRC:], hash.CRC32C(buf[:offCRC]))
	return buf, nil
}

// Decode parses a header from the first bytes of cluster 0.
func Decode(buf []byte) (Superblock, error) {
	if len(buf) < headerLen {
		return Superblock{}, fmt.Errorf("%w: %d bytes, need %d", ErrBadSuperblock, len(buf), headerLen)
	}
	if allZero(buf) {
		return Superblock{}, ErrNotFormatted
	}
	if !bytes.Equal(buf[:4], magic[:]) {
		return Superblock{}, fmt.Errorf("%w: magic %q", ErrBadSuperblock, buf[:4])
	}
	le := binary.LittleEndian
	if want, got := le.Uint32(buf[offCRC:]), hash.CRC32C(buf[:offCRC]); want != got {
		return Superblock{}, fmt.Errorf("%w: checksum %08x, computed %08x", ErrBadSuperblock, want, got)
	}

	s := Superblock{Version: le.Uint16(buf[offVer:])}
	if s.Version != Version {
		return Superblock{}, fmt.Errorf("%w: unsupported version %d", ErrBadSuperblock, s.Version)
	}
	size, err := conv.Uint32ToInt(le.Uint32(buf[offSize:]))
	if err != nil {
		return Superblock{}, fmt.Errorf("%w: %w", ErrBadSuperblock, err)
	}
	count, err := conv.Uint32ToInt(le.Uint32(buf[offCount:]))
	if err != nil {
		return Superblock{}, fmt.Errorf("%w: %w", ErrBadSuperblock, err)
	}
	s.Geometry = device.Geometry{ClusterSize: size, ClusterCount: count}
	if err := s.Geometry.Validate(); err != nil {
		return Superblock{}, fmt.Errorf("%w: %w", ErrBadSuperblock, err)
	}

	g := s.Geometry
	layout := [...]struct {
		off  int
		want int32
	}{
		{offFAT, device.FATStart},
		{offFATLen, g.FATClusters()},
		{offRoot, g.RootCluster()},
		{offData, g.DataStart()},
	}
	for _, f := range layout {
		if got := int32(le.Uint32(buf[f.off:])); got != f.want {
			return Superblock{}, fmt.Errorf("%w: layout field at %d is %d, want %d", ErrBadSuperblock, f.off, got, f.want)
		}
	}

	s.Label = conv.FieldToString(buf[offLabel : offLabel+labelLen])
	return s, nil
}

// Write stores the header in cluster 0 of dev.
func Write(dev device.Device, s Superblock) error {
	if s.Geometry != dev.Geometry() {
		return fmt.Errorf("%w: header geometry %+v does not match device %+v", device.ErrInvalidGeometry, s.Geometry, dev.Geometry())
	}
	buf, err := s.Encode()
	if err != nil {
		return err
	}
	return dev.WriteCluster(device.SuperblockCluster, buf)
}

// Read loads and validates the header in cluster 0 of dev. A header whose
// geometry differs from the device is rejected.
func Read(dev device.Device) (Superblock, error) {
	buf, err := dev.ReadCluster(device.SuperblockCluster)
	if err != nil {
		return Superblock{}, err
	}
	s, err := Decode(buf)
	if err != nil {
		return Superblock{}, err
	}
	if s.Geometry != dev.Geometry() {
		return Superblock{}, fmt.Errorf("%w: volume formatted as %dx%d, opened as %dx%d",
			ErrBadSuperblock, s.Geometry.ClusterSize, s.Geometry.ClusterCount,
			dev.Geometry().ClusterSize, dev.Geometry().ClusterCount)
	}
	return s, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
