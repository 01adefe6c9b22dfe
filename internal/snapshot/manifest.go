package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/codec"
	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/hash"
)

// FormatVersion is the manifest layout written by Export.
const FormatVersion = 1

var (
	// ErrCorrupt is returned when snapshot data does not match its manifest.
	ErrCorrupt = errors.New("snapshot corrupt")

	// ErrUnsupported is returned for manifests this version cannot read.
	ErrUnsupported = errors.New("snapshot format unsupported")
)

// Frame locates one compressed run of clusters inside the image blob.
type Frame struct {
	Offset       int64  `json:"offset"`
	Length       int64  `json:"length"`
	FirstCluster int32  `json:"first_cluster"`
	Clusters     int    `json:"clusters"`
	Stored       bool   `json:"stored,omitempty"`
	CRC32C       uint32 `json:"crc32c"`
}

// Manifest describes a snapshot. It is written after the image blob, so a
// readable manifest implies a complete image.
type Manifest struct {
	Version       int             `json:"version"`
	Encoding      string          `json:"encoding"`
	Name          string          `json:"name"`
	Geometry      device.Geometry `json:"geometry"`
	Compression   Compression     `json:"compression"`
	FrameClusters int             `json:"frame_clusters"`
	Frames        []Frame         `json:"frames"`
	// Digest is the CRC32C over the big-endian frame checksums in order.
	Digest    uint32    `json:"digest"`
	RawBytes  int64     `json:"raw_bytes"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ManifestName returns the blob name holding the manifest of snapshot name.
func ManifestName(name string) string { return name + ".manifest" }

// Ratio returns compressed size over raw size.
func (m *Manifest) Ratio() float64 {
	if m.RawBytes == 0 {
		return 0
	}
	return float64(m.Bytes) / float64(m.RawBytes)
}

func digest(frames []Frame) uint32 {
	buf := make([]byte, 4*len(frames))
	for i, f := range frames {
		binary.BigEndian.PutUint32(buf[4*i:], f.CRC32C)
	}
	return hash.CRC32C(buf)
}

// Validate checks that the frames tile the whole volume in order.
func (m *Manifest) Validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupported, m.Version)
	}
	if _, err := ParseCompression(string(m.Compression)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if err := m.Geometry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var (
		next   int32
		offset int64
	)
	for i, f := range m.Frames {
		if f.FirstCluster != next || f.Clusters <= 0 || f.Offset != offset || f.Length < 0 {
			return fmt.Errorf("%w: frame %d out of sequence", ErrCorrupt, i)
		}
		if f.Clusters > m.Geometry.ClusterCount-int(next) {
			return fmt.Errorf("%w: frame %d runs past cluster %d", ErrCorrupt, i, m.Geometry.ClusterCount)
		}
		next += int32(f.Clusters)
		offset += f.Length
	}
	if int(next) != m.Geometry.ClusterCount {
		return fmt.Errorf("%w: frames cover %d of %d clusters", ErrCorrupt, next, m.Geometry.ClusterCount)
	}
	if offset != m.Bytes {
		return fmt.Errorf("%w: frames hold %d bytes, manifest says %d", ErrCorrupt, offset, m.Bytes)
	}
	if digest(m.Frames) != m.Digest {
		return fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return nil
}

// ReadManifest loads and validates the manifest of snapshot name. The
// codec recorded in the manifest must be known; c decodes the envelope.
func ReadManifest(ctx context.Context, store blobstore.BlobStore, name string, c codec.Codec) (Manifest, error) {
	if c == nil {
		c = codec.Default
	}
	data, err := blobstore.ReadAll(ctx, store, ManifestName(name))
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}
	if _, ok := codec.ByName(m.Encoding); !ok {
		return Manifest{}, fmt.Errorf("%w: manifest encoding %q", ErrUnsupported, m.Encoding)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
