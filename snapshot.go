package vdisk

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/internal/resource"
	"github.com/hupe1980/vdisk/internal/snapshot"
)

// SnapshotManifest describes a stored snapshot.
type SnapshotManifest = snapshot.Manifest

// Compression names the frame compression of a snapshot.
type Compression = snapshot.Compression

// Frame compressions.
const (
	CompressionNone = snapshot.CompressionNone
	CompressionLZ4  = snapshot.CompressionLZ4
	CompressionZstd = snapshot.CompressionZstd
)

// ParseCompression parses "none", "lz4" or "zstd". The empty string selects
// zstd.
func ParseCompression(s string) (Compression, error) { return snapshot.ParseCompression(s) }

// SnapshotOption configures ExportSnapshot.
type SnapshotOption = snapshot.Option

// WithCompression selects the frame compression for ExportSnapshot.
func WithCompression(c Compression) SnapshotOption { return snapshot.WithCompression(c) }

// WithFrameClusters sets how many clusters are compressed together.
func WithFrameClusters(n int) SnapshotOption { return snapshot.WithFrameClusters(n) }

// WithWorkers bounds how many frames are processed in parallel.
func WithWorkers(n int) SnapshotOption {
	return snapshot.WithController(resource.NewController(resource.Config{MaxBackgroundWorkers: int64(n)}))
}

// ExportSnapshot saves the allocation table and copies the whole image to
// store under name. The volume is locked for the duration of the export.
func (v *Volume) ExportSnapshot(ctx context.Context, store blobstore.BlobStore, name string, opts ...SnapshotOption) (SnapshotManifest, error) {
	var m SnapshotManifest
	err := v.do(ctx, "export", v.Root(), name, func() error {
		if v.dirty {
			if err := v.save(); err != nil {
				return err
			}
		}
		var err error
		m, err = snapshot.Export(ctx, v.dev, store, name, v.snapshotOptions(opts)...)
		return err
	})
	return m, err
}

func (v *Volume) snapshotOptions(opts []SnapshotOption) []SnapshotOption {
	return append([]SnapshotOption{snapshot.WithLogger(v.logger.Logger)}, opts...)
}

// ImportSnapshot restores snapshot name from store into a new image file at
// path and opens it. The geometry comes from the snapshot; WithGeometry is
// ignored. An existing file at path is never overwritten.
func ImportSnapshot(ctx context.Context, store blobstore.BlobStore, name, path string, optFns ...Option) (*Volume, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if _, err := o.fileSystem.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	m, err := snapshot.ReadManifest(ctx, store, name, nil)
	if err != nil {
		return nil, translateError(err)
	}
	o.geometry = m.Geometry
	o.logger = o.logger.WithPath(path)

	dev, err := openImage(path, o)
	if err != nil {
		return nil, err
	}
	if _, err := snapshot.Import(ctx, store, name, dev, snapshot.WithLogger(o.logger.Logger)); err != nil {
		_ = dev.Close()
		_ = o.fileSystem.Remove(path)
		return nil, translateError(err)
	}

	v, err := open(ctx, dev, o)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return v, nil
}

// ListSnapshots returns the names of complete snapshots in store starting
// with prefix.
func ListSnapshots(ctx context.Context, store blobstore.BlobStore, prefix string) ([]string, error) {
	return snapshot.List(ctx, store, prefix)
}

// DeleteSnapshot removes a snapshot and its manifest.
func DeleteSnapshot(ctx context.Context, store blobstore.BlobStore, name string) error {
	return snapshot.Delete(ctx, store, name)
}
