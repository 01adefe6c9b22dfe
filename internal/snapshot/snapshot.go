package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/codec"
	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/hash"
	"github.com/hupe1980/vdisk/internal/resource"
	"golang.org/x/sync/errgroup"
)

// DefaultFrameClusters is the number of clusters compressed together.
const DefaultFrameClusters = 64

// Options configures Export and Import.
type Options struct {
	Compression   Compression
	FrameClusters int
	Codec         codec.Codec
	Controller    *resource.Controller
	Logger        *slog.Logger
	Now           func() time.Time
}

// Option configures Options.
type Option func(*Options)

// WithCompression selects the frame compression.
func WithCompression(c Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithFrameClusters sets how many clusters go into one frame.
func WithFrameClusters(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.FrameClusters = n
		}
	}
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		if c != nil {
			o.Codec = c
		}
	}
}

// WithController bounds frame parallelism by the controller's background
// worker slots.
func WithController(c *resource.Controller) Option {
	return func(o *Options) {
		if c != nil {
			o.Controller = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		Compression:   CompressionZstd,
		FrameClusters: DefaultFrameClusters,
		Codec:         codec.Default,
		Controller:    resource.NewController(resource.Config{MaxBackgroundWorkers: int64(runtime.GOMAXPROCS(0))}),
		Logger:        slog.New(slog.DiscardHandler),
		Now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// parallel runs fn for every frame index with at most the controller's
// worker count in flight.
func parallel(ctx context.Context, ctrl *resource.Controller, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ctrl.MaxBackgroundWorkers())
	for i := range n {
		g.Go(func() error {
			if err := ctrl.AcquireBackground(gctx); err != nil {
				return err
			}
			defer ctrl.ReleaseBackground()
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// Export writes every cluster of dev to store as the blob name plus its
// manifest. The device must not be written while Export runs.
func Export(ctx context.Context, dev device.Device, store blobstore.BlobStore, name string, opts ...Option) (Manifest, error) {
	o := buildOptions(opts)
	if _, err := ParseCompression(string(o.Compression)); err != nil {
		return Manifest{}, err
	}

	g := dev.Geometry()
	count := (g.ClusterCount + o.FrameClusters - 1) / o.FrameClusters
	frames := make([]Frame, count)
	payloads := make([][]byte, count)

	start := o.Now()
	err := parallel(ctx, o.Controller, count, func(ctx context.Context, i int) error {
		first := i * o.FrameClusters
		n := min(o.FrameClusters, g.ClusterCount-first)

		raw := make([]byte, 0, n*g.ClusterSize)
		for c := first; c < first+n; c++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf, err := dev.ReadCluster(int32(c))
			if err != nil {
				return fmt.Errorf("read cluster %d: %w", c, err)
			}
			raw = append(raw, buf...)
		}

		packed, stored, err := compressFrame(raw, o.Compression)
		if err != nil {
			return fmt.Errorf("compress frame %d: %w", i, err)
		}
		payloads[i] = packed
		frames[i] = Frame{
			FirstCluster: int32(first),
			Clusters:     n,
			Length:       int64(len(packed)),
			Stored:       stored,
			CRC32C:       hash.CRC32C(raw),
		}
		return nil
	})
	if err != nil {
		return Manifest{}, err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return Manifest{}, err
	}
	var offset int64
	for i := range frames {
		frames[i].Offset = offset
		offset += frames[i].Length
		if _, err := w.Write(payloads[i]); err != nil {
			_ = w.Close()
			_ = store.Delete(ctx, name)
			return Manifest{}, fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		_ = store.Delete(ctx, name)
		return Manifest{}, fmt.Errorf("write %s: %w", name, err)
	}

	m := Manifest{
		Version:       FormatVersion,
		Encoding:      o.Codec.Name(),
		Name:          name,
		Geometry:      g,
		Compression:   o.Compression,
		FrameClusters: o.FrameClusters,
		Frames:        frames,
		Digest:        digest(frames),
		RawBytes:      g.Size(),
		Bytes:         offset,
		CreatedAt:     start.UTC(),
	}
	data, err := o.Codec.Marshal(&m)
	if err != nil {
		return Manifest{}, err
	}
	if err := store.Put(ctx, ManifestName(name), data); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	o.Logger.Info("snapshot exported",
		"name", name,
		"frames", len(frames),
		"compression", string(m.Compression),
		"raw_bytes", m.RawBytes,
		"bytes", m.Bytes,
		"elapsed", o.Now().Sub(start),
	)
	return m, nil
}

// Import restores snapshot name onto dev, which must have the snapshot's
// geometry. Every frame is checked against its checksum before any cluster
// of it is written; a failure part way leaves dev partially overwritten.
func Import(ctx context.Context, store blobstore.BlobStore, name string, dev device.Device, opts ...Option) (Manifest, error) {
	o := buildOptions(opts)

	m, err := ReadManifest(ctx, store, name, o.Codec)
	if err != nil {
		return Manifest{}, err
	}
	g := dev.Geometry()
	if m.Geometry != g {
		return Manifest{}, fmt.Errorf("%w: snapshot is %dx%d, device is %dx%d", device.ErrInvalidGeometry,
			m.Geometry.ClusterSize, m.Geometry.ClusterCount, g.ClusterSize, g.ClusterCount)
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return Manifest{}, err
	}
	defer func() { _ = blob.Close() }()
	if blob.Size() != m.Bytes {
		return Manifest{}, fmt.Errorf("%w: image is %d bytes, manifest says %d", ErrCorrupt, blob.Size(), m.Bytes)
	}

	err = parallel(ctx, o.Controller, len(m.Frames), func(ctx context.Context, i int) error {
		f := m.Frames[i]
		packed, err := readFrame(ctx, blob, f)
		if err != nil {
			return fmt.Errorf("read frame %d: %w", i, err)
		}
		raw, err := decompressFrame(packed, m.Compression, f.Stored, f.Clusters*g.ClusterSize)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if hash.CRC32C(raw) != f.CRC32C {
			return fmt.Errorf("%w: frame %d checksum mismatch", ErrCorrupt, i)
		}
		for k := range f.Clusters {
			c := f.FirstCluster + int32(k)
			if err := dev.WriteCluster(c, raw[k*g.ClusterSize:(k+1)*g.ClusterSize]); err != nil {
				return fmt.Errorf("write cluster %d: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		return Manifest{}, err
	}
	if err := dev.Sync(); err != nil {
		return Manifest{}, err
	}

	o.Logger.Info("snapshot imported", "name", name, "frames", len(m.Frames), "bytes", m.Bytes)
	return m, nil
}

func readFrame(ctx context.Context, blob blobstore.Blob, f Frame) ([]byte, error) {
	if f.Length == 0 {
		return nil, nil
	}
	r, err := blob.ReadRange(ctx, f.Offset, f.Length)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	buf := make([]byte, f.Length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return buf, nil
}

// List returns the names of the snapshots in store whose name starts with
// prefix.
func List(ctx context.Context, store blobstore.BlobStore, prefix string) ([]string, error) {
	blobs, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range blobs {
		if base, ok := strings.CutSuffix(b, ".manifest"); ok {
			names = append(names, base)
		}
	}
	return names, nil
}

// Delete removes the manifest first so a partly deleted snapshot is never
// listed.
func Delete(ctx context.Context, store blobstore.BlobStore, name string) error {
	if err := store.Delete(ctx, ManifestName(name)); err != nil {
		return err
	}
	return store.Delete(ctx, name)
}
