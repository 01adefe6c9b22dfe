package vdisk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/directory"
	"github.com/hupe1980/vdisk/internal/engine"
	"github.com/hupe1980/vdisk/internal/fat"
	"github.com/hupe1980/vdisk/internal/resource"
	"github.com/hupe1980/vdisk/internal/superblock"
)

// Entry is one directory record. Name holds the stored 8.3 field; use
// DisplayName for the BASE.EXT form.
type Entry = directory.Entry

// Attr is the entry attribute byte.
type Attr = directory.Attr

const (
	// AttrDirectory marks a subdirectory.
	AttrDirectory = directory.AttrDirectory
	// AttrFile marks a regular file.
	AttrFile = directory.AttrFile
)

// CheckReport is the result of a consistency check.
type CheckReport = fat.Report

// Stats describes space usage of a volume.
type Stats struct {
	Geometry      Geometry `json:"geometry"`
	Label         string   `json:"label,omitempty"`
	DataClusters  int      `json:"data_clusters"`
	FreeClusters  int      `json:"free_clusters"`
	UsedClusters  int      `json:"used_clusters"`
	FreeBytes     int64    `json:"free_bytes"`
	Formatted     bool     `json:"formatted"`
	AutoSave      bool     `json:"auto_save"`
	UnsavedWrites bool     `json:"unsaved_writes"`
}

// FormatName converts a name to the stored 11-character 8.3 form.
func FormatName(name string) string { return directory.FormatName(name) }

// Volume is an open virtual disk. All methods are safe to call from several
// goroutines, but operations run one at a time.
type Volume struct {
	mu     sync.Mutex
	dev    device.Device
	fat    *fat.Table
	eng    *engine.Engine
	sb     superblock.Superblock
	legacy bool
	dirty  bool
	closed bool

	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// Open opens the volume stored in the file at path, creating and formatting
// it when the file does not exist yet.
func Open(ctx context.Context, path string, optFns ...Option) (*Volume, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.geometry.Validate(); err != nil {
		return nil, translateError(err)
	}

	dev, err := openImage(path, opts)
	if err != nil {
		return nil, err
	}

	opts.logger = opts.logger.WithPath(path)
	v, err := open(ctx, dev, opts)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return v, nil
}

// openImage opens the backing file at path with the configured geometry.
func openImage(path string, opts options) (device.Device, error) {
	var (
		dev device.Device
		err error
	)
	switch opts.deviceKind {
	case DeviceMmap:
		dev, _, err = device.OpenMmap(path, opts.geometry)
	case DeviceFile, "":
		dev, _, err = device.OpenFile(opts.fileSystem, path, opts.geometry)
	default:
		err = fmt.Errorf("unknown device kind %q", opts.deviceKind)
	}
	if err != nil {
		return nil, translateError(fmt.Errorf("open %s: %w", path, err))
	}
	return dev, nil
}

// OpenDevice opens a volume on an existing device. A device whose
// superblock and allocation table are both blank is formatted. The device
// geometry overrides WithGeometry. Closing the volume closes the device.
func OpenDevice(ctx context.Context, dev device.Device, optFns ...Option) (*Volume, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.geometry = dev.Geometry()
	return open(ctx, dev, opts)
}

func open(ctx context.Context, dev device.Device, opts options) (*Volume, error) {
	if opts.ioLimit > 0 {
		ctrl := resource.NewController(resource.Config{IOLimitBytesPerSec: opts.ioLimit})
		// The limiter outlives the call that opened the volume.
		dev = device.Throttle(context.WithoutCancel(ctx), dev, ctrl)
	}
	dev = &meteredDevice{Device: dev, metrics: opts.metricsCollector}

	tbl := fat.New(dev)
	v := &Volume{
		dev:     dev,
		fat:     tbl,
		eng:     engine.New(dev, tbl, engine.WithLogger(opts.logger.Logger)),
		opts:    opts,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}
	if err := v.mount(ctx); err != nil {
		return nil, translateError(err)
	}
	return v, nil
}

// mount loads an existing volume or formats a blank one. An image with a
// valid allocation table but no superblock is loaded as is.
func (v *Volume) mount(ctx context.Context) error {
	sb, err := superblock.Read(v.dev)
	switch {
	case err == nil:
		v.sb = sb
		if err := v.fat.Load(); err != nil {
			return err
		}
		v.logger.LogLoad(ctx, v.fat.FreeCount(), false)
		return nil
	case !errors.Is(err, superblock.ErrNotFormatted):
		return err
	}

	if err := v.fat.Load(); err != nil {
		return err
	}
	if head, _ := v.fat.Get(device.SuperblockCluster); head == fat.End {
		v.legacy = true
		v.sb = superblock.Superblock{Geometry: v.dev.Geometry()}
		v.logger.LogLoad(ctx, v.fat.FreeCount(), true)
		return nil
	}
	return v.format(ctx)
}

func (v *Volume) format(ctx context.Context) error {
	g := v.dev.Geometry()
	v.sb = superblock.New(g, v.opts.label)
	if err := superblock.Write(v.dev, v.sb); err != nil {
		return err
	}
	v.fat.Initialize()
	if err := v.dev.WriteCluster(g.RootCluster(), device.Zero(g)); err != nil {
		return err
	}
	if err := v.fat.Save(); err != nil {
		return err
	}
	if err := v.dev.Sync(); err != nil {
		return err
	}
	v.logger.LogFormat(ctx, g.ClusterSize, g.ClusterCount, v.sb.Label)
	return nil
}

// Root returns the head cluster of the root directory.
func (v *Volume) Root() int32 { return v.eng.Root() }

// Geometry returns the volume geometry.
func (v *Volume) Geometry() Geometry { return v.dev.Geometry() }

// Label returns the label stored in the superblock.
func (v *Volume) Label() string { return v.sb.Label }

// CreateFile creates an empty file in dir.
func (v *Volume) CreateFile(ctx context.Context, dir int32, name string) error {
	return v.mutate(ctx, "create", dir, name, func() error {
		return v.eng.Create(dir, name)
	})
}

// WriteFile replaces the content of an existing file.
func (v *Volume) WriteFile(ctx context.Context, dir int32, name string, data []byte) error {
	return v.mutate(ctx, "write", dir, name, func() error {
		return v.eng.Write(dir, name, data)
	})
}

// AppendFile appends data to an existing file.
func (v *Volume) AppendFile(ctx context.Context, dir int32, name string, data []byte) error {
	return v.mutate(ctx, "append", dir, name, func() error {
		return v.eng.Append(dir, name, data)
	})
}

// ReadFile returns the content of a file.
func (v *Volume) ReadFile(ctx context.Context, dir int32, name string) ([]byte, error) {
	var data []byte
	err := v.do(ctx, "read", dir, name, func() error {
		var err error
		data, err = v.eng.Read(dir, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteFile removes a file and releases its clusters.
func (v *Volume) DeleteFile(ctx context.Context, dir int32, name string) error {
	return v.mutate(ctx, "delete", dir, name, func() error {
		return v.eng.Delete(dir, name)
	})
}

// CopyFile copies src to a new file dst in the same directory.
func (v *Volume) CopyFile(ctx context.Context, dir int32, src, dst string) error {
	return v.mutate(ctx, "copy", dir, src+" -> "+dst, func() error {
		return v.eng.Copy(dir, src, dst)
	})
}

// MoveFile renames src to dst within dir.
func (v *Volume) MoveFile(ctx context.Context, dir int32, src, dst string) error {
	return v.mutate(ctx, "move", dir, src+" -> "+dst, func() error {
		return v.eng.Move(dir, src, dst)
	})
}

// CreateDirectory creates an empty subdirectory.
func (v *Volume) CreateDirectory(ctx context.Context, dir int32, name string) error {
	return v.mutate(ctx, "mkdir", dir, name, func() error {
		return v.eng.CreateDirectory(dir, name)
	})
}

// RemoveDirectory removes an empty subdirectory.
func (v *Volume) RemoveDirectory(ctx context.Context, dir int32, name string) error {
	return v.mutate(ctx, "rmdir", dir, name, func() error {
		return v.eng.RemoveDirectory(dir, name)
	})
}

// List returns the entries of dir in on-disk order.
func (v *Volume) List(ctx context.Context, dir int32) ([]Entry, error) {
	var entries []Entry
	err := v.do(ctx, "list", dir, "", func() error {
		var err error
		entries, err = v.eng.List(dir)
		return err
	})
	return entries, err
}

// Find looks up name in dir.
func (v *Volume) Find(ctx context.Context, dir int32, name string) (Entry, bool, error) {
	var (
		ent Entry
		ok  bool
	)
	err := v.do(ctx, "find", dir, name, func() error {
		var err error
		ent, ok, err = v.eng.Find(dir, name)
		return err
	})
	return ent, ok, err
}

// Stat returns the entry for name in dir.
func (v *Volume) Stat(ctx context.Context, dir int32, name string) (Entry, error) {
	var ent Entry
	err := v.do(ctx, "stat", dir, name, func() error {
		var err error
		ent, err = v.eng.Stat(dir, name)
		return err
	})
	return ent, err
}

// Lookup resolves a subdirectory name in dir to its head cluster.
func (v *Volume) Lookup(ctx context.Context, dir int32, name string) (int32, error) {
	var head int32
	err := v.do(ctx, "lookup", dir, name, func() error {
		var err error
		head, err = v.eng.Lookup(dir, name)
		return err
	})
	return head, err
}

// Stats reports space usage.
func (v *Volume) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := v.do(ctx, "stats", v.Root(), "", func() error {
		g := v.dev.Geometry()
		free := v.fat.FreeCount()
		data := g.ClusterCount - int(g.DataStart())
		s = Stats{
			Geometry:      g,
			Label:         v.sb.Label,
			DataClusters:  data,
			FreeClusters:  free,
			UsedClusters:  data - free,
			FreeBytes:     int64(free) * int64(g.ClusterSize),
			Formatted:     !v.legacy,
			AutoSave:      v.opts.autoSave,
			UnsavedWrites: v.dirty,
		}
		return nil
	})
	return s, err
}

// Check verifies that every allocated cluster is owned by exactly one chain
// reachable from the root.
func (v *Volume) Check(ctx context.Context) (CheckReport, error) {
	var r CheckReport
	err := v.do(ctx, "check", v.Root(), "", func() error {
		r = v.eng.Check()
		v.logger.LogCheck(ctx, len(r.Lost), len(r.CrossLinked), len(r.Corrupt))
		return nil
	})
	return r, err
}

// Sync writes the allocation table and flushes the device.
func (v *Volume) Sync(ctx context.Context) error {
	return v.do(ctx, "sync", v.Root(), "", v.save)
}

// do runs fn under the volume lock and records metrics and logs.
func (v *Volume) do(ctx context.Context, op string, dir int32, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}

	start := time.Now()
	err := translateError(fn())
	v.metrics.RecordOp(op, time.Since(start), err)
	v.logger.LogOp(ctx, op, dir, name, err)
	return err
}

// mutate is do for operations that change the allocation table.
func (v *Volume) mutate(ctx context.Context, op string, dir int32, name string, fn func() error) error {
	return v.do(ctx, op, dir, name, func() error {
		err := fn()
		// Failed operations may still have moved clusters.
		v.dirty = true
		if err != nil || !v.opts.autoSave {
			return err
		}
		return v.save()
	})
}

// save persists the table; the caller holds the lock.
func (v *Volume) save() error {
	err := v.fat.Save()
	if err == nil {
		err = v.dev.Sync()
	}
	if err == nil {
		v.dirty = false
	}
	v.logger.LogSave(context.Background(), err)
	return err
}

// meteredDevice reports every cluster transfer to a MetricsCollector.
type meteredDevice struct {
	device.Device
	metrics MetricsCollector
}

func (d *meteredDevice) ReadCluster(index int32) ([]byte, error) {
	buf, err := d.Device.ReadCluster(index)
	if err == nil {
		d.metrics.RecordIO(true, len(buf))
	}
	return buf, err
}

func (d *meteredDevice) WriteCluster(index int32, data []byte) error {
	err := d.Device.WriteCluster(index, data)
	if err == nil {
		d.metrics.RecordIO(false, len(data))
	}
	return err
}
