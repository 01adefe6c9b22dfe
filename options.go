package vdisk

import (
	"log/slog"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/fs"
)

// DeviceKind selects how Open accesses the backing file.
type DeviceKind = device.Kind

const (
	// DeviceFile uses positioned reads and writes on the file.
	DeviceFile = device.KindFile
	// DeviceMmap maps the whole file into memory.
	DeviceMmap = device.KindMmap
)

// ParseDeviceKind parses "file" or "mmap". The empty string selects
// DeviceFile.
func ParseDeviceKind(s string) (DeviceKind, error) { return device.ParseKind(s) }

// Geometry is the fixed shape of a volume.
type Geometry = device.Geometry

// DefaultGeometry returns the 1024 clusters of 1024 bytes layout.
func DefaultGeometry() Geometry { return device.DefaultGeometry() }

type options struct {
	geometry         Geometry
	label            string
	logger           *Logger
	metricsCollector MetricsCollector
	autoSave         bool
	deviceKind       DeviceKind
	ioLimit          int64
	fileSystem       fs.FileSystem
}

func defaultOptions() options {
	return options{
		geometry:         device.DefaultGeometry(),
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		deviceKind:       DeviceFile,
		fileSystem:       fs.Default,
	}
}

// Option configures Open and OpenDevice.
type Option func(*options)

// WithGeometry sets the cluster size and count used when formatting a new
// volume. An existing volume must have been formatted with the same
// geometry; otherwise Open fails with ErrBadSuperblock.
func WithGeometry(g Geometry) Option {
	return func(o *options) {
		o.geometry = g
	}
}

// WithLabel sets the volume label written to the superblock at format time.
// Labels longer than 11 bytes are truncated.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vdisk.NewJSONLogger(slog.LevelInfo)
//	v, _ := vdisk.Open(ctx, "disk.bin", vdisk.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable
// metrics collection.
//
//	metrics := &vdisk.BasicMetricsCollector{}
//	v, _ := vdisk.Open(ctx, "disk.bin", vdisk.WithMetricsCollector(metrics))
//	// ... use v ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithAutoSave persists the allocation table after every successful mutating
// operation instead of only on Sync and Close.
func WithAutoSave(enabled bool) Option {
	return func(o *options) {
		o.autoSave = enabled
	}
}

// WithDeviceKind selects the backing file access method for Open.
// OpenDevice ignores it.
func WithDeviceKind(kind DeviceKind) Option {
	return func(o *options) {
		o.deviceKind = kind
	}
}

// WithIOLimit caps cluster transfers to bytesPerSec. Zero or less means
// unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithFileSystem sets the file system Open uses for DeviceFile volumes.
// Mainly useful for fault injection in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fileSystem = fsys
	}
}
