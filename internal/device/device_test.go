package device

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hupe1980/vdisk/internal/fs"
	"github.com/hupe1980/vdisk/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{ClusterSize: 64, ClusterCount: 32}

func TestGeometryLayout(t *testing.T) {
	g := DefaultGeometry()
	require.NoError(t, g.Validate())

	assert.Equal(t, int32(4), g.FATClusters())
	assert.Equal(t, int32(5), g.RootCluster())
	assert.Equal(t, int32(6), g.DataStart())
	assert.Equal(t, int64(1024*1024), g.Size())
	assert.Equal(t, 32, g.RecordsPerCluster())

	small := testGeometry
	assert.Equal(t, int32(2), small.FATClusters()) // 32*4 = 128 bytes
	assert.Equal(t, int32(3), small.RootCluster())
	assert.Equal(t, int32(4), small.DataStart())
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
	}{
		{"cluster too small", Geometry{ClusterSize: 32, ClusterCount: 64}},
		{"cluster not record aligned", Geometry{ClusterSize: 100, ClusterCount: 64}},
		{"zero clusters", Geometry{ClusterSize: 64, ClusterCount: 0}},
		{"no data region", Geometry{ClusterSize: 64, ClusterCount: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.g.Validate(), ErrInvalidGeometry)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindFile, k)

	k, err = ParseKind("mmap")
	require.NoError(t, err)
	assert.Equal(t, KindMmap, k)

	_, err = ParseKind("tape")
	assert.Error(t, err)
}

// exerciseDevice runs the shared Device contract against dev.
func exerciseDevice(t *testing.T, dev Device) {
	t.Helper()
	g := dev.Geometry()

	first, err := dev.ReadCluster(0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, g.ClusterSize), first)

	payload := bytes.Repeat([]byte{0xAB}, g.ClusterSize)
	require.NoError(t, dev.WriteCluster(int32(g.ClusterCount-1), payload))

	got, err := dev.ReadCluster(int32(g.ClusterCount - 1))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Returned buffers are copies.
	got[0] = 0
	again, err := dev.ReadCluster(int32(g.ClusterCount - 1))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), again[0])

	_, err = dev.ReadCluster(int32(g.ClusterCount))
	var ice *InvalidClusterError
	require.ErrorAs(t, err, &ice)
	assert.ErrorIs(t, err, ErrInvalidCluster)
	assert.Equal(t, int32(g.ClusterCount), ice.Index)

	_, err = dev.ReadCluster(-1)
	assert.ErrorIs(t, err, ErrInvalidCluster)

	err = dev.WriteCluster(1, make([]byte, g.ClusterSize-1))
	var sme *SizeMismatchError
	require.ErrorAs(t, err, &sme)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, g.ClusterSize, sme.Expected)

	assert.ErrorIs(t, dev.WriteCluster(-5, payload), ErrInvalidCluster)

	require.NoError(t, dev.Sync())
}

func TestMemoryDevice(t *testing.T) {
	dev, err := NewMemoryDevice(testGeometry)
	require.NoError(t, err)
	exerciseDevice(t, dev)

	require.NoError(t, dev.Close())
	_, err = dev.ReadCluster(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, created, err := OpenFile(nil, path, testGeometry)
	require.NoError(t, err)
	assert.True(t, created)
	exerciseDevice(t, dev)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, testGeometry.Size(), info.Size())

	dev, created, err = OpenFile(fs.Default, path, testGeometry)
	require.NoError(t, err)
	assert.False(t, created)
	defer dev.Close()

	last, err := dev.ReadCluster(int32(testGeometry.ClusterCount - 1))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), last[0])
}

func TestFileDeviceRejectsLargerImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, testGeometry.Size()+1), 0o644))

	_, _, err := OpenFile(nil, path, testGeometry)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestFileDeviceInjectedWriteFault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: int64(testGeometry.ClusterSize)})

	dev, _, err := OpenFile(ffs, path, testGeometry)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, dev.WriteCluster(4, Zero(testGeometry)))
	err = dev.WriteCluster(5, Zero(testGeometry))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestMmapDevice(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mmap device is unix only")
	}
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, created, err := OpenMmap(path, testGeometry)
	require.NoError(t, err)
	assert.True(t, created)
	exerciseDevice(t, dev)
	require.NoError(t, dev.Close())

	// Content reached the file.
	fdev, created, err := OpenFile(nil, path, testGeometry)
	require.NoError(t, err)
	assert.False(t, created)
	defer fdev.Close()
	last, err := fdev.ReadCluster(int32(testGeometry.ClusterCount - 1))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), last[0])
}

func TestThrottled(t *testing.T) {
	mem, err := NewMemoryDevice(testGeometry)
	require.NoError(t, err)

	ctrl := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	dev := Throttle(context.Background(), mem, ctrl)
	exerciseDevice(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := Throttle(ctx, mem, resource.NewController(resource.Config{IOLimitBytesPerSec: 1}))
	_, err = blocked.ReadCluster(0)
	assert.Error(t, err)
}
