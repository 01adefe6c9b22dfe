package vdisk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/fs"
	"github.com/hupe1980/vdisk/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var smallGeometry = Geometry{ClusterSize: 64, ClusterCount: 32}

func openMemory(t *testing.T, g Geometry, opts ...Option) *Volume {
	t.Helper()
	dev, err := device.NewMemoryDevice(g)
	require.NoError(t, err)
	v, err := OpenDevice(context.Background(), dev, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestDocsScenario(t *testing.T) {
	ctx := context.Background()
	v := openMemory(t, DefaultGeometry())
	root := v.Root()
	assert.Equal(t, int32(5), root)

	require.NoError(t, v.CreateDirectory(ctx, root, "DOCS"))
	docs, err := v.Lookup(ctx, root, "docs")
	require.NoError(t, err)

	require.NoError(t, v.CreateFile(ctx, docs, "A.TXT"))
	data := testutil.NewRNG(1).RandomBytes(2500)
	require.NoError(t, v.WriteFile(ctx, docs, "A.TXT", data))

	got, err := v.ReadFile(ctx, docs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ent, err := v.Stat(ctx, docs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "A.TXT", ent.DisplayName())
	assert.Equal(t, int32(2500), ent.Size)

	stats, err := v.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1024-6, stats.DataClusters)
	assert.Equal(t, 4, stats.UsedClusters)

	err = v.RemoveDirectory(ctx, root, "DOCS")
	assert.ErrorIs(t, err, ErrNotEmpty)
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()
	v := openMemory(t, smallGeometry)
	root := v.Root()

	require.NoError(t, v.CreateFile(ctx, root, "f"))
	require.NoError(t, v.CreateDirectory(ctx, root, "d"))

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate", v.CreateFile(ctx, root, "F"), ErrAlreadyExists},
		{"missing read", func() error { _, err := v.ReadFile(ctx, root, "nope"); return err }(), ErrNotFound},
		{"write dir", v.WriteFile(ctx, root, "d", []byte("x")), ErrWrongType},
		{"rmdir file", v.RemoveDirectory(ctx, root, "f"), ErrWrongType},
		{"empty name", v.CreateFile(ctx, root, "."), ErrInvalidName},
		{"out of space", v.WriteFile(ctx, root, "f", make([]byte, 64*64)), ErrOutOfSpace},
		{"bad dir head", func() error { _, err := v.List(ctx, 1); return err }(), ErrInvalidCluster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.want)
		})
	}

	err := v.WriteFile(ctx, root, "f", make([]byte, 64*64))
	var oos *OutOfSpaceError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 64, oos.Requested)
}

func TestTranslateErrorKeepsPublicErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrNotFound)
	assert.Same(t, err, translateError(err))
	assert.NoError(t, translateError(nil))

	other := errors.New("other")
	assert.Same(t, other, translateError(other))
}

func TestCorruptChainDetected(t *testing.T) {
	ctx := context.Background()
	v := openMemory(t, smallGeometry)
	root := v.Root()

	require.NoError(t, v.CreateFile(ctx, root, "f"))
	require.NoError(t, v.WriteFile(ctx, root, "f", make([]byte, 128)))
	ent, err := v.Stat(ctx, root, "f")
	require.NoError(t, err)

	require.NoError(t, v.fat.Set(ent.FirstCluster+1, ent.FirstCluster))

	_, err = v.ReadFile(ctx, root, "f")
	assert.ErrorIs(t, err, ErrCorruptChain)
	var cc *CorruptChainError
	require.ErrorAs(t, err, &cc)
	assert.Equal(t, ent.FirstCluster, cc.Head)

	report, err := v.Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []int32{ent.FirstCluster}, report.Corrupt)
}

func TestCopyMoveAppend(t *testing.T) {
	ctx := context.Background()
	v := openMemory(t, smallGeometry)
	root := v.Root()

	require.NoError(t, v.CreateFile(ctx, root, "a.txt"))
	require.NoError(t, v.WriteFile(ctx, root, "a.txt", []byte("hello")))
	require.NoError(t, v.AppendFile(ctx, root, "a.txt", []byte(" world")))
	require.NoError(t, v.CopyFile(ctx, root, "a.txt", "b.txt"))
	require.NoError(t, v.MoveFile(ctx, root, "b.txt", "c.txt"))

	_, ok, err := v.Find(ctx, root, "b.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := v.ReadFile(ctx, root, "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	entries, err := v.List(ctx, root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.DisplayName())
	}
	assert.ElementsMatch(t, []string{"A.TXT", "C.TXT"}, names)

	report, err := v.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	v := openMemory(t, smallGeometry, WithMetricsCollector(metrics))
	root := v.Root()

	require.NoError(t, v.CreateFile(ctx, root, "f"))
	require.NoError(t, v.WriteFile(ctx, root, "f", make([]byte, 100)))
	_, err := v.ReadFile(ctx, root, "missing")
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.Ops["create"].Count)
	assert.Equal(t, int64(1), stats.Ops["write"].Count)
	assert.Equal(t, int64(1), stats.Ops["read"].Errors)
	assert.Positive(t, stats.WriteClusters)
	assert.Positive(t, stats.ReadClusters)
	assert.Equal(t, stats.WriteClusters*64, stats.WriteBytes)
}

func TestClosedVolume(t *testing.T) {
	ctx := context.Background()
	dev, err := device.NewMemoryDevice(smallGeometry)
	require.NoError(t, err)
	v, err := OpenDevice(ctx, dev)
	require.NoError(t, err)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())

	assert.ErrorIs(t, v.CreateFile(ctx, v.Root(), "f"), ErrClosed)
	_, err = v.List(ctx, v.Root())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, v.Sync(ctx), ErrClosed)
}

func TestCanceledContext(t *testing.T) {
	v := openMemory(t, smallGeometry)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, v.CreateFile(ctx, v.Root(), "f"), context.Canceled)
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	v := openMemory(t, Geometry{ClusterSize: 128, ClusterCount: 256})
	root := v.Root()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("f%d", i)
			data := bytes.Repeat([]byte{byte(i)}, 300+i)
			assert.NoError(t, v.CreateFile(ctx, root, name))
			assert.NoError(t, v.WriteFile(ctx, root, name, data))
			got, err := v.ReadFile(ctx, root, name)
			assert.NoError(t, err)
			assert.Equal(t, data, got)
		}(i)
	}
	wg.Wait()

	entries, err := v.List(ctx, root)
	require.NoError(t, err)
	assert.Len(t, entries, 8)

	report, err := v.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestOpenInvalidGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	_, err := Open(context.Background(), path, WithGeometry(Geometry{ClusterSize: 10, ClusterCount: 10}))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestOpenSyncFailure(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule("disk.bin", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	path := filepath.Join(t.TempDir(), "disk.bin")
	_, err := Open(context.Background(), path, WithGeometry(smallGeometry), WithFileSystem(faulty))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestWriteFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(nil)
	// Format writes the superblock, the FAT run and the root cluster.
	g := DefaultGeometry()
	formatBytes := int64(6 * g.ClusterSize)
	faulty.AddRule("disk.bin", fs.Fault{FailAfterBytes: formatBytes + 2*int64(g.ClusterSize)})

	path := filepath.Join(t.TempDir(), "disk.bin")
	v, err := Open(ctx, path, WithFileSystem(faulty))
	require.NoError(t, err)
	root := v.Root()

	// One root cluster write for the entry, one data cluster, then failure.
	require.NoError(t, v.CreateFile(ctx, root, "big"))
	err = v.WriteFile(ctx, root, "big", make([]byte, 4*g.ClusterSize))
	assert.ErrorIs(t, err, fs.ErrInjected)

	ent, err := v.Stat(ctx, root, "big")
	require.NoError(t, err)
	assert.Equal(t, int32(0), ent.FirstCluster)
	assert.Equal(t, int32(0), ent.Size)

	report, err := v.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)

	// Saving the table needs more writes than the fault allows.
	assert.Error(t, v.Close())
}
