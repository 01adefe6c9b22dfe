package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/directory"
	"github.com/hupe1980/vdisk/internal/fat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 16 clusters of 64 bytes: FAT at 1, root at 2, 13 data clusters from 3.
var smallGeometry = device.Geometry{ClusterSize: 64, ClusterCount: 16}

func newEngine(t *testing.T, g device.Geometry) *Engine {
	t.Helper()
	dev, err := device.NewMemoryDevice(g)
	require.NoError(t, err)
	return newEngineOn(t, dev)
}

func newEngineOn(t *testing.T, dev device.Device) *Engine {
	t.Helper()
	tbl := fat.New(dev)
	tbl.Initialize()
	return New(dev, tbl)
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func TestDocsScenario(t *testing.T) {
	e := newEngine(t, device.DefaultGeometry())
	root := e.Root()

	require.NoError(t, e.CreateDirectory(root, "docs"))
	docs, err := e.Lookup(root, "DOCS")
	require.NoError(t, err)
	assert.Equal(t, int32(6), docs)

	require.NoError(t, e.Create(docs, "a.txt"))
	data := payload(2500)
	require.NoError(t, e.Write(docs, "a.txt", data))

	ent, err := e.Stat(docs, "A.TXT")
	require.NoError(t, err)
	assert.Equal(t, int32(2500), ent.Size)

	chain, err := e.Table().FollowChain(ent.FirstCluster)
	require.NoError(t, err)
	assert.Len(t, chain, 3)

	got, err := e.Read(docs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.ErrorIs(t, e.RemoveDirectory(root, "docs"), ErrNotEmpty)

	require.NoError(t, e.Delete(docs, "a.txt"))
	require.NoError(t, e.RemoveDirectory(root, "docs"))
	assert.Equal(t, 1024-6, e.Table().FreeCount())
	assert.True(t, e.Check().Clean())
}

func TestWriteReadSizes(t *testing.T) {
	g := device.Geometry{ClusterSize: 64, ClusterCount: 64}
	sizes := []int{0, 1, 63, 64, 65, 128, 64 * 5, 64*5 + 17}

	for _, n := range sizes {
		e := newEngine(t, g)
		root := e.Root()
		free := e.Table().FreeCount()

		require.NoError(t, e.Create(root, "f.bin"))
		data := payload(n)
		require.NoError(t, e.Write(root, "f.bin", data), "size %d", n)

		got, err := e.Read(root, "f.bin")
		require.NoError(t, err)
		assert.Equal(t, data, got, "size %d", n)

		want := (n + 63) / 64
		assert.Equal(t, free-want, e.Table().FreeCount(), "size %d", n)

		ent, err := e.Stat(root, "f.bin")
		require.NoError(t, err)
		if n == 0 {
			assert.Equal(t, int32(0), ent.FirstCluster)
		}
	}
}

func TestOverwriteReusesClusters(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()
	free := e.Table().FreeCount()

	require.NoError(t, e.Create(root, "f"))
	require.NoError(t, e.Write(root, "f", payload(3*64)))
	require.NoError(t, e.Write(root, "f", []byte("short")))

	got, err := e.Read(root, "f")
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), got)
	assert.Equal(t, free-1, e.Table().FreeCount())

	// Overwrite with more data than is free beyond the old chain; only
	// possible because the old chain is released first.
	big := payload(free * 64)
	require.NoError(t, e.Write(root, "f", big))
	got, err = e.Read(root, "f")
	require.NoError(t, err)
	assert.Equal(t, big, got)
	assert.Equal(t, 0, e.Table().FreeCount())

	report := e.Check()
	assert.True(t, report.Clean(), "%+v", report)
}

func TestWriteOutOfSpaceKeepsOldContent(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "keep"))
	old := payload(2 * 64)
	require.NoError(t, e.Write(root, "keep", old))
	free := e.Table().FreeCount()

	err := e.Write(root, "keep", payload(64*64))
	require.Error(t, err)
	assert.ErrorIs(t, err, fat.ErrOutOfSpace)

	var oos *fat.OutOfSpaceError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 64, oos.Requested)

	got, err := e.Read(root, "keep")
	require.NoError(t, err)
	assert.Equal(t, old, got)
	assert.Equal(t, free, e.Table().FreeCount())
	assert.True(t, e.Check().Clean())
}

type failingDevice struct {
	device.Device
	failAt int32
}

var errWriteFailed = errors.New("write failed")

func (d *failingDevice) WriteCluster(index int32, data []byte) error {
	if index == d.failAt {
		return errWriteFailed
	}
	return d.Device.WriteCluster(index, data)
}

func TestWriteDeviceFailureRelinksOldChain(t *testing.T) {
	mem, err := device.NewMemoryDevice(smallGeometry)
	require.NoError(t, err)
	dev := &failingDevice{Device: mem, failAt: -1}
	e := newEngineOn(t, dev)
	root := e.Root()

	require.NoError(t, e.Create(root, "f"))
	require.NoError(t, e.Write(root, "f", payload(64)))
	before, err := e.Stat(root, "f")
	require.NoError(t, err)

	// The rewrite takes the old cluster first, then the next free one.
	dev.failAt = before.FirstCluster + 1
	err = e.Write(root, "f", payload(3*64))
	assert.ErrorIs(t, err, errWriteFailed)

	after, err := e.Stat(root, "f")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	chain, err := e.Table().FollowChain(after.FirstCluster)
	require.NoError(t, err)
	assert.Equal(t, []int32{before.FirstCluster}, chain)
	assert.True(t, e.Check().Clean())
}

func TestReadShortChain(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "f"))
	data := payload(150)
	require.NoError(t, e.Write(root, "f", data))

	ent, err := e.Stat(root, "f")
	require.NoError(t, err)
	chain, err := e.Table().FollowChain(ent.FirstCluster)
	require.NoError(t, err)
	require.Len(t, chain, 3)

	require.NoError(t, e.Table().Set(chain[1], fat.End))
	require.NoError(t, e.Table().Set(chain[2], fat.Free))

	got, err := e.Read(root, "f")
	require.NoError(t, err)
	assert.Equal(t, data[:128], got)
}

func TestReadCorruptChain(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "f"))
	require.NoError(t, e.Write(root, "f", payload(100)))
	ent, err := e.Stat(root, "f")
	require.NoError(t, err)

	require.NoError(t, e.Table().Set(ent.FirstCluster+1, ent.FirstCluster))

	_, err = e.Read(root, "f")
	assert.ErrorIs(t, err, fat.ErrCorruptChain)

	report := e.Check()
	assert.Equal(t, []int32{ent.FirstCluster}, report.Corrupt)
}

func TestTypeAndExistenceErrors(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "file"))
	require.NoError(t, e.CreateDirectory(root, "dir"))

	assert.ErrorIs(t, e.Create(root, "FILE"), directory.ErrAlreadyExists)
	assert.ErrorIs(t, e.CreateDirectory(root, "dir"), directory.ErrAlreadyExists)
	assert.ErrorIs(t, e.Write(root, "dir", []byte("x")), ErrWrongType)
	_, err := e.Read(root, "dir")
	assert.ErrorIs(t, err, ErrWrongType)
	assert.ErrorIs(t, e.Delete(root, "dir"), ErrWrongType)
	assert.ErrorIs(t, e.RemoveDirectory(root, "file"), ErrWrongType)
	_, err = e.Lookup(root, "file")
	assert.ErrorIs(t, err, ErrWrongType)

	assert.ErrorIs(t, e.Write(root, "nope", nil), directory.ErrNotFound)
	_, err = e.Read(root, "nope")
	assert.ErrorIs(t, err, directory.ErrNotFound)
	assert.ErrorIs(t, e.Delete(root, "nope"), directory.ErrNotFound)
	assert.ErrorIs(t, e.RemoveDirectory(root, "nope"), directory.ErrNotFound)
	_, err = e.Lookup(root, "nope")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestCreateDirectoryReleasesClusterOnFailure(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.CreateDirectory(root, "dir"))
	free := e.Table().FreeCount()

	assert.ErrorIs(t, e.CreateDirectory(root, "dir"), directory.ErrAlreadyExists)
	assert.Equal(t, free, e.Table().FreeCount())

	assert.ErrorIs(t, e.CreateDirectory(root, "..."), directory.ErrInvalidName)
	assert.Equal(t, free, e.Table().FreeCount())
}

func TestCreateDirectoryOutOfSpace(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	_, err := e.Table().AllocateChain(e.Table().FreeCount())
	require.NoError(t, err)

	assert.ErrorIs(t, e.CreateDirectory(root, "dir"), fat.ErrOutOfSpace)
	_, ok, err := e.Find(root, "dir")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppend(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "log"))
	require.NoError(t, e.Append(root, "log", []byte("hello ")))
	require.NoError(t, e.Append(root, "log", bytes.Repeat([]byte("x"), 70)))

	got, err := e.Read(root, "log")
	require.NoError(t, err)
	assert.Equal(t, append([]byte("hello "), bytes.Repeat([]byte("x"), 70)...), got)
	assert.True(t, e.Check().Clean())
}

func TestCopy(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "src"))
	data := payload(100)
	require.NoError(t, e.Write(root, "src", data))
	require.NoError(t, e.Copy(root, "src", "dst"))

	got, err := e.Read(root, "dst")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	src, err := e.Stat(root, "src")
	require.NoError(t, err)
	dst, err := e.Stat(root, "dst")
	require.NoError(t, err)
	assert.NotEqual(t, src.FirstCluster, dst.FirstCluster)

	assert.ErrorIs(t, e.Copy(root, "src", "dst"), directory.ErrAlreadyExists)
	assert.ErrorIs(t, e.Copy(root, "missing", "x"), directory.ErrNotFound)
	assert.True(t, e.Check().Clean())
}

func TestCopyOutOfSpaceLeavesNoEntry(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "src"))
	require.NoError(t, e.Write(root, "src", payload(8*64)))

	assert.ErrorIs(t, e.Copy(root, "src", "dst"), fat.ErrOutOfSpace)
	_, ok, err := e.Find(root, "dst")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMove(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.Create(root, "old.txt"))
	data := payload(90)
	require.NoError(t, e.Write(root, "old.txt", data))
	before, err := e.Stat(root, "old.txt")
	require.NoError(t, err)
	free := e.Table().FreeCount()

	require.NoError(t, e.Move(root, "old.txt", "new.txt"))

	_, ok, err := e.Find(root, "old.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := e.Stat(root, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, before.FirstCluster, after.FirstCluster)
	assert.Equal(t, free, e.Table().FreeCount())

	got, err := e.Read(root, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, e.Move(root, "new.txt", "NEW.TXT"))
	require.NoError(t, e.Create(root, "other"))
	assert.ErrorIs(t, e.Move(root, "new.txt", "other"), directory.ErrAlreadyExists)
}

func TestCheckFindsLostCluster(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.CreateDirectory(root, "a"))
	sub, err := e.Lookup(root, "a")
	require.NoError(t, err)
	require.NoError(t, e.Create(sub, "f"))
	require.NoError(t, e.Write(sub, "f", payload(70)))
	require.True(t, e.Check().Clean())

	leaked, err := e.Table().AllocateChain(1)
	require.NoError(t, err)

	report := e.Check()
	assert.Equal(t, []uint32{uint32(leaked)}, report.Lost)
	assert.Equal(t, 4, report.Used)
}

func TestOwnersWalksTree(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.CreateDirectory(root, "a"))
	a, err := e.Lookup(root, "a")
	require.NoError(t, err)
	require.NoError(t, e.CreateDirectory(a, "b"))
	b, err := e.Lookup(a, "b")
	require.NoError(t, err)
	require.NoError(t, e.Create(b, "empty"))
	require.NoError(t, e.Create(b, "full"))
	require.NoError(t, e.Write(b, "full", []byte("x")))
	full, err := e.Stat(b, "full")
	require.NoError(t, err)

	assert.ElementsMatch(t, []int32{root, a, b, full.FirstCluster}, e.Owners())
}

func TestWriteDirectoryUpdateFailureReleasesNewChain(t *testing.T) {
	mem, err := device.NewMemoryDevice(smallGeometry)
	require.NoError(t, err)
	dev := &failingDevice{Device: mem, failAt: -1}
	e := newEngineOn(t, dev)
	root := e.Root()

	require.NoError(t, e.Create(root, "f"))
	require.NoError(t, e.Write(root, "f", payload(64)))
	before, err := e.Stat(root, "f")
	require.NoError(t, err)
	free := e.Table().FreeCount()

	// Data clusters are written, the record update in the root fails.
	dev.failAt = root
	err = e.Write(root, "f", payload(3*64))
	assert.ErrorIs(t, err, errWriteFailed)
	dev.failAt = -1

	after, err := e.Stat(root, "f")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, free, e.Table().FreeCount())

	chain, err := e.Table().FollowChain(after.FirstCluster)
	require.NoError(t, err)
	assert.Equal(t, []int32{before.FirstCluster}, chain)
	assert.True(t, e.Check().Clean(), "%+v", e.Check())
}

func TestCreateDirectoryExistingNameOnFullVolume(t *testing.T) {
	e := newEngine(t, smallGeometry)
	root := e.Root()

	require.NoError(t, e.CreateDirectory(root, "docs"))
	_, err := e.Table().AllocateChain(e.Table().FreeCount())
	require.NoError(t, err)

	assert.ErrorIs(t, e.CreateDirectory(root, "DOCS"), directory.ErrAlreadyExists)
	assert.Zero(t, e.Table().FreeCount())
}
