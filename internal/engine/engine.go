package engine

import (
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vdisk/internal/conv"
	"github.com/hupe1980/vdisk/internal/device"
	"github.com/hupe1980/vdisk/internal/directory"
	"github.com/hupe1980/vdisk/internal/fat"
)

// Engine performs file and directory operations against one volume.
type Engine struct {
	dev    device.Device
	fat    *fat.Table
	dir    *directory.Index
	geom   device.Geometry
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for chain level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over dev. The table must already be initialized or
// loaded; the engine never saves it.
func New(dev device.Device, tbl *fat.Table, opts ...Option) *Engine {
	e := &Engine{
		dev:    dev,
		fat:    tbl,
		dir:    directory.New(dev, tbl),
		geom:   dev.Geometry(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the head cluster of the root directory.
func (e *Engine) Root() int32 { return e.geom.RootCluster() }

// Geometry returns the volume geometry.
func (e *Engine) Geometry() device.Geometry { return e.geom }

// Table exposes the allocation table.
func (e *Engine) Table() *fat.Table { return e.fat }

// List returns the entries of the directory headed at dir.
func (e *Engine) List(dir int32) ([]directory.Entry, error) {
	return e.dir.List(dir)
}

// Find looks up name in dir.
func (e *Engine) Find(dir int32, name string) (directory.Entry, bool, error) {
	return e.dir.Find(dir, name)
}

// Stat returns the entry for name, or ErrNotFound.
func (e *Engine) Stat(dir int32, name string) (directory.Entry, error) {
	ent, ok, err := e.dir.Find(dir, name)
	if err != nil {
		return directory.Entry{}, err
	}
	if !ok {
		return directory.Entry{}, fmt.Errorf("%w: %s", directory.ErrNotFound, name)
	}
	return ent, nil
}

// Lookup resolves name inside dir to the head cluster of a subdirectory.
func (e *Engine) Lookup(dir int32, name string) (int32, error) {
	ent, err := e.Stat(dir, name)
	if err != nil {
		return 0, err
	}
	if !ent.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrWrongType, ent.DisplayName())
	}
	return ent.FirstCluster, nil
}

// Create inserts an empty file entry.
func (e *Engine) Create(dir int32, name string) error {
	return e.dir.Insert(dir, directory.Entry{Name: name, Attr: directory.AttrFile})
}

// Write replaces the content of an existing file. The old chain is released
// and a chain of ceil(len(data)/ClusterSize) clusters is allocated in its
// place, so the new data may land in the clusters just freed. When the new
// chain cannot be allocated or written the old chain is linked back and the
// entry is left unchanged.
func (e *Engine) Write(dir int32, name string, data []byte) error {
	ent, err := e.file(dir, name)
	if err != nil {
		return err
	}
	size, err := conv.IntToInt32(len(data))
	if err != nil {
		return err
	}

	old, err := e.fat.FollowChain(ent.FirstCluster)
	if err != nil {
		return err
	}
	if err := e.fat.FreeChain(ent.FirstCluster); err != nil {
		return err
	}

	head, err := e.fat.AllocateChain(e.clustersFor(len(data)))
	if err != nil {
		return e.restore(old, err)
	}
	if err := e.writeChain(head, data); err != nil {
		_ = e.fat.FreeChain(head)
		return e.restore(old, err)
	}

	// The entry still names the old head; replace it without releasing the
	// chain a second time.
	if _, err := e.dir.Unlink(dir, ent.Name); err != nil {
		_ = e.fat.FreeChain(head)
		return e.restore(old, err)
	}
	updated := ent
	updated.FirstCluster = head
	updated.Size = size
	if err := e.dir.Insert(dir, updated); err != nil {
		_ = e.fat.FreeChain(head)
		err = e.restore(old, err)
		if rerr := e.dir.Insert(dir, ent); rerr != nil {
			return fmt.Errorf("%w (restore failed: %v)", err, rerr)
		}
		return err
	}

	e.logger.Debug("file written", "dir", dir, "name", updated.DisplayName(), "head", head, "bytes", len(data))
	return nil
}

// Append extends a file by reading it whole and writing the concatenation.
func (e *Engine) Append(dir int32, name string, data []byte) error {
	cur, err := e.Read(dir, name)
	if err != nil {
		return err
	}
	return e.Write(dir, name, append(cur, data...))
}

// Read returns the stored bytes of a file. A chain shorter than the recorded
// size yields a truncated result.
func (e *Engine) Read(dir int32, name string) ([]byte, error) {
	ent, err := e.file(dir, name)
	if err != nil {
		return nil, err
	}

	chain, err := e.fat.FollowChain(ent.FirstCluster)
	if err != nil {
		return nil, err
	}

	remaining := int(ent.Size)
	out := make([]byte, 0, max(remaining, 0))
	for _, c := range chain {
		if remaining <= 0 {
			break
		}
		buf, err := e.dev.ReadCluster(c)
		if err != nil {
			return nil, err
		}
		n := min(remaining, len(buf))
		out = append(out, buf[:n]...)
		remaining -= n
	}
	if remaining > 0 {
		e.logger.Warn("short chain", "dir", dir, "name", ent.DisplayName(), "size", ent.Size, "read", len(out))
	}
	return out, nil
}

// Delete removes a file entry and releases its chain.
func (e *Engine) Delete(dir int32, name string) error {
	if _, err := e.file(dir, name); err != nil {
		return err
	}
	return e.dir.Remove(dir, name)
}

// Copy duplicates src into a new file dst in the same directory.
func (e *Engine) Copy(dir int32, src, dst string) error {
	data, err := e.Read(dir, src)
	if err != nil {
		return err
	}
	if err := e.Create(dir, dst); err != nil {
		return err
	}
	if err := e.Write(dir, dst, data); err != nil {
		_ = e.dir.Remove(dir, dst)
		return err
	}
	return nil
}

// Move renames src to dst. The chain is handed over to the new entry; no
// data is copied.
func (e *Engine) Move(dir int32, src, dst string) error {
	ent, err := e.file(dir, src)
	if err != nil {
		return err
	}
	if sameFormatted(dst, ent.Name) {
		return nil
	}
	if _, ok, err := e.dir.Find(dir, dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", directory.ErrAlreadyExists, dst)
	}

	if _, err := e.dir.Unlink(dir, src); err != nil {
		return err
	}
	moved := ent
	moved.Name = dst
	if err := e.dir.Insert(dir, moved); err != nil {
		// Put the original entry back so its chain keeps an owner.
		if rerr := e.dir.Insert(dir, ent); rerr != nil {
			return fmt.Errorf("%w (restore failed: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// CreateDirectory allocates one zeroed cluster and inserts a directory entry
// pointing at it.
func (e *Engine) CreateDirectory(dir int32, name string) error {
	if _, ok, err := e.dir.Find(dir, name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", directory.ErrAlreadyExists, name)
	}
	head, err := e.fat.AllocateChain(1)
	if err != nil {
		return err
	}
	if err := e.dev.WriteCluster(head, device.Zero(e.geom)); err != nil {
		_ = e.fat.FreeChain(head)
		return err
	}
	if err := e.dir.Insert(dir, directory.Entry{Name: name, Attr: directory.AttrDirectory, FirstCluster: head}); err != nil {
		_ = e.fat.FreeChain(head)
		return err
	}
	return nil
}

// RemoveDirectory removes an empty subdirectory and releases its chain.
func (e *Engine) RemoveDirectory(dir int32, name string) error {
	ent, err := e.Stat(dir, name)
	if err != nil {
		return err
	}
	if !ent.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWrongType, ent.DisplayName())
	}
	children, err := e.dir.List(ent.FirstCluster)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: %s has %d entries", ErrNotEmpty, ent.DisplayName(), len(children))
	}
	return e.dir.Remove(dir, name)
}

// Owners returns the head of every chain reachable from the root directory,
// the root included. Directories whose chain cannot be listed are returned
// but not descended into.
func (e *Engine) Owners() []int32 {
	root := e.Root()
	heads := []int32{root}
	seen := roaring.New()
	seen.Add(uint32(root))

	queue := []int32{root}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		entries, err := e.dir.List(d)
		if err != nil {
			e.logger.Warn("unreadable directory", "head", d, "error", err)
			continue
		}
		for _, ent := range entries {
			if ent.FirstCluster == fat.Free {
				continue
			}
			heads = append(heads, ent.FirstCluster)
			if ent.IsDir() && seen.CheckedAdd(uint32(ent.FirstCluster)) {
				queue = append(queue, ent.FirstCluster)
			}
		}
	}
	return heads
}

// Check runs a consistency check of the allocation table against every
// chain reachable from the root.
func (e *Engine) Check() fat.Report {
	return e.fat.Check(e.Owners())
}

// file returns the entry for name and verifies it is a regular file.
func (e *Engine) file(dir int32, name string) (directory.Entry, error) {
	ent, err := e.Stat(dir, name)
	if err != nil {
		return directory.Entry{}, err
	}
	if ent.IsDir() {
		return directory.Entry{}, fmt.Errorf("%w: %s is a directory", ErrWrongType, ent.DisplayName())
	}
	return ent, nil
}

func (e *Engine) clustersFor(n int) int {
	return (n + e.geom.ClusterSize - 1) / e.geom.ClusterSize
}

// writeChain stores data across the chain at head, one cluster per piece.
// The final piece is zero padded.
func (e *Engine) writeChain(head int32, data []byte) error {
	chain, err := e.fat.FollowChain(head)
	if err != nil {
		return err
	}
	size := e.geom.ClusterSize
	for i, c := range chain {
		piece := data[i*size:]
		if len(piece) >= size {
			piece = piece[:size]
		} else {
			buf := device.Zero(e.geom)
			copy(buf, piece)
			piece = buf
		}
		if err := e.dev.WriteCluster(c, piece); err != nil {
			return err
		}
	}
	return nil
}

// restore relinks a chain released by Write and returns cause.
func (e *Engine) restore(chain []int32, cause error) error {
	if len(chain) == 0 {
		return cause
	}
	if err := e.fat.Relink(chain); err != nil {
		return fmt.Errorf("%w (relink failed: %v)", cause, err)
	}
	return cause
}

func sameFormatted(a, b string) bool {
	return directory.FormatName(a) == directory.FormatName(b)
}
