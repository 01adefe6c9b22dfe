// Package engine implements the file and directory operations of a volume on
// top of the allocation table and the directory index.
//
// The engine owns no state of its own beyond the collaborators it was built
// with. Directories are addressed by the head cluster of their chain; the
// root directory head is fixed by the geometry. Every operation is
// synchronous and expects a single caller at a time.
package engine
