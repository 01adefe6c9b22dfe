// Package vdisk provides a small allocation-table filesystem stored in a
// single fixed-size file.
//
// A volume is a run of equally sized clusters. Cluster 0 holds the
// superblock, the following clusters hold the allocation table image, then
// comes the root directory head and finally the data region. Files and
// directories are chains of clusters linked through the table; directories
// hold fixed 32-byte records with 8.3 names.
//
// # Quick Start
//
//	ctx := context.Background()
//	v, _ := vdisk.Open(ctx, "disk.bin")  // creates and formats on first use
//	defer v.Close()
//
//	root := v.Root()
//	_ = v.CreateDirectory(ctx, root, "docs")
//	docs, _ := v.Lookup(ctx, root, "docs")
//	_ = v.CreateFile(ctx, docs, "a.txt")
//	_ = v.WriteFile(ctx, docs, "a.txt", []byte("hello"))
//	data, _ := v.ReadFile(ctx, docs, "a.txt")
//
// # Durability Model
//
// Cluster data is written through on every call. The allocation table is
// kept in memory and written back by Sync and Close, or after every
// mutating call with WithAutoSave(true). A crash between the two leaves
// the last saved table in place.
//
// # Names
//
// Names are stored upper case in 8.3 form. Lookups format the query the same
// way, so "a.txt", "A.TXT" and "A.txt" all name the same entry:
//
//	vdisk.FormatName("readme.md") // "README  MD "
//
// # Snapshots
//
// ExportSnapshot copies the whole image into a blobstore.BlobStore as
// compressed, checksummed frames plus a JSON manifest. ImportSnapshot
// restores one into a new image file:
//
//	store := blobstore.NewLocalStore("snapshots")
//	m, _ := v.ExportSnapshot(ctx, store, "nightly", vdisk.WithCompression(vdisk.CompressionZstd))
//	restored, _ := vdisk.ImportSnapshot(ctx, store, m.Name, "restored.bin")
//
// # Errors
//
// Storage errors are translated so they match the package sentinels with
// errors.Is, for example ErrNotFound, ErrOutOfSpace or ErrCorruptChain.
package vdisk
