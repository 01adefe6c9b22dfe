package vdisk_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/vdisk"
)

func Example() {
	dir, _ := os.MkdirTemp("", "vdisk-example")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	v, err := vdisk.Open(ctx, filepath.Join(dir, "disk.bin"), vdisk.WithLabel("example"))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer v.Close()

	root := v.Root()
	_ = v.CreateDirectory(ctx, root, "docs")
	docs, _ := v.Lookup(ctx, root, "docs")
	_ = v.CreateFile(ctx, docs, "hello.txt")
	_ = v.WriteFile(ctx, docs, "hello.txt", []byte("hello, volume"))

	data, _ := v.ReadFile(ctx, docs, "HELLO.TXT")
	fmt.Println(string(data))

	entries, _ := v.List(ctx, docs)
	for _, e := range entries {
		fmt.Println(e.DisplayName(), e.Size)
	}

	err = v.RemoveDirectory(ctx, root, "docs")
	fmt.Println(errors.Is(err, vdisk.ErrNotEmpty))

	// Output:
	// hello, volume
	// HELLO.TXT 13
	// true
}

func ExampleFormatName() {
	fmt.Printf("%q\n", vdisk.FormatName("readme.md"))
	fmt.Printf("%q\n", vdisk.FormatName("archive.tar.gz"))
	fmt.Printf("%q\n", vdisk.FormatName("Makefile"))

	// Output:
	// "README  MD "
	// "ARCHIVETGZ "
	// "MAKEFILE   "
}

func ExampleVolume_Check() {
	dir, _ := os.MkdirTemp("", "vdisk-example")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	v, _ := vdisk.Open(ctx, filepath.Join(dir, "disk.bin"), vdisk.WithGeometry(vdisk.Geometry{
		ClusterSize:  512,
		ClusterCount: 128,
	}))
	defer v.Close()

	_ = v.CreateFile(ctx, v.Root(), "a.bin")
	_ = v.WriteFile(ctx, v.Root(), "a.bin", make([]byte, 1500))

	report, _ := v.Check(ctx)
	fmt.Println(report.Clean(), report.Used)

	// Output:
	// true 3
}
