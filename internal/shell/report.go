package shell

import (
	"fmt"
	"io"

	"github.com/hupe1980/vdisk"
)

// WriteReport prints a consistency report in a human readable form.
func WriteReport(w io.Writer, r vdisk.CheckReport) error {
	if r.Clean() {
		_, err := fmt.Fprintf(w, "clean: %d used, %d free\n", r.Used, r.Free)
		return err
	}
	fmt.Fprintf(w, "problems found: %d used, %d free\n", r.Used, r.Free)
	if len(r.Lost) > 0 {
		fmt.Fprintf(w, "  lost clusters: %v\n", r.Lost)
	}
	if len(r.CrossLinked) > 0 {
		fmt.Fprintf(w, "  cross-linked clusters: %v\n", r.CrossLinked)
	}
	if len(r.Corrupt) > 0 {
		fmt.Fprintf(w, "  corrupt chains: %v\n", r.Corrupt)
	}
	if len(r.BadReserved) > 0 {
		fmt.Fprintf(w, "  damaged reserved entries: %v\n", r.BadReserved)
	}
	return nil
}
