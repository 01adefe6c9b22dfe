package directory

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/hupe1980/vdisk/internal/conv"
	"github.com/hupe1980/vdisk/internal/device"
)

// Attr distinguishes files from directories. Other bits are reserved.
type Attr byte

const (
	// AttrDirectory marks a subdirectory entry.
	AttrDirectory Attr = 0x10
	// AttrFile marks a regular file entry.
	AttrFile Attr = 0x20
)

func (a Attr) String() string {
	switch {
	case a&AttrDirectory != 0:
		return "dir"
	case a&AttrFile != 0:
		return "file"
	default:
		return fmt.Sprintf("attr(0x%02x)", byte(a))
	}
}

// On-disk record layout.
const (
	nameLen     = 11
	baseLen     = 8
	extLen      = 3
	offAttr     = 11
	offFirst    = 12
	offSize     = 16
	offReserved = 20
)

// Entry is one decoded directory record.
type Entry struct {
	// Name is the stored 8.3 field with trailing padding trimmed, e.g. "A       TXT".
	Name         string
	Attr         Attr
	FirstCluster int32
	// Size is the file length in bytes; ignored for directories.
	Size int32
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Attr&AttrDirectory != 0 }

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return !e.IsDir() && e.Attr&AttrFile != 0 }

// DisplayName renders the stored name as BASE.EXT.
func (e Entry) DisplayName() string {
	padded := fmt.Sprintf("%-11s", e.Name)
	base := strings.TrimRight(padded[:baseLen], " ")
	ext := strings.TrimRight(padded[baseLen:nameLen], " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// encode writes e into the 32-byte record at dst. The reserved tail is zeroed.
func (e Entry) encode(dst []byte) {
	conv.PutField(dst[:nameLen], fit(e.Name, nameLen))
	dst[offAttr] = byte(e.Attr)
	binary.LittleEndian.PutUint32(dst[offFirst:], uint32(e.FirstCluster))
	binary.LittleEndian.PutUint32(dst[offSize:], uint32(e.Size))
	clear(dst[offReserved:device.RecordSize])
}

// decodeEntry reads the 32-byte record at src.
func decodeEntry(src []byte) Entry {
	return Entry{
		Name:         strings.TrimRight(string(src[:nameLen]), " \x00"),
		Attr:         Attr(src[offAttr]),
		FirstCluster: int32(binary.LittleEndian.Uint32(src[offFirst:])),
		Size:         int32(binary.LittleEndian.Uint32(src[offSize:])),
	}
}

// slotFree reports whether the record at src is unused.
func slotFree(src []byte) bool { return src[0] == 0 }
