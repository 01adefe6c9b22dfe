package directory

import (
	"strings"
)

// FormatName converts a user supplied name to the fixed 11-character 8.3
// form: upper case, base left-justified into 8 characters and extension into
// 3, space padded and truncated. The split is on the last '.'; a name with no
// '.' fills all 11 characters.
//
// Remaining dots, control characters and non-ASCII bytes are dropped or
// replaced so the result never contains '.' and FormatName is idempotent.
func FormatName(raw string) string {
	name := sanitize(strings.ToUpper(raw))

	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return fit(name, nameLen)
	}
	base := strings.ReplaceAll(name[:i], ".", "")
	ext := strings.ReplaceAll(name[i+1:], ".", "")
	return fit(base, baseLen) + fit(ext, extLen)
}

// sameName compares two 11-byte name fields case-insensitively with
// surrounding spaces trimmed, so " A" and "A" name the same entry.
func sameName(stored, formatted string) bool {
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(formatted))
}

func fit(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f {
			c = '_'
		}
		b.WriteByte(c)
	}
	return b.String()
}
