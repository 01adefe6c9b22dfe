package conv

// PutField writes s into dst, truncating to len(dst) and zero-filling the rest.
// Bytes outside the 7-bit ASCII range are stored as '?'.
func PutField(dst []byte, s string) {
	n := 0
	for i := 0; i < len(s) && n < len(dst); i++ {
		c := s[i]
		if c > 0x7f {
			c = '?'
		}
		dst[n] = c
		n++
	}
	clear(dst[n:])
}

// FieldToString decodes a fixed-width field, trimming trailing and leading
// padding (spaces and NUL bytes).
func FieldToString(b []byte) string {
	start, end := 0, len(b)
	for start < end && isPad(b[start]) {
		start++
	}
	for end > start && isPad(b[end-1]) {
		end--
	}
	return string(b[start:end])
}

func isPad(c byte) bool {
	return c == ' ' || c == 0
}
