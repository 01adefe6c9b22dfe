// Package conv provides safe integer type conversion utilities and the
// fixed-width name field encoding used by on-disk records.
//
// The integer helpers perform bounds checking to prevent overflow when
// converting between Go's int and the fixed-width types stored on disk
// (cluster indices and file sizes are int32, header fields are uint32).
//
// The field helpers convert between text names and fixed-width byte fields:
// encoding truncates and zero-fills, decoding trims spaces and NUL bytes.
package conv
