//go:build !unix

package mmap

import "os"

func osMap(_ *os.File, _ int, _ bool) ([]byte, func([]byte) error, error) {
	return nil, nil, ErrUnsupported
}

func osSync(_ []byte) error { return ErrUnsupported }

func osAdvise(_ []byte, _ AccessPattern) error { return nil }
