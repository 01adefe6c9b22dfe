package snapshot

import (
	"bytes"
	"testing"

	"github.com/hupe1980/vdisk/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCompression(t *testing.T) {
	zeros := make([]byte, 4096)
	random := testutil.NewRNG(1).RandomBytes(4096)

	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			packed, stored, err := compressFrame(zeros, c)
			require.NoError(t, err)
			assert.False(t, stored)
			assert.Less(t, len(packed), 200)

			raw, err := decompressFrame(packed, c, stored, len(zeros))
			require.NoError(t, err)
			assert.Equal(t, zeros, raw)

			packed, stored, err = compressFrame(random, c)
			require.NoError(t, err)
			assert.True(t, stored)
			assert.True(t, bytes.Equal(random, packed))
		})
	}
}

func TestDecompressFrameRejectsGarbage(t *testing.T) {
	packed, stored, err := compressFrame(make([]byte, 1024), CompressionZstd)
	require.NoError(t, err)
	require.False(t, stored)

	_, err = decompressFrame(packed, CompressionZstd, false, 512)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decompressFrame([]byte{1, 2, 3}, CompressionZstd, false, 1024)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decompressFrame([]byte{1, 2, 3}, CompressionNone, true, 4)
	assert.ErrorIs(t, err, ErrCorrupt)
}
