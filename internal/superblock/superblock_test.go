package superblock

import (
	"encoding/binary"
	"testing"

	"github.com/hupe1980/vdisk/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	dev, err := device.NewMemoryDevice(device.DefaultGeometry())
	require.NoError(t, err)

	require.NoError(t, Write(dev, New(dev.Geometry(), "scratch")))

	sb, err := Read(dev)
	require.NoError(t, err)
	assert.Equal(t, Version, sb.Version)
	assert.Equal(t, device.DefaultGeometry(), sb.Geometry)
	assert.Equal(t, "scratch", sb.Label)

	raw := dev.Bytes()
	assert.Equal(t, []byte("VDSK"), raw[:4])
	assert.Equal(t, uint32(1024), binary.LittleEndian.Uint32(raw[offSize:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[offFATLen:]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(raw[offRoot:]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(raw[offData:]))
}

func TestLabelTruncated(t *testing.T) {
	dev, err := device.NewMemoryDevice(device.DefaultGeometry())
	require.NoError(t, err)

	require.NoError(t, Write(dev, New(dev.Geometry(), "a label that is far too long")))
	sb, err := Read(dev)
	require.NoError(t, err)
	assert.Equal(t, "a label tha", sb.Label)
}

func TestReadBlank(t *testing.T) {
	dev, err := device.NewMemoryDevice(device.DefaultGeometry())
	require.NoError(t, err)

	_, err = Read(dev)
	assert.ErrorIs(t, err, ErrNotFormatted)
}

func TestReadDamaged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b []byte)
	}{
		{"magic", func(b []byte) { b[0] = 'X' }},
		{"checksum", func(b []byte) { b[offLabel] ^= 0xff }},
		{"stored checksum", func(b []byte) { b[offCRC] ^= 0x01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := device.NewMemoryDevice(device.DefaultGeometry())
			require.NoError(t, err)
			require.NoError(t, Write(dev, New(dev.Geometry(), "v")))

			tt.mutate(dev.Bytes())
			_, err = Read(dev)
			assert.ErrorIs(t, err, ErrBadSuperblock)
		})
	}
}

func TestReadGeometryMismatch(t *testing.T) {
	small := device.Geometry{ClusterSize: 64, ClusterCount: 16}
	img, err := New(small, "").Encode()
	require.NoError(t, err)

	other := device.Geometry{ClusterSize: 64, ClusterCount: 32}
	dev, err := device.NewMemoryDevice(other)
	require.NoError(t, err)
	require.NoError(t, dev.WriteCluster(0, img))

	_, err = Read(dev)
	assert.ErrorIs(t, err, ErrBadSuperblock)

	assert.ErrorIs(t, Write(dev, New(small, "")), device.ErrInvalidGeometry)
}

func TestDecodeShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrBadSuperblock)
}
