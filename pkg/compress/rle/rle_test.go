package rle

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"Gray8", Frame{Width: 100, Height: 100, Samples: 1, BytesPerSample: 1}},
		{"Gray16", Frame{Width: 64, Height: 32, Samples: 1, BytesPerSample: 2}},
		{"RGB8", Frame{Width: 17, Height: 9, Samples: 3, BytesPerSample: 1}},
		{"RGB16", Frame{Width: 5, Height: 5, Samples: 3, BytesPerSample: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.frame.pixels() * tt.frame.segments()
			data := make([]byte, n)
			for i := range data {
				// runs in the first half, gradient in the second
				if i < n/2 {
					data[i] = byte(i / 40)
				} else {
					data[i] = byte(i)
				}
			}

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, data, tt.frame))
			compressed := buf.Bytes()
			assert.Equal(t, uint32(tt.frame.segments()), binary.LittleEndian.Uint32(compressed[0:4]))

			decoded, err := Decode(compressed, tt.frame)
			require.NoError(t, err)
			assert.Equal(t, data, decoded)
		})
	}
}

func TestDecode_HighBytePlaneFirst(t *testing.T) {
	// 2 pixels, 16 bit: 0x0102, 0x0304
	f := Frame{Width: 2, Height: 1, Samples: 1, BytesPerSample: 2}
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], 2)
	binary.LittleEndian.PutUint32(header[4:], headerSize)
	binary.LittleEndian.PutUint32(header[8:], headerSize+4)
	data := append(header,
		0x01, 0x01, 0x03, 0x00, // literal high bytes + pad
		0x01, 0x02, 0x04, 0x00, // literal low bytes + pad
	)

	decoded, err := Decode(data, f)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, decoded)
}

func TestDecode_Errors(t *testing.T) {
	gray := Frame{Width: 4, Height: 4, Samples: 1, BytesPerSample: 1}

	tests := []struct {
		name      string
		data      []byte
		frame     Frame
		errString string
	}{
		{"ShortHeader", make([]byte, 10), gray, "too short"},
		{"ZeroSegments", make([]byte, headerSize), gray, "zero segments"},
		{"SegmentMismatch", func() []byte {
			b := make([]byte, headerSize+2)
			binary.LittleEndian.PutUint32(b, 2)
			return b
		}(), gray, "frame layout expects 1"},
		{"BadOffset", func() []byte {
			b := make([]byte, headerSize)
			binary.LittleEndian.PutUint32(b, 1)
			binary.LittleEndian.PutUint32(b[4:], 500)
			return b
		}(), gray, "invalid segment offset"},
		{"ShortSegment", func() []byte {
			b := make([]byte, headerSize)
			binary.LittleEndian.PutUint32(b, 1)
			binary.LittleEndian.PutUint32(b[4:], headerSize)
			return append(b, 0xFD, 0x07) // 4 bytes of 16
		}(), gray, "does not match expected pixels"},
		{"BadFrame", make([]byte, headerSize), Frame{Width: 0, Height: 4, Samples: 1, BytesPerSample: 1}, "invalid dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.frame)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
