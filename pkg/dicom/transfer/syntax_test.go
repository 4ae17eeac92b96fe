package transfer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntax_Properties(t *testing.T) {
	tests := []struct {
		syntax       Syntax
		explicit     bool
		little       bool
		encapsulated bool
		decodable    bool
	}{
		{ImplicitVRLittleEndian, false, true, false, true},
		{ExplicitVRLittleEndian, true, true, false, true},
		{ExplicitVRBigEndian, true, false, false, true},
		{DeflatedExplicitVR, true, true, false, true},
		{RLELossless, true, true, true, true},
		{JPEGBaseline, true, true, true, true},
		{JPEGLSLossless, true, true, true, true},
		{JPEGLSNearLossless, true, true, true, true},
		{JPEG2000Lossless, true, true, true, true},
		{JPEG2000, true, true, true, true},
		{JPEGLossless, true, true, true, true},
		{JPEGLosslessFirstOrder, true, true, true, true},
		{JPEGExtended, true, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.syntax.Name(), func(t *testing.T) {
			assert.Equal(t, tt.explicit, tt.syntax.IsExplicitVR())
			assert.Equal(t, tt.little, tt.syntax.IsLittleEndian())
			assert.Equal(t, tt.encapsulated, tt.syntax.IsEncapsulated())
			assert.Equal(t, tt.decodable, tt.syntax.IsDecodable())
		})
	}
}

func TestSyntax_ByteOrder(t *testing.T) {
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), ExplicitVRLittleEndian.ByteOrder())
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), ExplicitVRBigEndian.ByteOrder())

	// the writer appends through the same order it reads with
	assert.Equal(t, []byte{0x34, 0x12}, ImplicitVRLittleEndian.ByteOrder().AppendUint16(nil, 0x1234))
	be := ExplicitVRBigEndian.ByteOrder()
	b := be.AppendUint32(nil, 0xDEADBEEF)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)
	assert.Equal(t, uint32(0xDEADBEEF), be.Uint32(b))
}

func TestFromUID_TrimsPadding(t *testing.T) {
	assert.Equal(t, ExplicitVRLittleEndian, FromUID("1.2.840.10008.1.2.1\x00"))
	assert.Equal(t, ImplicitVRLittleEndian, FromUID("1.2.840.10008.1.2 "))
	assert.Equal(t, "1.2.3", FromUID("1.2.3").Name())
}

func TestSyntax_CodecFamilies(t *testing.T) {
	assert.True(t, JPEG2000.IsJPEG2000())
	assert.True(t, JPEG2000Lossless.IsJPEG2000())
	assert.False(t, JPEGLSLossless.IsJPEG2000())
	assert.True(t, JPEGLSNearLossless.IsJPEGLS())
	assert.True(t, JPEGLossless.IsJPEGLossless())
	assert.False(t, JPEGExtended.IsJPEGLossless())
}
