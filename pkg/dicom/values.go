package dicom

import (
	"encoding/binary"
	"math"

	"github.com/jpfielding/dcmview/pkg/dicom/vr"
)

// trimPadding drops the trailing space or NUL padding DICOM uses to reach even lengths.
func trimPadding(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == 0 || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// parseValue converts raw bytes to a typed value based on VR. Numeric VRs with a
// single value decode to a scalar, multiple values to a slice. Lengths that are not
// a multiple of the VR size are kept as raw bytes.
func parseValue(v vr.VR, data []byte, order binary.ByteOrder, text textDecoder) any {
	if v.IsString() {
		b := trimPadding(data)
		if text != nil && v.IsText() {
			return text(b)
		}
		return string(b)
	}
	size := v.ValueSize()
	if size > 0 && len(data)%size != 0 {
		return cloneBytes(data)
	}
	n := 0
	if size > 0 {
		n = len(data) / size
	}
	switch v {
	case vr.US:
		values := make([]uint16, n)
		for i := range values {
			values[i] = order.Uint16(data[i*2:])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.SS:
		values := make([]int16, n)
		for i := range values {
			values[i] = int16(order.Uint16(data[i*2:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.UL:
		values := make([]uint32, n)
		for i := range values {
			values[i] = order.Uint32(data[i*4:])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.SL:
		values := make([]int32, n)
		for i := range values {
			values[i] = int32(order.Uint32(data[i*4:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.UV:
		values := make([]uint64, n)
		for i := range values {
			values[i] = order.Uint64(data[i*8:])
		}
		return values
	case vr.SV:
		values := make([]int64, n)
		for i := range values {
			values[i] = int64(order.Uint64(data[i*8:]))
		}
		return values
	case vr.FL:
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.FD:
		values := make([]float64, n)
		for i := range values {
			values[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case vr.AT:
		values := make([]Tag, n)
		for i := range values {
			values[i] = Tag{Group: order.Uint16(data[i*4:]), Element: order.Uint16(data[i*4+2:])}
		}
		return values
	case vr.OF:
		if len(data)%4 == 0 {
			values := make([]float32, len(data)/4)
			for i := range values {
				values[i] = math.Float32frombits(order.Uint32(data[i*4:]))
			}
			return values
		}
	case vr.OD:
		if len(data)%8 == 0 {
			values := make([]float64, len(data)/8)
			for i := range values {
				values[i] = math.Float64frombits(order.Uint64(data[i*8:]))
			}
			return values
		}
	}
	// OB, OW, OL, OV, UN: binary data, OW words held little-endian
	if v == vr.OW && order == binary.BigEndian {
		return swap16(data)
	}
	return cloneBytes(data)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
