// Package rle implements the DICOM RLE Lossless transfer syntax (PS3.5 Annex G).
package rle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize  = 64
	maxSegments = 15
)

// Frame describes the layout of one uncompressed frame.
type Frame struct {
	Width          int
	Height         int
	Samples        int // samples per pixel
	BytesPerSample int // 1 or 2
}

func (f Frame) pixels() int { return f.Width * f.Height }

// segments is the number of byte planes: one per byte of each sample.
func (f Frame) segments() int { return f.Samples * f.BytesPerSample }

func (f Frame) validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("rle: invalid dimensions %dx%d", f.Width, f.Height)
	}
	if f.Samples <= 0 || f.BytesPerSample <= 0 {
		return fmt.Errorf("rle: invalid sample layout %d x %d bytes", f.Samples, f.BytesPerSample)
	}
	if f.segments() > maxSegments {
		return fmt.Errorf("rle: too many segments (%d)", f.segments())
	}
	return nil
}

// Decode decodes one RLE compressed frame to little-endian, sample-interleaved bytes.
// The frame layout must be supplied; the RLE stream does not carry it.
func Decode(data []byte, f Frame) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, errors.New("rle: data too short for header")
	}

	numSegments := binary.LittleEndian.Uint32(data[0:4])
	if numSegments == 0 {
		return nil, errors.New("rle: zero segments")
	}
	if numSegments > maxSegments {
		return nil, fmt.Errorf("rle: invalid segment count %d", numSegments)
	}
	if int(numSegments) != f.segments() {
		return nil, fmt.Errorf("rle: %d segments, frame layout expects %d", numSegments, f.segments())
	}
	offsets := make([]uint32, maxSegments)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[4+i*4:])
	}

	numPixels := f.pixels()
	out := make([]byte, numPixels*f.segments())
	for i := uint32(0); i < numSegments; i++ {
		start := offsets[i]
		end := uint32(len(data))
		if i < numSegments-1 {
			end = offsets[i+1]
		}
		if start < headerSize || start > end || end > uint32(len(data)) {
			return nil, fmt.Errorf("rle: invalid segment offset/length for segment %d", i)
		}

		decoded, err := decodePackBits(data[start:end], numPixels)
		if err != nil {
			return nil, fmt.Errorf("rle: failed to decode segment %d (start=%d, end=%d): %w", i, start, end, err)
		}
		if len(decoded) < numPixels {
			return nil, fmt.Errorf("rle: decoded segment %d size %d does not match expected pixels %d", i, len(decoded), numPixels)
		}

		// Segments run most significant byte first within each sample
		sample := int(i) / f.BytesPerSample
		byteIndex := f.BytesPerSample - 1 - int(i)%f.BytesPerSample
		stride := f.segments()
		pos := sample*f.BytesPerSample + byteIndex
		for p := 0; p < numPixels; p++ {
			out[pos] = decoded[p]
			pos += stride
		}
	}
	return out, nil
}

// Encode writes one frame of little-endian, sample-interleaved bytes as RLE.
func Encode(w io.Writer, data []byte, f Frame) error {
	if err := f.validate(); err != nil {
		return err
	}
	numPixels := f.pixels()
	stride := f.segments()
	if len(data) < numPixels*stride {
		return fmt.Errorf("rle: frame needs %d bytes, got %d", numPixels*stride, len(data))
	}

	segments := make([][]byte, stride)
	for i := range segments {
		sample := i / f.BytesPerSample
		byteIndex := f.BytesPerSample - 1 - i%f.BytesPerSample
		plane := make([]byte, numPixels)
		pos := sample*f.BytesPerSample + byteIndex
		for p := range plane {
			plane[p] = data[pos]
			pos += stride
		}
		seg := encodePackBits(plane)
		// Segments are padded to even length
		if len(seg)%2 != 0 {
			seg = append(seg, 0x00)
		}
		segments[i] = seg
	}

	offsets := make([]uint32, maxSegments)
	current := uint32(headerSize)
	for i := range segments {
		offsets[i] = current
		current += uint32(len(segments[i]))
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(segments))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, offsets); err != nil {
		return err
	}
	for _, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			return err
		}
	}
	return nil
}
