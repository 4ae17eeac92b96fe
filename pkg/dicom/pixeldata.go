package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/cocosip/go-dicom-codec/jpeg/lossless"
	"github.com/cocosip/go-dicom-codec/jpeg/lossless14sv1"
	"github.com/cocosip/go-dicom-codec/jpeg2000"
	"github.com/cocosip/go-dicom-codec/jpegls/nearlossless"
	"github.com/jpfielding/dcmview/pkg/compress/rle"
	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
)

// PixelRaster is one decoded frame. Data holds Rows*Columns*SamplesPerPixel
// stored values, row-major with samples interleaved.
type PixelRaster struct {
	Rows            int
	Columns         int
	SamplesPerPixel int
	BitsAllocated   int
	BitsStored      int
	Signed          bool
	Photometric     string
	Frame           int // index of this frame
	Frames          int // frames in the source
	// Modality LUT, applied by windowed rendering only
	RescaleIntercept float64
	RescaleSlope     float64
	Data             []int32
}

// At returns sample s of the pixel at (row, col).
func (r *PixelRaster) At(row, col, s int) int32 {
	return r.Data[(row*r.Columns+col)*r.SamplesPerPixel+s]
}

// MinMax returns the smallest and largest sample over all channels.
func (r *PixelRaster) MinMax() (lo, hi int32) {
	if len(r.Data) == 0 {
		return 0, 0
	}
	lo, hi = r.Data[0], r.Data[0]
	for _, v := range r.Data[1:] {
		if v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// pixelFormat is the Image Pixel module as read from a dataset.
type pixelFormat struct {
	syntax        transfer.Syntax
	rows          int
	cols          int
	samples       int
	bitsAllocated int
	bitsStored    int
	highBit       int
	signed        bool
	planar        bool
	frames        int
	photometric   string
}

func (f pixelFormat) bytesPerSample() int { return f.bitsAllocated / 8 }

func (f pixelFormat) samplesPerFrame() int { return f.rows * f.cols * f.samples }

func (f pixelFormat) frameSize() int { return f.samplesPerFrame() * f.bytesPerSample() }

func (f pixelFormat) unsupported(format string, args ...any) error {
	return &UnsupportedPixelFormatError{
		Reason:         fmt.Sprintf(format, args...),
		TransferSyntax: f.syntax,
		BitsAllocated:  f.bitsAllocated,
	}
}

func readPixelFormat(ds *Dataset) (pixelFormat, error) {
	f := pixelFormat{
		syntax:      GetTransferSyntax(ds),
		rows:        GetRows(ds),
		cols:        GetColumns(ds),
		samples:     GetSamplesPerPixel(ds),
		signed:      GetPixelRepresentation(ds) == 1,
		frames:      GetNumberOfFrames(ds),
		photometric: GetPhotometricInterpretation(ds),
	}
	if ds == nil || ds.PixelData == nil {
		return f, f.unsupported("no pixel data")
	}
	bits, ok := ds.GetInt(tag.BitsAllocated)
	if !ok {
		return f, f.unsupported("missing bits allocated")
	}
	f.bitsAllocated = bits
	if bits != 8 && bits != 16 {
		return f, f.unsupported("bits allocated %d not in {8, 16}", bits)
	}
	if f.rows <= 0 || f.cols <= 0 {
		return f, f.unsupported("missing image dimensions (%dx%d)", f.cols, f.rows)
	}
	if f.samples != 1 && f.samples != 3 {
		return f, f.unsupported("samples per pixel %d", f.samples)
	}
	if !f.syntax.IsDecodable() {
		return f, f.unsupported("compressed transfer syntax")
	}

	f.bitsStored = bits
	if v, ok := ds.GetInt(tag.BitsStored); ok && v > 0 && v <= bits {
		f.bitsStored = v
	}
	f.highBit = f.bitsStored - 1
	if v, ok := ds.GetInt(tag.HighBit); ok && v >= f.bitsStored-1 && v < bits {
		f.highBit = v
	}
	if v, ok := ds.GetInt(tag.PlanarConfiguration); ok && f.samples == 3 {
		f.planar = v == 1
	}
	return f, nil
}

// sample aligns a raw stored value on High Bit, then masks and sign-extends it.
func (f pixelFormat) sample(raw uint32) int32 {
	return f.stored(raw >> (f.highBit + 1 - f.bitsStored))
}

// stored masks a value aligned at bit zero to Bits Stored and sign-extends it when signed.
func (f pixelFormat) stored(v uint32) int32 {
	v &= uint32(1)<<f.bitsStored - 1
	if f.signed && v&(1<<(f.bitsStored-1)) != 0 {
		return int32(v) - int32(1)<<f.bitsStored
	}
	return int32(v)
}

// DecodePixels decodes the first frame of the pixel data in ds.
func DecodePixels(ds *Dataset) (*PixelRaster, error) {
	return DecodeFrame(ds, 0)
}

// DecodeFrame decodes frame index of the pixel data in ds. Unsupported layouts and
// compressed syntaxes fail with *UnsupportedPixelFormatError; pixel data shorter
// than its declared layout fails with *MalformedElementError.
func DecodeFrame(ds *Dataset, index int) (*PixelRaster, error) {
	f, err := readPixelFormat(ds)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= f.frames {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", index, f.frames)
	}

	ref := ds.PixelData
	var data []int32
	switch {
	case !ref.IsEncapsulated:
		data, err = f.decodeNative(ds, ref, index)
	case f.syntax == transfer.RLELossless:
		data, err = f.decodeRLE(ds, ref, index)
	case f.syntax == transfer.JPEGBaseline:
		data, err = f.decodeJPEG(ds, ref, index)
	case f.syntax.IsJPEG2000():
		data, err = f.guard("JPEG 2000", func() ([]int32, error) { return f.decodeJPEG2000(ds, ref, index) })
	case f.syntax.IsJPEGLS():
		data, err = f.guard("JPEG-LS", func() ([]int32, error) { return f.decodeJPEGLS(ds, ref, index) })
	case f.syntax.IsJPEGLossless():
		data, err = f.guard("JPEG Lossless", func() ([]int32, error) { return f.decodeJPEGLossless(ds, ref, index) })
	default:
		err = f.unsupported("encapsulated pixel data")
	}
	if err != nil {
		return nil, err
	}

	// both decoders undo their colour transform
	if f.samples == 3 && (f.syntax == transfer.JPEGBaseline || f.syntax.IsJPEG2000()) {
		f.photometric = "RGB"
	}
	intercept, slope := GetRescale(ds)
	return &PixelRaster{
		Rows:             f.rows,
		Columns:          f.cols,
		SamplesPerPixel:  f.samples,
		BitsAllocated:    f.bitsAllocated,
		BitsStored:       f.bitsStored,
		Signed:           f.signed,
		Photometric:      f.photometric,
		Frame:            index,
		Frames:           f.frames,
		RescaleIntercept: intercept,
		RescaleSlope:     slope,
		Data:             data,
	}, nil
}

func (f pixelFormat) decodeNative(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	raw, ok := ds.Bytes(ref.Range)
	if !ok {
		return nil, malformed(tag.PixelData, ref.Range.Offset, "pixel data range outside buffer")
	}
	size := f.frameSize()
	// compare frame counts, not byte offsets: index*size can overflow
	if size <= 0 || index >= len(raw)/size {
		slog.Warn("truncated pixel data",
			slog.Int("have", len(raw)),
			slog.Int("frameSize", size),
			slog.Int("frame", index))
		return nil, malformed(tag.PixelData, ref.Range.Offset,
			"pixel data holds %d bytes, too short for frame %d of %d bytes", len(raw), index, size)
	}
	start := index * size
	order := f.syntax.ByteOrder()
	if f.bytesPerSample() == 1 {
		order = binary.LittleEndian
	}
	return f.unpack(raw[start:start+size], order, f.planar), nil
}

// unpack converts frame bytes to samples, re-interleaving planar colour data.
func (f pixelFormat) unpack(frame []byte, order binary.ByteOrder, planar bool) []int32 {
	n := f.samplesPerFrame()
	out := make([]int32, n)
	bps := f.bytesPerSample()
	pixels := f.rows * f.cols
	for i := 0; i < n; i++ {
		var raw uint32
		if bps == 1 {
			raw = uint32(frame[i])
		} else {
			raw = uint32(order.Uint16(frame[i*2:]))
		}
		dst := i
		if planar {
			// i walks plane by plane: R...R G...G B...B
			plane, p := i/pixels, i%pixels
			dst = p*f.samples + plane
		}
		out[dst] = f.sample(raw)
	}
	return out
}

// fragments returns the encapsulated bytes of frame index.
func (f pixelFormat) fragments(ds *Dataset, ref *PixelDataRef, index int) ([]byte, error) {
	if len(ref.Fragments) == 0 {
		return nil, malformed(tag.PixelData, ref.Range.Offset, "encapsulated pixel data has no fragments")
	}

	var parts []ByteRange
	switch {
	case f.frames == 1:
		parts = ref.Fragments
	case len(ref.Offsets) == f.frames:
		// Basic Offset Table entries are relative to the first fragment's item tag
		base := ref.Fragments[0].Offset - 8
		lo := uint64(ref.Offsets[index])
		hi := uint64(1 << 63)
		if index+1 < len(ref.Offsets) {
			hi = uint64(ref.Offsets[index+1])
		}
		for _, frag := range ref.Fragments {
			rel := uint64(frag.Offset - 8 - base)
			if rel >= lo && rel < hi {
				parts = append(parts, frag)
			}
		}
	case len(ref.Fragments) == f.frames:
		parts = ref.Fragments[index : index+1]
	default:
		return nil, f.unsupported("cannot map %d fragments to %d frames", len(ref.Fragments), f.frames)
	}
	if len(parts) == 0 {
		return nil, malformed(tag.PixelData, ref.Range.Offset, "no fragments for frame %d", index)
	}

	if len(parts) == 1 {
		b, ok := ds.Bytes(parts[0])
		if !ok {
			return nil, malformed(tag.PixelData, parts[0].Offset, "fragment outside buffer")
		}
		return b, nil
	}
	var buf bytes.Buffer
	for _, p := range parts {
		b, ok := ds.Bytes(p)
		if !ok {
			return nil, malformed(tag.PixelData, p.Offset, "fragment outside buffer")
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func (f pixelFormat) decodeRLE(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	b, err := f.fragments(ds, ref, index)
	if err != nil {
		return nil, err
	}
	frame, err := rle.Decode(b, rle.Frame{
		Width:          f.cols,
		Height:         f.rows,
		Samples:        f.samples,
		BytesPerSample: f.bytesPerSample(),
	})
	if err != nil {
		return nil, &MalformedElementError{Tag: tag.PixelData, Offset: ref.Range.Offset, Reason: "decoding RLE frame", Err: err}
	}
	// RLE segments decode to interleaved little-endian samples
	return f.unpack(frame, binary.LittleEndian, false), nil
}

func (f pixelFormat) decodeJPEG(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	if f.bitsAllocated != 8 {
		return nil, f.unsupported("JPEG Baseline requires 8 bits allocated")
	}
	b, err := f.fragments(ds, ref, index)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, &MalformedElementError{Tag: tag.PixelData, Offset: ref.Range.Offset, Reason: "decoding JPEG frame", Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() != f.cols || bounds.Dy() != f.rows {
		return nil, malformed(tag.PixelData, ref.Range.Offset,
			"JPEG frame is %dx%d, expected %dx%d", bounds.Dx(), bounds.Dy(), f.cols, f.rows)
	}

	out := make([]int32, f.samplesPerFrame())
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if f.samples == 1 {
				if g, ok := img.(*image.Gray); ok {
					out[i] = int32(g.GrayAt(x, y).Y)
				} else {
					r, _, _, _ := img.At(x, y).RGBA()
					out[i] = int32(r >> 8)
				}
				i++
				continue
			}
			// The decoder converts YCbCr to RGB
			r, g, bl, _ := img.At(x, y).RGBA()
			out[i], out[i+1], out[i+2] = int32(r>>8), int32(g>>8), int32(bl>>8)
			i += 3
		}
	}
	return out, nil
}

// guard turns a codec panic on corrupt input into an unsupported pixel format.
func (f pixelFormat) guard(name string, decode func() ([]int32, error)) (data []int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("codec panic", slog.String("codec", name), slog.Any("panic", r))
			data, err = nil, f.unsupported("%s decoder failed: %v", name, r)
		}
	}()
	return decode()
}

// checkGeometry rejects codec output that disagrees with the Image Pixel module.
func (f pixelFormat) checkGeometry(name string, width, height, components int) error {
	if width != f.cols || height != f.rows || components != f.samples {
		return f.unsupported("%s frame is %dx%d with %d samples, expected %dx%d with %d",
			name, width, height, components, f.cols, f.rows, f.samples)
	}
	return nil
}

func (f pixelFormat) decodeJPEG2000(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	b, err := f.fragments(ds, ref, index)
	if err != nil {
		return nil, err
	}
	dec := jpeg2000.NewDecoder()
	if err := dec.Decode(b); err != nil {
		return nil, f.unsupported("JPEG 2000 codestream: %v", err)
	}
	if err := f.checkGeometry("JPEG 2000", dec.Width(), dec.Height(), dec.Components()); err != nil {
		return nil, err
	}
	planes := dec.GetImageData()
	pixels := f.rows * f.cols
	out := make([]int32, f.samplesPerFrame())
	for c := 0; c < f.samples; c++ {
		if c >= len(planes) || len(planes[c]) < pixels {
			return nil, f.unsupported("JPEG 2000 component %d is incomplete", c)
		}
		for p, v := range planes[c][:pixels] {
			out[p*f.samples+c] = f.stored(uint32(v))
		}
	}
	return out, nil
}

func (f pixelFormat) decodeJPEGLS(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	b, err := f.fragments(ds, ref, index)
	if err != nil {
		return nil, err
	}
	// NEAR=0 streams are lossless, so one decoder serves both syntaxes
	px, w, h, comps, depth, near, err := nearlossless.Decode(b)
	if err != nil {
		return nil, f.unsupported("JPEG-LS stream: %v", err)
	}
	slog.Debug("decoded JPEG-LS frame", slog.Int("frame", index), slog.Int("near", near))
	return f.unpackDecoded("JPEG-LS", px, w, h, comps, depth)
}

func (f pixelFormat) decodeJPEGLossless(ds *Dataset, ref *PixelDataRef, index int) ([]int32, error) {
	b, err := f.fragments(ds, ref, index)
	if err != nil {
		return nil, err
	}
	decode := lossless.Decode
	if f.syntax == transfer.JPEGLosslessFirstOrder {
		decode = lossless14sv1.Decode
	}
	px, w, h, comps, depth, err := decode(b)
	if err != nil {
		return nil, f.unsupported("JPEG Lossless stream: %v", err)
	}
	return f.unpackDecoded("JPEG Lossless", px, w, h, comps, depth)
}

// unpackDecoded reads codec output: interleaved samples, one byte each up to
// 8 bits and two little-endian bytes above.
func (f pixelFormat) unpackDecoded(name string, b []byte, width, height, components, depth int) ([]int32, error) {
	if err := f.checkGeometry(name, width, height, components); err != nil {
		return nil, err
	}
	bps := 1
	if depth > 8 {
		bps = 2
	}
	n := f.samplesPerFrame()
	if len(b) < n*bps {
		return nil, f.unsupported("%s frame holds %d bytes, expected %d", name, len(b), n*bps)
	}
	out := make([]int32, n)
	for i := range out {
		v := uint32(b[i])
		if bps == 2 {
			v = uint32(binary.LittleEndian.Uint16(b[i*2:]))
		}
		out[i] = f.stored(v)
	}
	return out, nil
}
