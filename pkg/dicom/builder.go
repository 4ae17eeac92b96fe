package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/cocosip/go-dicom-codec/jpeg/lossless14sv1"
	"github.com/cocosip/go-dicom-codec/jpeg2000"
	"github.com/jpfielding/dcmview/pkg/compress/rle"
	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
)

// Option configures a Dataset during construction
type Option func(*Dataset) error

// NewDataset creates a Dataset with the given options
func NewDataset(opts ...Option) (*Dataset, error) {
	ds := newDataset(transfer.Default, nil)
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (ds *Dataset) set(elem *Element) {
	if _, ok := ds.Elements[elem.Tag]; !ok {
		ds.Order = append(ds.Order, elem.Tag)
	}
	ds.Elements[elem.Tag] = elem
}

// WithSyntax sets the transfer syntax the dataset is written with
func WithSyntax(s transfer.Syntax) Option {
	return func(ds *Dataset) error {
		ds.Syntax = s
		return nil
	}
}

// WithElement adds a single element, its VR taken from the dictionary
func WithElement(t Tag, value any) Option {
	return WithElementVR(t, t.LookupVR(), value)
}

// WithElementVR adds a single element with an explicit VR
func WithElementVR(t Tag, v vr.VR, value any) Option {
	return func(ds *Dataset) error {
		if v == vr.SQ {
			return fmt.Errorf("use WithSequence for %s", t)
		}
		ds.set(&Element{Tag: t, VR: v, Value: value})
		return nil
	}
}

// WithSequence adds a sequence element to the dataset
func WithSequence(t Tag, items ...*Dataset) Option {
	return func(ds *Dataset) error {
		if items == nil {
			items = []*Dataset{}
		}
		ds.set(&Element{Tag: t, VR: vr.SQ, Items: items})
		return nil
	}
}

// WithFileMeta adds standard file meta information elements
func WithFileMeta(sopClassUID, sopInstanceUID string) Option {
	return func(ds *Dataset) error {
		opts := []Option{
			WithElement(tag.MediaStorageSOPClassUID, sopClassUID),
			WithElement(tag.MediaStorageSOPInstanceUID, sopInstanceUID),
			WithElement(tag.SOPClassUID, sopClassUID),
			WithElement(tag.SOPInstanceUID, sopInstanceUID),
			WithElement(tag.ImplementationClassUID, ImplementationClassUID),
			WithElement(tag.ImplementationVersionName, "DCMVIEW"),
		}
		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// Codec compresses native frames into encapsulated fragments
type Codec interface {
	Name() string
	Syntax() transfer.Syntax
	// Encode compresses one frame of little-endian, sample-interleaved bytes
	Encode(frame []byte, f rle.Frame) ([]byte, error)
}

// RLECodec produces RLE Lossless fragments
type RLECodec struct{}

func (RLECodec) Name() string { return "RLE" }

func (RLECodec) Syntax() transfer.Syntax { return transfer.RLELossless }

func (RLECodec) Encode(frame []byte, f rle.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := rle.Encode(&buf, frame, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEGCodec produces 8-bit grayscale JPEG Baseline fragments
type JPEGCodec struct {
	Quality int
}

func (JPEGCodec) Name() string { return "JPEG Baseline" }

func (JPEGCodec) Syntax() transfer.Syntax { return transfer.JPEGBaseline }

func (c JPEGCodec) Encode(frame []byte, f rle.Frame) ([]byte, error) {
	if f.Samples != 1 || f.BytesPerSample != 1 {
		return nil, fmt.Errorf("jpeg: only 8-bit grayscale frames are supported")
	}
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, frame)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEG2000Codec produces reversible (5/3 wavelet) JPEG 2000 fragments
type JPEG2000Codec struct{}

func (JPEG2000Codec) Name() string { return "JPEG 2000 Lossless" }

func (JPEG2000Codec) Syntax() transfer.Syntax { return transfer.JPEG2000Lossless }

func (JPEG2000Codec) Encode(frame []byte, f rle.Frame) ([]byte, error) {
	pixels := f.Width * f.Height
	if len(frame) < pixels*f.Samples*f.BytesPerSample {
		return nil, fmt.Errorf("jpeg2000: frame holds %d bytes, need %d", len(frame), pixels*f.Samples*f.BytesPerSample)
	}
	planes := make([][]int32, f.Samples)
	for c := range planes {
		planes[c] = make([]int32, pixels)
		for p := range planes[c] {
			i := p*f.Samples + c
			if f.BytesPerSample == 1 {
				planes[c][p] = int32(frame[i])
			} else {
				planes[c][p] = int32(binary.LittleEndian.Uint16(frame[i*2:]))
			}
		}
	}
	params := jpeg2000.DefaultEncodeParams(f.Width, f.Height, f.Samples, 8*f.BytesPerSample, false)
	// every decomposition level halves the smallest side
	for params.NumLevels > 0 && (f.Width>>params.NumLevels == 0 || f.Height>>params.NumLevels == 0) {
		params.NumLevels--
	}
	return jpeg2000.NewEncoder(params).EncodeComponents(planes)
}

// JPEGLosslessCodec produces first-order prediction JPEG Lossless fragments
type JPEGLosslessCodec struct{}

func (JPEGLosslessCodec) Name() string { return "JPEG Lossless SV1" }

func (JPEGLosslessCodec) Syntax() transfer.Syntax { return transfer.JPEGLosslessFirstOrder }

func (JPEGLosslessCodec) Encode(frame []byte, f rle.Frame) ([]byte, error) {
	return lossless14sv1.Encode(frame, f.Width, f.Height, f.Samples, 8*f.BytesPerSample)
}

// WithPixelData adds unsigned grayscale pixel data and the Image Pixel module.
// data holds rows*cols values per frame. A nil codec stores native pixel data;
// otherwise every frame is compressed and the dataset syntax set to the codec's.
func WithPixelData(rows, cols, bitsAllocated int, data []uint16, codec Codec) Option {
	return func(ds *Dataset) error {
		pixelsPerFrame := rows * cols
		if pixelsPerFrame == 0 || len(data) == 0 || len(data)%pixelsPerFrame != 0 {
			return fmt.Errorf("%d samples is not a whole number of %dx%d frames", len(data), cols, rows)
		}
		if bitsAllocated != 8 && bitsAllocated != 16 {
			return fmt.Errorf("bits allocated %d not supported", bitsAllocated)
		}
		numFrames := len(data) / pixelsPerFrame
		bps := bitsAllocated / 8

		// little-endian bytes for every frame
		raw := make([]byte, 0, len(data)*bps)
		for _, v := range data {
			if bps == 1 {
				raw = append(raw, byte(v))
			} else {
				raw = append(raw, byte(v), byte(v>>8))
			}
		}

		opts := []Option{
			WithElement(tag.SamplesPerPixel, uint16(1)),
			WithElement(tag.PhotometricInterpretation, "MONOCHROME2"),
			WithElement(tag.Rows, uint16(rows)),
			WithElement(tag.Columns, uint16(cols)),
			WithElement(tag.BitsAllocated, uint16(bitsAllocated)),
			WithElement(tag.BitsStored, uint16(bitsAllocated)),
			WithElement(tag.HighBit, uint16(bitsAllocated-1)),
			WithElement(tag.PixelRepresentation, uint16(0)),
		}
		if numFrames > 1 {
			opts = append(opts, WithElement(tag.NumberOfFrames, fmt.Sprint(numFrames)))
		}

		if codec == nil {
			v := vr.OB
			if bitsAllocated > 8 {
				v = vr.OW
			}
			opts = append(opts, WithElementVR(tag.PixelData, v, raw))
		} else {
			frameLen := pixelsPerFrame * bps
			layout := rle.Frame{Width: cols, Height: rows, Samples: 1, BytesPerSample: bps}
			frags := make(Fragments, numFrames)
			for i := range frags {
				b, err := codec.Encode(raw[i*frameLen:(i+1)*frameLen], layout)
				if err != nil {
					return fmt.Errorf("%s encode error: %w", codec.Name(), err)
				}
				frags[i] = b
			}
			opts = append(opts, WithSyntax(codec.Syntax()), WithElementVR(tag.PixelData, vr.OB, frags))
		}

		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}
