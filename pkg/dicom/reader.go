package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
)

// DefaultMaxDepth caps sequence nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 32

const preambleLength = 128

var magic = []byte("DICM")

// Options configures decoding.
type Options struct {
	// MaxDepth caps sequence nesting. Exceeding it is a MalformedElementError.
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Reader decodes DICOM elements from an in-memory buffer
type Reader struct {
	buf      []byte
	pos      int
	syntax   transfer.Syntax
	order    binary.ByteOrder
	explicit bool
	text     textDecoder
	maxDepth int
}

// NewReader creates a reader positioned at the start of buf.
func NewReader(buf []byte, syntax transfer.Syntax) *Reader {
	r := &Reader{buf: buf, maxDepth: DefaultMaxDepth}
	r.setSyntax(syntax)
	return r
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.pos }

// setSyntax updates reader settings based on transfer syntax
func (r *Reader) setSyntax(s transfer.Syntax) {
	r.syntax = s
	r.order = s.ByteOrder()
	r.explicit = s.IsExplicitVR()
}

func (r *Reader) remaining() int { return len(r.buf) - r.pos }

// ReadElement decodes one element from the start of data using the given transfer
// syntax and returns it with the number of bytes consumed. Sequences are decoded
// in full; pixel data is recorded as a byte range relative to data.
func ReadElement(data []byte, syntax transfer.Syntax) (*Element, int, error) {
	r := NewReader(data, syntax)
	elem, err := r.ReadElement()
	if err != nil {
		return nil, r.pos, err
	}
	return elem, r.pos, nil
}

// ReadElement decodes the element at the current position.
func (r *Reader) ReadElement() (*Element, error) {
	return r.readElement(0)
}

// Decode parses a complete DICOM file held in memory.
func Decode(data []byte) (*Dataset, error) {
	return DecodeWithOptions(data, Options{})
}

// DecodeWithOptions parses a complete DICOM file. On a MalformedElementError the
// returned dataset holds every element read before the failure.
func DecodeWithOptions(data []byte, opts Options) (*Dataset, error) {
	if len(data) < preambleLength+len(magic) {
		return nil, &NotDicomError{Reason: fmt.Sprintf("%d bytes is too short for preamble and DICM marker", len(data))}
	}
	if !bytes.Equal(data[preambleLength:preambleLength+len(magic)], magic) {
		return nil, &NotDicomError{Reason: "missing DICM magic"}
	}

	// Group 0002 (File Meta Information) is ALWAYS Explicit VR Little Endian
	r := NewReader(data, transfer.ExplicitVRLittleEndian)
	r.maxDepth = opts.maxDepth()
	r.pos = preambleLength + len(magic)

	ds := newDataset(transfer.Default, data)
	for r.remaining() >= 4 && binary.LittleEndian.Uint16(r.buf[r.pos:]) == 0x0002 {
		elem, err := r.readElement(0)
		if err != nil {
			return ds, err
		}
		ds.add(elem)
	}

	syntax := transfer.Default
	if uid, ok := ds.GetString(tag.TransferSyntaxUID); ok && uid != "" {
		syntax = transfer.FromUID(uid)
	} else if !r.looksExplicit() {
		// No meta group syntax and the first element carries no VR
		syntax = transfer.ImplicitVRLittleEndian
	}
	ds.Syntax = syntax

	if syntax.IsDeflated() {
		inflated, err := inflate(data[r.pos:])
		if err != nil {
			return ds, &MalformedElementError{Offset: r.pos, Reason: "inflating deflated data set", Err: err}
		}
		buf := make([]byte, r.pos, r.pos+len(inflated))
		copy(buf, data[:r.pos])
		buf = append(buf, inflated...)
		r.buf = buf
		ds.buf = buf
	}
	r.setSyntax(syntax)

	err := r.readTopLevel(ds)
	slog.Debug("decoded data set",
		slog.String("syntax", syntax.Name()),
		slog.Int("elements", ds.Len()),
		slog.Bool("pixelData", ds.PixelData != nil),
		slog.Bool("complete", err == nil))
	if err != nil {
		return ds, err
	}
	return ds, nil
}

// ReadFile reads a DICOM file from disk and decodes it.
func ReadFile(path string, opts Options) (*Dataset, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return DecodeWithOptions(data, opts)
}

// looksExplicit reports whether the bytes after the next tag form a known VR code.
func (r *Reader) looksExplicit() bool {
	if r.remaining() < 6 {
		return true
	}
	_, known := vr.Parse(r.buf[r.pos+4 : r.pos+6])
	return known
}

func inflate(b []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	return io.ReadAll(fr)
}

// readTopLevel reads elements until the buffer is exhausted or pixel data is reached.
func (r *Reader) readTopLevel(ds *Dataset) error {
	for r.remaining() > 0 {
		if n := r.remaining(); n < 4 {
			// too short for a tag: trailing padding, not an element
			slog.Debug("ignoring trailing bytes", slog.Int("offset", r.pos), slog.Int("bytes", n))
			return nil
		}
		elem, err := r.readElement(0)
		if err != nil {
			return err
		}
		r.store(ds, elem)
		if elem.Tag == tag.PixelData {
			return nil
		}
	}
	return nil
}

// store adds elem to ds and applies side effects of character set and pixel data elements.
func (r *Reader) store(ds *Dataset, elem *Element) {
	if !ds.add(elem) {
		slog.Debug("duplicate tag ignored", slog.String("tag", elem.Tag.String()), slog.Int("offset", elem.Offset))
		return
	}
	switch elem.Tag {
	case tag.SpecificCharacterSet:
		if s, ok := elem.GetString(); ok {
			r.text = newTextDecoder(s)
		}
	case tag.PixelData:
		ds.PixelData, _ = elem.GetPixelData()
	}
}

// readTag reads a DICOM tag
func (r *Reader) readTag() (Tag, error) {
	if r.remaining() < 4 {
		return Tag{}, malformed(Tag{}, r.pos, "truncated tag: %d bytes remain", r.remaining())
	}
	t := Tag{Group: r.order.Uint16(r.buf[r.pos:]), Element: r.order.Uint16(r.buf[r.pos+2:])}
	r.pos += 4
	return t, nil
}

func (r *Reader) peekTag() Tag {
	return Tag{Group: r.order.Uint16(r.buf[r.pos:]), Element: r.order.Uint16(r.buf[r.pos+2:])}
}

// readItemHeader reads an item or delimiter tag and its 4-byte length.
func (r *Reader) readItemHeader(parent Tag) (Tag, uint32, error) {
	if r.remaining() < 8 {
		return Tag{}, 0, malformed(parent, r.pos, "missing sequence delimiter")
	}
	t, _ := r.readTag()
	length := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return t, length, nil
}

func (r *Reader) fits(t Tag, start int, length uint32) error {
	if uint64(length) > uint64(r.remaining()) {
		return malformed(t, start, "declared length %d exceeds %d remaining bytes", length, r.remaining())
	}
	return nil
}

// readElement reads the header and value of one element
func (r *Reader) readElement(depth int) (*Element, error) {
	start := r.pos
	t, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if t.IsDelimiter() {
		return nil, malformed(t, start, "unexpected delimiter outside a sequence")
	}

	var v vr.VR
	var length uint32
	if r.explicit {
		if r.remaining() < 4 {
			return nil, malformed(t, start, "truncated element header")
		}
		code := r.buf[r.pos : r.pos+2]
		r.pos += 2
		var known bool
		if v, known = vr.Parse(code); !known {
			slog.Debug("unknown VR, reading as UN", slog.String("tag", t.String()), slog.String("vr", fmt.Sprintf("%q", code)))
		}
		if v.IsLongLength() {
			// Reserved 2 bytes, then a 4-byte length
			if r.remaining() < 6 {
				return nil, malformed(t, start, "truncated element header")
			}
			r.pos += 2
			length = r.order.Uint32(r.buf[r.pos:])
			r.pos += 4
		} else {
			length = uint32(r.order.Uint16(r.buf[r.pos:]))
			r.pos += 2
		}
	} else {
		// Implicit VR: VL is always 4 bytes, VR comes from the dictionary
		if r.remaining() < 4 {
			return nil, malformed(t, start, "truncated element header")
		}
		length = r.order.Uint32(r.buf[r.pos:])
		r.pos += 4
		v = t.LookupVR()
	}

	elem := &Element{Tag: t, VR: v, Length: length, Offset: r.pos}
	switch {
	case t == tag.PixelData:
		ref, err := r.readPixelData(t, start, v, length)
		if err != nil {
			return nil, err
		}
		elem.Value = ref
	case v == vr.SQ || (v == vr.UN && length == UndefinedLength):
		// UN with undefined length is a sequence encoded as Implicit VR Little Endian
		implicit := v == vr.UN && r.explicit
		elem.VR = vr.SQ
		items, err := r.readSequence(t, length, depth, implicit)
		elem.Items = items
		if err != nil {
			return nil, err
		}
	default:
		if length == UndefinedLength {
			return nil, malformed(t, start, "undefined length on %s value", v)
		}
		if err := r.fits(t, start, length); err != nil {
			return nil, err
		}
		data := r.buf[r.pos : r.pos+int(length)]
		r.pos += int(length)
		elem.Value = parseValue(v, data, r.order, r.text)
	}
	return elem, nil
}

// readSequence reads the items of a sequence. Items nest at depth+1.
func (r *Reader) readSequence(t Tag, length uint32, depth int, implicit bool) ([]*Dataset, error) {
	if depth+1 > r.maxDepth {
		return nil, malformed(t, r.pos, "sequence nesting exceeds depth %d", r.maxDepth)
	}
	if implicit {
		saved := r.syntax
		r.setSyntax(transfer.ImplicitVRLittleEndian)
		defer r.setSyntax(saved)
	}

	end := -1
	if length != UndefinedLength {
		if err := r.fits(t, r.pos, length); err != nil {
			return nil, err
		}
		end = r.pos + int(length)
	}

	var items []*Dataset
	for end < 0 || r.pos < end {
		itemStart := r.pos
		it, itemLength, err := r.readItemHeader(t)
		if err != nil {
			return items, err
		}
		if it == tag.SequenceDelimitationItem {
			break
		}
		if it != tag.Item {
			return items, malformed(it, itemStart, "expected item in sequence %s", t)
		}
		itemEnd := -1
		if itemLength != UndefinedLength {
			if err := r.fits(it, itemStart, itemLength); err != nil {
				return items, err
			}
			itemEnd = r.pos + int(itemLength)
		}
		item, err := r.readItem(itemEnd, depth+1)
		items = append(items, item)
		if err != nil {
			return items, err
		}
	}
	if end >= 0 && r.pos != end {
		return items, malformed(t, r.pos, "sequence overruns its length by %d bytes", r.pos-end)
	}
	return items, nil
}

// readItem reads one sequence item, bounded by end or by an item delimiter when end < 0.
func (r *Reader) readItem(end int, depth int) (*Dataset, error) {
	item := newDataset(r.syntax, r.buf)
	saved := r.text
	defer func() { r.text = saved }()

	for end < 0 || r.pos < end {
		if end < 0 {
			if r.remaining() < 8 {
				return item, malformed(tag.Item, r.pos, "missing item delimiter")
			}
			if r.peekTag() == tag.ItemDelimitationItem {
				r.pos += 8
				break
			}
		}
		elem, err := r.readElement(depth)
		if err != nil {
			return item, err
		}
		r.store(item, elem)
	}
	if end >= 0 && r.pos != end {
		return item, malformed(tag.Item, r.pos, "item overruns its length by %d bytes", r.pos-end)
	}
	return item, nil
}

// readPixelData records the location of pixel data without copying it.
func (r *Reader) readPixelData(t Tag, start int, v vr.VR, length uint32) (*PixelDataRef, error) {
	if length != UndefinedLength {
		if err := r.fits(t, start, length); err != nil {
			return nil, err
		}
		ref := &PixelDataRef{VR: v, Range: ByteRange{Offset: r.pos, Length: int(length)}}
		r.pos += int(length)
		return ref, nil
	}

	// Encapsulated: Basic Offset Table item, fragment items, sequence delimiter
	ref := &PixelDataRef{VR: v, IsEncapsulated: true}
	valueStart := r.pos
	for first := true; ; first = false {
		itemStart := r.pos
		it, itemLength, err := r.readItemHeader(t)
		if err != nil {
			return nil, err
		}
		if it == tag.SequenceDelimitationItem {
			break
		}
		if it != tag.Item {
			return nil, malformed(it, itemStart, "expected pixel data item")
		}
		if err := r.fits(it, itemStart, itemLength); err != nil {
			return nil, err
		}
		if first {
			ref.Offsets = make([]uint32, itemLength/4)
			for i := range ref.Offsets {
				ref.Offsets[i] = r.order.Uint32(r.buf[r.pos+i*4:])
			}
		} else {
			ref.Fragments = append(ref.Fragments, ByteRange{Offset: r.pos, Length: int(itemLength)})
		}
		r.pos += int(itemLength)
	}
	ref.Range = ByteRange{Offset: valueStart, Length: r.pos - valueStart}
	return ref, nil
}
