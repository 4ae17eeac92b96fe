package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
)

// Fragments is an encapsulated pixel data value: one compressed frame per entry.
type Fragments [][]byte

// WriteFile writes a dataset to a DICOM file
func WriteFile(path string, ds *Dataset) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Write(f, ds)
}

// Write writes ds as a Part 10 file. The meta group is always Explicit VR Little
// Endian; the body uses ds.Syntax (Explicit VR Little Endian when empty).
func Write(w io.Writer, ds *Dataset) (int64, error) {
	cw := &CountingWriter{Writer: w}
	syntax := ds.Syntax
	if syntax == "" {
		syntax = transfer.Default
	}

	// Preamble (128 bytes 0x00) and DICM magic
	if _, err := cw.Write(make([]byte, preambleLength)); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write(magic); err != nil {
		return cw.Count.Load(), err
	}

	meta, err := encodeMeta(ds, syntax)
	if err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write(meta); err != nil {
		return cw.Count.Load(), err
	}

	var body bytes.Buffer
	enc := newEncoder(syntax, ds)
	if err := enc.writeDataSet(&body, ds, false); err != nil {
		return cw.Count.Load(), err
	}

	if !syntax.IsDeflated() {
		_, err := cw.Write(body.Bytes())
		return cw.Count.Load(), err
	}
	fw, err := flate.NewWriter(cw, flate.DefaultCompression)
	if err != nil {
		return cw.Count.Load(), err
	}
	if _, err := fw.Write(body.Bytes()); err != nil {
		return cw.Count.Load(), err
	}
	if err := fw.Close(); err != nil {
		return cw.Count.Load(), err
	}
	return cw.Count.Load(), nil
}

// encodeMeta writes group 0002 with a computed group length and the body's transfer syntax.
func encodeMeta(ds *Dataset, syntax transfer.Syntax) ([]byte, error) {
	meta := newDataset(transfer.ExplicitVRLittleEndian, nil)
	for t, elem := range ds.Elements {
		if t.IsMeta() && !t.IsGroupLength() {
			meta.Elements[t] = elem
		}
	}
	if _, ok := meta.Elements[tag.FileMetaInformationVersion]; !ok {
		meta.Elements[tag.FileMetaInformationVersion] = &Element{Tag: tag.FileMetaInformationVersion, VR: vr.OB, Value: []byte{0x00, 0x01}}
	}
	meta.Elements[tag.TransferSyntaxUID] = &Element{Tag: tag.TransferSyntaxUID, VR: vr.UI, Value: string(syntax)}
	if _, ok := meta.Elements[tag.ImplementationClassUID]; !ok {
		meta.Elements[tag.ImplementationClassUID] = &Element{Tag: tag.ImplementationClassUID, VR: vr.UI, Value: ImplementationClassUID}
	}

	var body bytes.Buffer
	enc := newEncoder(transfer.ExplicitVRLittleEndian, ds)
	if err := enc.writeDataSet(&body, meta, true); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	length := &Element{Tag: tag.FileMetaInformationGroupLength, VR: vr.UL, Value: uint32(body.Len())}
	if err := enc.writeElement(&buf, length); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// encoder serializes elements in one transfer syntax. src resolves pixel data
// references back to the buffer a dataset was decoded from.
type encoder struct {
	order    transfer.ByteOrder
	explicit bool
	src      *Dataset
}

func newEncoder(syntax transfer.Syntax, src *Dataset) *encoder {
	return &encoder{order: syntax.ByteOrder(), explicit: syntax.IsExplicitVR(), src: src}
}

func (e *encoder) writeDataSet(w *bytes.Buffer, ds *Dataset, meta bool) error {
	for _, t := range ds.sortedTags() {
		if t.IsMeta() != meta || t.IsGroupLength() {
			continue
		}
		if err := e.writeElement(w, ds.Elements[t]); err != nil {
			return fmt.Errorf("failed to write element %v: %w", t, err)
		}
	}
	return nil
}

func (e *encoder) writeHeader(w *bytes.Buffer, t Tag, v vr.VR, length uint32) error {
	var b [12]byte
	e.order.PutUint16(b[0:], t.Group)
	e.order.PutUint16(b[2:], t.Element)
	if !e.explicit {
		e.order.PutUint32(b[4:], length)
		w.Write(b[:8])
		return nil
	}
	copy(b[4:6], v)
	if v.IsLongLength() {
		// Reserved 2 bytes (0x00)
		e.order.PutUint32(b[8:], length)
		w.Write(b[:12])
		return nil
	}
	if length > math.MaxUint16 {
		return fmt.Errorf("value length %d exceeds short VR %s", length, v)
	}
	e.order.PutUint16(b[6:], uint16(length))
	w.Write(b[:8])
	return nil
}

func (e *encoder) writeElement(w *bytes.Buffer, elem *Element) error {
	v := elem.VR
	if _, known := vr.Parse([]byte(v)); !known {
		v = vr.UN
	}

	if v == vr.SQ || elem.Items != nil {
		return e.writeSequence(w, elem.Tag, elem.Items)
	}

	switch val := elem.Value.(type) {
	case Fragments:
		return e.writeFragments(w, elem.Tag, val)
	case *PixelDataRef:
		raw, ok := e.src.Bytes(val.Range)
		if !ok {
			return fmt.Errorf("pixel data range outside source buffer")
		}
		length := uint32(len(raw))
		if val.IsEncapsulated {
			length = UndefinedLength
		}
		if err := e.writeHeader(w, elem.Tag, val.VR, length); err != nil {
			return err
		}
		w.Write(raw)
		return nil
	}

	data, err := e.encodeValue(elem.Value, v)
	if err != nil {
		return err
	}
	if err := e.writeHeader(w, elem.Tag, v, uint32(len(data))); err != nil {
		return err
	}
	w.Write(data)
	return nil
}

// writeSequence writes defined-length items inside an undefined-length sequence.
func (e *encoder) writeSequence(w *bytes.Buffer, t Tag, items []*Dataset) error {
	if err := e.writeHeader(w, t, vr.SQ, UndefinedLength); err != nil {
		return err
	}
	for _, item := range items {
		var body bytes.Buffer
		if err := e.writeDataSet(&body, item, false); err != nil {
			return fmt.Errorf("failed to encode sequence item: %w", err)
		}
		e.writeItem(w, tag.Item, uint32(body.Len()))
		w.Write(body.Bytes())
	}
	e.writeItem(w, tag.SequenceDelimitationItem, 0)
	return nil
}

// writeFragments writes encapsulated pixel data with a Basic Offset Table.
func (e *encoder) writeFragments(w *bytes.Buffer, t Tag, frags Fragments) error {
	if err := e.writeHeader(w, t, vr.OB, UndefinedLength); err != nil {
		return err
	}
	var offset uint32
	bot := make([]byte, 0, len(frags)*4)
	for _, f := range frags {
		bot = e.order.AppendUint32(bot, offset)
		offset += 8 + uint32(len(f)+len(f)%2)
	}
	e.writeItem(w, tag.Item, uint32(len(bot)))
	w.Write(bot)
	for _, f := range frags {
		e.writeItem(w, tag.Item, uint32(len(f)+len(f)%2))
		w.Write(f)
		if len(f)%2 != 0 {
			w.WriteByte(0)
		}
	}
	e.writeItem(w, tag.SequenceDelimitationItem, 0)
	return nil
}

func (e *encoder) writeItem(w *bytes.Buffer, t Tag, length uint32) {
	var b [8]byte
	e.order.PutUint16(b[0:], t.Group)
	e.order.PutUint16(b[2:], t.Element)
	e.order.PutUint32(b[4:], length)
	w.Write(b[:])
}

// encodeValue converts a Go value to padded value bytes for VR v.
func (e *encoder) encodeValue(value any, v vr.VR) ([]byte, error) {
	var b []byte
	switch val := value.(type) {
	case nil:
		return nil, nil
	case string:
		return padString([]byte(val), v), nil
	case []string:
		return padString([]byte(strings.Join(val, `\`)), v), nil
	case []byte:
		b = val
		if v == vr.OW && e.order == binary.BigEndian {
			b = swap16(val)
		}
	case int:
		return e.encodeInts([]int{val}, v)
	case []int:
		return e.encodeInts(val, v)
	case uint16:
		b = e.order.AppendUint16(b, val)
	case []uint16:
		for _, x := range val {
			b = e.order.AppendUint16(b, x)
		}
	case int16:
		b = e.order.AppendUint16(b, uint16(val))
	case []int16:
		for _, x := range val {
			b = e.order.AppendUint16(b, uint16(x))
		}
	case uint32:
		b = e.order.AppendUint32(b, val)
	case []uint32:
		for _, x := range val {
			b = e.order.AppendUint32(b, x)
		}
	case int32:
		b = e.order.AppendUint32(b, uint32(val))
	case []int32:
		for _, x := range val {
			b = e.order.AppendUint32(b, uint32(x))
		}
	case float32:
		b = e.order.AppendUint32(b, math.Float32bits(val))
	case []float32:
		for _, x := range val {
			b = e.order.AppendUint32(b, math.Float32bits(x))
		}
	case float64:
		return e.encodeFloats([]float64{val}, v)
	case []float64:
		return e.encodeFloats(val, v)
	case []Tag:
		for _, t := range val {
			b = e.order.AppendUint16(b, t.Group)
			b = e.order.AppendUint16(b, t.Element)
		}
	default:
		return nil, fmt.Errorf("unsupported value type %T for VR %s", value, v)
	}
	if len(b)%2 != 0 {
		b = append(b, 0x00)
	}
	return b, nil
}

func (e *encoder) encodeInts(val []int, v vr.VR) ([]byte, error) {
	var b []byte
	switch v {
	case vr.US, vr.SS:
		for _, x := range val {
			b = e.order.AppendUint16(b, uint16(x))
		}
	case vr.UL, vr.SL:
		for _, x := range val {
			b = e.order.AppendUint32(b, uint32(x))
		}
	case vr.IS:
		parts := make([]string, len(val))
		for i, x := range val {
			parts[i] = strconv.Itoa(x)
		}
		return padString([]byte(strings.Join(parts, `\`)), v), nil
	default:
		return nil, fmt.Errorf("int for VR %s not implemented", v)
	}
	return b, nil
}

func (e *encoder) encodeFloats(val []float64, v vr.VR) ([]byte, error) {
	var b []byte
	switch v {
	case vr.DS:
		parts := make([]string, len(val))
		for i, x := range val {
			parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		return padString([]byte(strings.Join(parts, `\`)), v), nil
	case vr.FD:
		for _, x := range val {
			b = e.order.AppendUint64(b, math.Float64bits(x))
		}
	case vr.FL:
		for _, x := range val {
			b = e.order.AppendUint32(b, math.Float32bits(float32(x)))
		}
	default:
		return nil, fmt.Errorf("float64 for VR %s not implemented", v)
	}
	return b, nil
}

// swap16 reverses each 16-bit word; OW byte values are held little-endian.
func swap16(b []byte) []byte {
	out := cloneBytes(b)
	for i := 0; i+1 < len(b); i += 2 {
		out[i], out[i+1] = b[i+1], b[i]
	}
	return out
}

// padString pads to even length: NUL for UI, space otherwise.
func padString(b []byte, v vr.VR) []byte {
	if len(b)%2 == 0 {
		return b
	}
	if v == vr.UI {
		return append(b, 0x00)
	}
	return append(b, ' ')
}

// CountingWriter counts bytes successfully written
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	if err == nil {
		c.Count.Add(int64(n))
	}
	return n, err
}
