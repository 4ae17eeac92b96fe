package dicom

import (
	"strconv"
	"strings"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
)

// UndefinedLength marks sequences, items and encapsulated pixel data terminated by delimiters.
const UndefinedLength uint32 = 0xFFFFFFFF

// Tag alias to avoid duplication
type Tag = tag.Tag

// Dataset is the element table for one level of a decoded file. Sequence items
// are nested Datasets. A Dataset is not modified after Decode returns it.
type Dataset struct {
	Elements map[Tag]*Element
	// Order holds tags in the order they appeared in the stream.
	Order []Tag
	// Syntax is the transfer syntax the data set was decoded with.
	Syntax transfer.Syntax
	// PixelData is the top-level pixel data reference, nil when absent.
	PixelData *PixelDataRef

	buf []byte
}

func newDataset(syntax transfer.Syntax, buf []byte) *Dataset {
	return &Dataset{
		Elements: make(map[Tag]*Element),
		Syntax:   syntax,
		buf:      buf,
	}
}

// add stores elem unless its tag is already present; it reports whether elem was stored.
func (ds *Dataset) add(elem *Element) bool {
	if _, ok := ds.Elements[elem.Tag]; ok {
		return false
	}
	ds.Elements[elem.Tag] = elem
	ds.Order = append(ds.Order, elem.Tag)
	return true
}

// Element represents a single DICOM element
type Element struct {
	Tag    Tag
	VR     vr.VR
	Length uint32 // declared value length, UndefinedLength for delimited values
	Offset int    // offset of the value field in the decoded buffer
	Value  any    // parsed value; *PixelDataRef for pixel data
	Items  []*Dataset
}

// ByteRange is a contiguous region of the decoded buffer.
type ByteRange struct {
	Offset int
	Length int
}

// End returns the offset one past the last byte of the range.
func (r ByteRange) End() int { return r.Offset + r.Length }

// PixelDataRef records where pixel data lives without copying it.
type PixelDataRef struct {
	VR             vr.VR
	Range          ByteRange // native value, or the whole encapsulated value
	IsEncapsulated bool
	Offsets        []uint32    // Basic Offset Table for encapsulated data
	Fragments      []ByteRange // encapsulated fragments in stream order
}

// FindElement returns an element by tag
func (ds *Dataset) FindElement(t Tag) (*Element, bool) {
	if ds == nil {
		return nil, false
	}
	elem, ok := ds.Elements[t]
	return elem, ok
}

// Len returns the number of elements at this level.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.Elements)
}

// Bytes returns the region r of the buffer the dataset was decoded from.
func (ds *Dataset) Bytes(r ByteRange) ([]byte, bool) {
	if r.Offset < 0 || r.Length < 0 || r.End() > len(ds.buf) {
		return nil, false
	}
	return ds.buf[r.Offset:r.End():r.End()], true
}

// GetString returns a trimmed string value for tag t.
func (ds *Dataset) GetString(t Tag) (string, bool) {
	if elem, ok := ds.FindElement(t); ok {
		return elem.GetString()
	}
	return "", false
}

// GetInt returns an integer value for tag t.
func (ds *Dataset) GetInt(t Tag) (int, bool) {
	if elem, ok := ds.FindElement(t); ok {
		return elem.GetInt()
	}
	return 0, false
}

// GetFloat returns the first floating point value for tag t.
func (ds *Dataset) GetFloat(t Tag) (float64, bool) {
	if elem, ok := ds.FindElement(t); ok {
		if fs, ok := elem.GetFloats(); ok && len(fs) > 0 {
			return fs[0], true
		}
	}
	return 0, false
}

// GetString returns a string value from an element
func (elem *Element) GetString() (string, bool) {
	if s, ok := elem.Value.(string); ok {
		return s, true
	}
	return "", false
}

// GetStrings splits a multi-valued string on the DICOM backslash delimiter.
func (elem *Element) GetStrings() ([]string, bool) {
	s, ok := elem.GetString()
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, `\`)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// GetInt returns the first integer value from an element
func (elem *Element) GetInt() (int, bool) {
	switch v := elem.Value.(type) {
	case uint16:
		return int(v), true
	case int16:
		return int(v), true
	case uint32:
		return int(v), true
	case int32:
		return int(v), true
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case string:
		first, _, _ := strings.Cut(v, `\`)
		if i, err := strconv.Atoi(strings.TrimSpace(first)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// GetInts returns a slice of ints from an element
func (elem *Element) GetInts() ([]int, bool) {
	switch v := elem.Value.(type) {
	case []uint16:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []int16:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []uint32:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []int32:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	}
	if i, ok := elem.GetInt(); ok {
		return []int{i}, true
	}
	return nil, false
}

// GetFloats returns a slice of float64s from an element. Decimal strings are parsed.
func (elem *Element) GetFloats() ([]float64, bool) {
	switch v := elem.Value.(type) {
	case []float32:
		res := make([]float64, len(v))
		for i, val := range v {
			res[i] = float64(val)
		}
		return res, true
	case []float64:
		return v, true
	case float32:
		return []float64{float64(v)}, true
	case float64:
		return []float64{v}, true
	case string:
		parts, _ := elem.GetStrings()
		res := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, false
			}
			res = append(res, f)
		}
		return res, len(res) > 0
	}
	return nil, false
}

// GetBytes returns a binary value.
func (elem *Element) GetBytes() ([]byte, bool) {
	b, ok := elem.Value.([]byte)
	return b, ok
}

// GetPixelData returns the pixel data reference from an element
func (elem *Element) GetPixelData() (*PixelDataRef, bool) {
	pd, ok := elem.Value.(*PixelDataRef)
	return pd, ok
}
