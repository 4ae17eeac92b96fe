package dicom

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// String returns a one-line representation of the Element
func (e *Element) String() string {
	// Format: (gggg,eeee) VR Name: Value
	tagName := e.Tag.LookupName()
	if tagName != "" {
		tagName = " " + tagName
	}

	var valStr string
	switch v := e.Value.(type) {
	case *PixelDataRef:
		if v.IsEncapsulated {
			valStr = fmt.Sprintf("Encapsulated Pixel Data (%d fragments, %d offsets)", len(v.Fragments), len(v.Offsets))
		} else {
			valStr = fmt.Sprintf("Pixel Data (%d bytes at %d)", v.Range.Length, v.Range.Offset)
		}
	case []uint16:
		if len(v) > 10 {
			valStr = fmt.Sprintf("Array of %d values", len(v))
		} else {
			valStr = fmt.Sprintf("%v", v)
		}
	case []byte:
		if len(v) > 20 {
			valStr = fmt.Sprintf("Binary Data (%d bytes)", len(v))
		} else {
			valStr = fmt.Sprintf("%v", v)
		}
	case nil:
		if e.Items != nil {
			valStr = fmt.Sprintf("Sequence (%d items)", len(e.Items))
		}
	default:
		valStr = fmt.Sprintf("%v", v)
	}

	return fmt.Sprintf("%s %s%s: %s", e.Tag, e.VR, tagName, valStr)
}

// MarshalJSON returns a JSON representation of the Element
func (e *Element) MarshalJSON() ([]byte, error) {
	var value any = e.Value
	if b, ok := e.Value.([]byte); ok {
		// Binary values are summarized, not dumped
		value = fmt.Sprintf("%d bytes", len(b))
	}
	return json.Marshal(&struct {
		Tag   string     `json:"tag"`
		Name  string     `json:"name,omitempty"`
		VR    string     `json:"vr"`
		Value any        `json:"value,omitempty"`
		Items []*Dataset `json:"items,omitempty"`
	}{
		Tag:   e.Tag.String(),
		Name:  e.Tag.LookupName(),
		VR:    string(e.VR),
		Value: value,
		Items: e.Items,
	})
}

// sortedTags returns the dataset's tags in ascending order.
func (ds *Dataset) sortedTags() []Tag {
	keys := make([]Tag, 0, len(ds.Elements))
	for k := range ds.Elements {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Tag) int {
		return cmp.Compare(a.Uint32(), b.Uint32())
	})
	return keys
}

// String returns a string representation of the Dataset, nested items indented
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	ds.writeTo(&b, 0)
	return b.String()
}

func (ds *Dataset) writeTo(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, k := range ds.sortedTags() {
		elem := ds.Elements[k]
		b.WriteString(indent)
		b.WriteString(elem.String())
		b.WriteString("\n")
		for i, item := range elem.Items {
			fmt.Fprintf(b, "%s  > Item %d\n", indent, i+1)
			item.writeTo(b, depth+2)
		}
	}
}

// MarshalJSON returns a sorted array of Elements instead of a Map
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	keys := ds.sortedTags()
	elements := make([]*Element, 0, len(keys))
	for _, k := range keys {
		elements = append(elements, ds.Elements[k])
	}
	return json.Marshal(elements)
}
