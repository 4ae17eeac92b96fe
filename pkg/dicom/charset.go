package dicom

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// lookupLabelByTerm maps Specific Character Set defined terms to WHATWG encoding labels.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var lookupLabelByTerm = map[string]string{
	"ISO_IR 101": "iso-ir-101",
	"ISO_IR 109": "iso-ir-109",
	"ISO_IR 110": "iso-ir-110",
	"ISO_IR 144": "iso-ir-144",
	"ISO_IR 127": "iso-ir-127",
	"ISO_IR 126": "iso-ir-126",
	"ISO_IR 138": "iso-ir-138",
	"ISO_IR 148": "iso-ir-148",
	"ISO_IR 13":  "shift-jis",
	"ISO_IR 166": "tis-620",
	"ISO_IR 192": "utf-8",
	"GB18030":    "gb18030",
	"GBK":        "gbk",

	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift-jis",
	"ISO 2022 IR 166": "tis-620",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "iso-ir-149",
}

// textDecoder converts raw text bytes to a Go string. nil means bytes are used as-is.
type textDecoder func([]byte) string

func lookupEncoding(term string) (encoding.Encoding, error) {
	switch term {
	case "", "ISO_IR 6", "ISO 2022 IR 6":
		return nil, nil
	case "ISO_IR 100", "ISO 2022 IR 100":
		return charmap.ISO8859_1, nil
	}
	label, ok := lookupLabelByTerm[term]
	if !ok {
		return nil, fmt.Errorf("specific character set defined term not found: %v", term)
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("missing encoding for label %q: %w", label, err)
	}
	return enc, nil
}

// newTextDecoder builds a decoder from a (possibly multi-valued) Specific Character Set
// value. Code extensions are not switched mid-value; the first usable term wins.
func newTextDecoder(value string) textDecoder {
	for _, term := range strings.Split(value, `\`) {
		term = strings.TrimSpace(term)
		enc, err := lookupEncoding(term)
		if err != nil {
			slog.Debug("ignoring specific character set", slog.String("term", term), slog.Any("error", err))
			continue
		}
		if enc == nil {
			continue
		}
		dec := enc.NewDecoder()
		return func(b []byte) string {
			s, err := dec.Bytes(b)
			if err != nil {
				return string(b)
			}
			return string(s)
		}
	}
	return nil
}
