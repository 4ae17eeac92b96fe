package dicom

import (
	"bytes"
	"encoding/binary"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
)

// stream assembles raw element bytes for a transfer syntax, including malformed ones.
type stream struct {
	buf      bytes.Buffer
	order    transfer.ByteOrder
	explicit bool
}

func newStream(syntax transfer.Syntax) *stream {
	return &stream{order: syntax.ByteOrder(), explicit: syntax.IsExplicitVR()}
}

func (s *stream) tag(t Tag) {
	s.buf.Write(s.order.AppendUint16(nil, t.Group))
	s.buf.Write(s.order.AppendUint16(nil, t.Element))
}

// header writes a tag, VR (when explicit) and a length that need not match the value.
func (s *stream) header(t Tag, v vr.VR, length uint32) *stream {
	s.tag(t)
	if !s.explicit {
		s.buf.Write(s.order.AppendUint32(nil, length))
		return s
	}
	s.buf.WriteString(string(v))
	if v.IsLongLength() || !knownVR(v) {
		s.buf.Write([]byte{0, 0})
		s.buf.Write(s.order.AppendUint32(nil, length))
	} else {
		s.buf.Write(s.order.AppendUint16(nil, uint16(length)))
	}
	return s
}

func knownVR(v vr.VR) bool {
	_, ok := vr.Parse([]byte(v))
	return ok
}

func (s *stream) element(t Tag, v vr.VR, value []byte) *stream {
	s.header(t, v, uint32(len(value)))
	s.buf.Write(value)
	return s
}

func (s *stream) str(t Tag, v vr.VR, value string) *stream {
	return s.element(t, v, padString([]byte(value), v))
}

func (s *stream) us(t Tag, values ...uint16) *stream {
	var b []byte
	for _, v := range values {
		b = s.order.AppendUint16(b, v)
	}
	return s.element(t, vr.US, b)
}

func (s *stream) item(length uint32) *stream {
	s.tag(tag.Item)
	s.buf.Write(s.order.AppendUint32(nil, length))
	return s
}

func (s *stream) itemEnd() *stream {
	s.tag(tag.ItemDelimitationItem)
	s.buf.Write(make([]byte, 4))
	return s
}

func (s *stream) seqEnd() *stream {
	s.tag(tag.SequenceDelimitationItem)
	s.buf.Write(make([]byte, 4))
	return s
}

func (s *stream) raw(b []byte) *stream {
	s.buf.Write(b)
	return s
}

func (s *stream) bytes() []byte { return s.buf.Bytes() }

// part10 prefixes body with preamble, DICM and a meta group naming syntax.
// An empty syntax omits the Transfer Syntax UID.
func part10(syntax transfer.Syntax, body []byte) []byte {
	meta := newStream(transfer.ExplicitVRLittleEndian)
	meta.element(tag.FileMetaInformationVersion, vr.OB, []byte{0, 1})
	if syntax != "" {
		meta.str(tag.TransferSyntaxUID, vr.UI, string(syntax))
	}

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	gl := newStream(transfer.ExplicitVRLittleEndian)
	gl.element(tag.FileMetaInformationGroupLength, vr.UL, binary.LittleEndian.AppendUint32(nil, uint32(meta.buf.Len())))
	out.Write(gl.bytes())
	out.Write(meta.bytes())
	out.Write(body)
	return out.Bytes()
}

// doeJohn is the minimal CT file used across packages' tests.
func doeJohn(syntax transfer.Syntax) []byte {
	s := newStream(syntax)
	s.str(tag.StudyDate, vr.DA, "20240115")
	s.str(tag.Modality, vr.CS, "CT")
	s.str(tag.PatientName, vr.PN, "DOE^JOHN")
	s.us(tag.Rows, 2)
	s.us(tag.Columns, 2)
	s.us(tag.BitsAllocated, 16)
	var px []byte
	for _, v := range []uint16{0, 0, 100, 65535} {
		px = s.order.AppendUint16(px, v)
	}
	s.element(tag.PixelData, vr.OW, px)
	return part10(syntax, s.bytes())
}
