package dicom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadElement(t *testing.T) {
	tests := []struct {
		name     string
		syntax   transfer.Syntax
		build    func(s *stream)
		tag      Tag
		vr       vr.VR
		value    any
		consumed int
	}{
		{
			name:     "ExplicitShortLength",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.str(tag.PatientName, vr.PN, "DOE^JOHN") },
			tag:      tag.PatientName,
			vr:       vr.PN,
			value:    "DOE^JOHN",
			consumed: 8 + 8,
		},
		{
			name:     "ExplicitLongLength",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.element(tag.New(0x0009, 0x1001), vr.OB, []byte{1, 2, 3, 4}) },
			tag:      tag.New(0x0009, 0x1001),
			vr:       vr.OB,
			value:    []byte{1, 2, 3, 4},
			consumed: 12 + 4,
		},
		{
			name:     "ImplicitUsesDictionary",
			syntax:   transfer.ImplicitVRLittleEndian,
			build:    func(s *stream) { s.us(tag.Rows, 512) },
			tag:      tag.Rows,
			vr:       vr.US,
			value:    uint16(512),
			consumed: 8 + 2,
		},
		{
			name:     "BigEndianNumeric",
			syntax:   transfer.ExplicitVRBigEndian,
			build:    func(s *stream) { s.us(tag.Columns, 0x0102) },
			tag:      tag.Columns,
			vr:       vr.US,
			value:    uint16(0x0102),
			consumed: 8 + 2,
		},
		{
			name:     "TrimsSpacePadding",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.element(tag.Modality, vr.CS, []byte("MR  ")) },
			tag:      tag.Modality,
			vr:       vr.CS,
			value:    "MR",
			consumed: 8 + 4,
		},
		{
			name:     "TrimsNulPadding",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.str(tag.SOPInstanceUID, vr.UI, "1.2.3") },
			tag:      tag.SOPInstanceUID,
			vr:       vr.UI,
			value:    "1.2.3",
			consumed: 8 + 6,
		},
		{
			name:     "MultiValuedUS",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.us(tag.New(0x0028, 0x0009), 1, 2, 3) },
			tag:      tag.New(0x0028, 0x0009),
			vr:       vr.US,
			value:    []uint16{1, 2, 3},
			consumed: 8 + 6,
		},
		{
			name:     "UnknownVRFallsBackToUN",
			syntax:   transfer.ExplicitVRLittleEndian,
			build:    func(s *stream) { s.element(tag.New(0x0009, 0x1010), vr.VR("ZZ"), []byte{9, 9}) },
			tag:      tag.New(0x0009, 0x1010),
			vr:       vr.UN,
			value:    []byte{9, 9},
			consumed: 12 + 2,
		},
		{
			name:     "ImplicitUnknownTagIsBinary",
			syntax:   transfer.ImplicitVRLittleEndian,
			build:    func(s *stream) { s.element(tag.New(0x0019, 0x1001), vr.UN, []byte{7, 0}) },
			tag:      tag.New(0x0019, 0x1001),
			vr:       vr.UN,
			value:    []byte{7, 0},
			consumed: 8 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStream(tt.syntax)
			tt.build(s)
			// trailing bytes must not be consumed
			s.raw([]byte{0xAA, 0xBB})

			elem, n, err := ReadElement(s.bytes(), tt.syntax)
			require.NoError(t, err)
			assert.Equal(t, tt.tag, elem.Tag)
			assert.Equal(t, tt.vr, elem.VR)
			assert.Equal(t, tt.value, elem.Value)
			assert.Equal(t, tt.consumed, n)
		})
	}
}

func TestReadElement_LengthExceedsStream(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.header(tag.PatientName, vr.PN, 20).raw([]byte("DOE^"))

	elem, _, err := ReadElement(s.bytes(), transfer.ExplicitVRLittleEndian)
	require.Error(t, err)
	assert.Nil(t, elem)
	assert.True(t, errors.Is(err, ErrMalformedElement))

	var me *MalformedElementError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, tag.PatientName, me.Tag)
	assert.Equal(t, 0, me.Offset)
}

func TestReadElement_TruncatedHeader(t *testing.T) {
	_, _, err := ReadElement([]byte{0x10, 0x00, 0x10}, transfer.ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrMalformedElement)
}

func TestDecode_NotDicom(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Short", make([]byte, 100)},
		{"NoMagic", make([]byte, 256)},
		{"MagicAtStart", append([]byte("DICM"), make([]byte, 200)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Decode(tt.data)
			assert.Nil(t, ds)
			assert.ErrorIs(t, err, ErrNotDicom)
			var nd *NotDicomError
			assert.True(t, errors.As(err, &nd))
		})
	}
}

func TestDecode_TransferSyntaxes(t *testing.T) {
	for _, syntax := range []transfer.Syntax{
		transfer.ExplicitVRLittleEndian,
		transfer.ImplicitVRLittleEndian,
		transfer.ExplicitVRBigEndian,
	} {
		t.Run(syntax.Name(), func(t *testing.T) {
			ds, err := Decode(doeJohn(syntax))
			require.NoError(t, err)
			assert.Equal(t, syntax, ds.Syntax)

			name, ok := ds.GetString(tag.PatientName)
			require.True(t, ok)
			assert.Equal(t, "DOE^JOHN", name)
			rows, ok := ds.GetInt(tag.Rows)
			require.True(t, ok)
			assert.Equal(t, 2, rows)

			require.NotNil(t, ds.PixelData)
			assert.False(t, ds.PixelData.IsEncapsulated)
			assert.Equal(t, 8, ds.PixelData.Range.Length)
			raw, ok := ds.Bytes(ds.PixelData.Range)
			require.True(t, ok)
			assert.Equal(t, uint16(65535), syntax.ByteOrder().Uint16(raw[6:]))
		})
	}
}

func TestDecode_MetaGroupAlwaysExplicitLittleEndian(t *testing.T) {
	ds, err := Decode(doeJohn(transfer.ImplicitVRLittleEndian))
	require.NoError(t, err)
	elem, ok := ds.FindElement(tag.TransferSyntaxUID)
	require.True(t, ok)
	assert.Equal(t, vr.UI, elem.VR)
	assert.Equal(t, string(transfer.ImplicitVRLittleEndian), elem.Value)
}

func TestDecode_MissingTransferSyntax(t *testing.T) {
	t.Run("DefaultsToExplicit", func(t *testing.T) {
		body := newStream(transfer.ExplicitVRLittleEndian).str(tag.Modality, vr.CS, "CT").bytes()
		ds, err := Decode(part10("", body))
		require.NoError(t, err)
		assert.Equal(t, transfer.ExplicitVRLittleEndian, ds.Syntax)
		assert.Equal(t, "CT", GetModality(ds))
	})
	t.Run("SniffsImplicit", func(t *testing.T) {
		body := newStream(transfer.ImplicitVRLittleEndian).
			str(tag.PatientName, vr.PN, "DOE^JANE").
			us(tag.Rows, 4).
			bytes()
		ds, err := Decode(part10("", body))
		require.NoError(t, err)
		assert.Equal(t, transfer.ImplicitVRLittleEndian, ds.Syntax)
		name, _ := ds.GetString(tag.PatientName)
		assert.Equal(t, "DOE^JANE", name)
		assert.Equal(t, 4, GetRows(ds))
	})
}

func TestDecode_Deflated(t *testing.T) {
	body := newStream(transfer.ExplicitVRLittleEndian).
		str(tag.PatientName, vr.PN, "DEFLATE^ME").
		us(tag.Rows, 1).
		us(tag.Columns, 2).
		element(tag.PixelData, vr.OW, []byte{1, 0, 2, 0}).
		bytes()

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	ds, err := Decode(part10(transfer.DeflatedExplicitVR, compressed.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, transfer.DeflatedExplicitVR, ds.Syntax)
	name, _ := ds.GetString(tag.PatientName)
	assert.Equal(t, "DEFLATE^ME", name)
	raw, ok := ds.Bytes(ds.PixelData.Range)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 0, 2, 0}, raw)
}

func TestDecode_StopsAfterPixelData(t *testing.T) {
	body := newStream(transfer.ExplicitVRLittleEndian).
		us(tag.Rows, 1).
		element(tag.PixelData, vr.OW, []byte{0, 0}).
		element(tag.DataSetTrailingPadding, vr.OB, []byte{0, 0, 0, 0}).
		bytes()

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, body))
	require.NoError(t, err)
	_, ok := ds.FindElement(tag.DataSetTrailingPadding)
	assert.False(t, ok)
	assert.Equal(t, tag.PixelData, ds.Order[len(ds.Order)-1])
}

func TestDecode_Sequences(t *testing.T) {
	for _, syntax := range []transfer.Syntax{transfer.ExplicitVRLittleEndian, transfer.ImplicitVRLittleEndian} {
		t.Run(syntax.Name(), func(t *testing.T) {
			// defined length item inside an undefined length sequence
			inner := newStream(syntax).str(tag.ReferencedSOPInstanceUID, vr.UI, "1.2.3.4").bytes()

			s := newStream(syntax)
			s.header(tag.ReferencedImageSequence, vr.SQ, UndefinedLength)
			s.item(uint32(len(inner))).raw(inner)
			// undefined length item
			s.item(UndefinedLength).str(tag.ReferencedSOPInstanceUID, vr.UI, "5.6").itemEnd()
			s.seqEnd()
			// defined length sequence
			defined := newStream(syntax).item(uint32(len(inner))).raw(inner).bytes()
			s.header(tag.SourceImageSequence, vr.SQ, uint32(len(defined))).raw(defined)
			s.str(tag.Modality, vr.CS, "OT")

			ds, err := Decode(part10(syntax, s.bytes()))
			require.NoError(t, err)

			seq, ok := ds.FindElement(tag.ReferencedImageSequence)
			require.True(t, ok)
			assert.Equal(t, vr.SQ, seq.VR)
			require.Len(t, seq.Items, 2)
			uid, _ := seq.Items[0].GetString(tag.ReferencedSOPInstanceUID)
			assert.Equal(t, "1.2.3.4", uid)
			uid, _ = seq.Items[1].GetString(tag.ReferencedSOPInstanceUID)
			assert.Equal(t, "5.6", uid)

			src, ok := ds.FindElement(tag.SourceImageSequence)
			require.True(t, ok)
			require.Len(t, src.Items, 1)

			assert.Equal(t, "OT", GetModality(ds))
		})
	}
}

func TestDecode_UndefinedLengthUNIsSequence(t *testing.T) {
	inner := newStream(transfer.ImplicitVRLittleEndian).str(tag.ReferencedSOPInstanceUID, vr.UI, "9.9").bytes()
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.header(tag.New(0x0009, 0x1020), vr.UN, UndefinedLength)
	implicit := newStream(transfer.ImplicitVRLittleEndian)
	implicit.item(uint32(len(inner))).raw(inner).seqEnd()
	s.raw(implicit.bytes())
	s.str(tag.Modality, vr.CS, "MR")

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	require.NoError(t, err)
	elem, ok := ds.FindElement(tag.New(0x0009, 0x1020))
	require.True(t, ok)
	assert.Equal(t, vr.SQ, elem.VR)
	require.Len(t, elem.Items, 1)
	uid, _ := elem.Items[0].GetString(tag.ReferencedSOPInstanceUID)
	assert.Equal(t, "9.9", uid)
	assert.Equal(t, "MR", GetModality(ds))
}

// nested builds depth sequences, each holding one undefined length item.
func nested(depth int) []byte {
	s := newStream(transfer.ExplicitVRLittleEndian)
	for i := 0; i < depth; i++ {
		s.header(tag.ReferencedSeriesSequence, vr.SQ, UndefinedLength).item(UndefinedLength)
	}
	s.str(tag.SeriesInstanceUID, vr.UI, "1.2")
	for i := 0; i < depth; i++ {
		s.itemEnd().seqEnd()
	}
	s.str(tag.Modality, vr.CS, "CT")
	return part10(transfer.ExplicitVRLittleEndian, s.bytes())
}

func TestDecode_DepthCap(t *testing.T) {
	t.Run("AtLimit", func(t *testing.T) {
		ds, err := Decode(nested(DefaultMaxDepth))
		require.NoError(t, err)
		assert.Equal(t, "CT", GetModality(ds))

		level := ds
		for i := 0; i < DefaultMaxDepth; i++ {
			elem, ok := level.FindElement(tag.ReferencedSeriesSequence)
			require.True(t, ok, "level %d", i)
			require.Len(t, elem.Items, 1)
			level = elem.Items[0]
		}
		uid, _ := level.GetString(tag.SeriesInstanceUID)
		assert.Equal(t, "1.2", uid)
	})
	t.Run("BeyondLimit", func(t *testing.T) {
		ds, err := Decode(nested(DefaultMaxDepth + 1))
		require.Error(t, err)
		var me *MalformedElementError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, tag.ReferencedSeriesSequence, me.Tag)
		assert.Contains(t, me.Reason, "depth")
		// meta group survives
		require.NotNil(t, ds)
		_, ok := ds.FindElement(tag.TransferSyntaxUID)
		assert.True(t, ok)
	})
	t.Run("Configurable", func(t *testing.T) {
		_, err := DecodeWithOptions(nested(4), Options{MaxDepth: 3})
		assert.ErrorIs(t, err, ErrMalformedElement)
		_, err = DecodeWithOptions(nested(DefaultMaxDepth+1), Options{MaxDepth: 64})
		assert.NoError(t, err)
	})
}

func TestDecode_MalformedReturnsPartial(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.str(tag.PatientName, vr.PN, "DOE^JOHN")
	s.str(tag.StudyDate, vr.DA, "20240115")
	s.header(tag.StudyDescription, vr.LO, 200).raw([]byte("short"))

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	require.Error(t, err)
	var me *MalformedElementError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, tag.StudyDescription, me.Tag)

	require.NotNil(t, ds)
	name, ok := ds.GetString(tag.PatientName)
	assert.True(t, ok)
	assert.Equal(t, "DOE^JOHN", name)
	_, ok = ds.FindElement(tag.StudyDescription)
	assert.False(t, ok)
}

func TestDecode_TrailingPadding(t *testing.T) {
	for n := 1; n <= 3; n++ {
		s := newStream(transfer.ExplicitVRLittleEndian)
		s.str(tag.PatientName, vr.PN, "DOE^JOHN").raw(make([]byte, n))

		ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
		require.NoError(t, err, "%d pad bytes", n)
		name, ok := ds.GetString(tag.PatientName)
		assert.True(t, ok)
		assert.Equal(t, "DOE^JOHN", name)
		_, ok = ds.FindElement(Tag{})
		assert.False(t, ok)
	}

	// enough bytes for a tag is an element, and a truncated one
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.str(tag.PatientName, vr.PN, "DOE^JOHN").raw(make([]byte, 5))
	_, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	assert.ErrorIs(t, err, ErrMalformedElement)
}

func TestDecode_MissingSequenceDelimiter(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.str(tag.Modality, vr.CS, "CT")
	s.header(tag.ReferencedImageSequence, vr.SQ, UndefinedLength)
	s.item(UndefinedLength).str(tag.ReferencedSOPInstanceUID, vr.UI, "1.2")

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	assert.ErrorIs(t, err, ErrMalformedElement)
	assert.Equal(t, "CT", GetModality(ds))
}

func TestDecode_DuplicateTagKeepsFirst(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.str(tag.Modality, vr.CS, "CT")
	s.str(tag.Modality, vr.CS, "MR")

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	require.NoError(t, err)
	assert.Equal(t, "CT", GetModality(ds))
	assert.Equal(t, 1, countTag(ds.Order, tag.Modality))
}

func countTag(order []Tag, t Tag) int {
	n := 0
	for _, o := range order {
		if o == t {
			n++
		}
	}
	return n
}

func TestDecode_EncapsulatedPixelData(t *testing.T) {
	frag1 := []byte{0xFF, 0xD8, 0x01, 0x02}
	frag2 := []byte{0xFF, 0xD8, 0x03, 0x04, 0x05, 0x06}

	s := newStream(transfer.ExplicitVRLittleEndian)
	s.us(tag.Rows, 1)
	s.header(tag.PixelData, vr.OB, UndefinedLength)
	bot := binary.LittleEndian.AppendUint32(nil, 0)
	bot = binary.LittleEndian.AppendUint32(bot, uint32(8+len(frag1)))
	s.item(uint32(len(bot))).raw(bot)
	s.item(uint32(len(frag1))).raw(frag1)
	s.item(uint32(len(frag2))).raw(frag2)
	s.seqEnd()

	ds, err := Decode(part10(transfer.RLELossless, s.bytes()))
	require.NoError(t, err)
	ref := ds.PixelData
	require.NotNil(t, ref)
	assert.True(t, ref.IsEncapsulated)
	assert.Equal(t, []uint32{0, 12}, ref.Offsets)
	require.Len(t, ref.Fragments, 2)

	b, ok := ds.Bytes(ref.Fragments[0])
	require.True(t, ok)
	assert.Equal(t, frag1, b)
	b, ok = ds.Bytes(ref.Fragments[1])
	require.True(t, ok)
	assert.Equal(t, frag2, b)
}

func TestDecode_EncapsulatedMissingDelimiter(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.header(tag.PixelData, vr.OB, UndefinedLength)
	s.item(0)
	s.item(2).raw([]byte{1, 2})

	_, err := Decode(part10(transfer.RLELossless, s.bytes()))
	assert.ErrorIs(t, err, ErrMalformedElement)
}

func TestDecode_SpecificCharacterSet(t *testing.T) {
	s := newStream(transfer.ExplicitVRLittleEndian)
	s.str(tag.SpecificCharacterSet, vr.CS, "ISO_IR 100")
	s.element(tag.PatientName, vr.PN, []byte("M\xfcller^Hans"))
	// item switches to UTF-8, restored afterwards
	inner := newStream(transfer.ExplicitVRLittleEndian).
		str(tag.SpecificCharacterSet, vr.CS, "ISO_IR 192").
		element(tag.StudyDescription, vr.LO, []byte("K\xc3\xb6pf")).
		bytes()
	s.header(tag.ReferencedImageSequence, vr.SQ, UndefinedLength).item(uint32(len(inner))).raw(inner).seqEnd()
	s.element(tag.InstitutionName, vr.LO, []byte("G\xe9n\xe9ral"))

	ds, err := Decode(part10(transfer.ExplicitVRLittleEndian, s.bytes()))
	require.NoError(t, err)
	name, _ := ds.GetString(tag.PatientName)
	assert.Equal(t, "Müller^Hans", name)

	seq, _ := ds.FindElement(tag.ReferencedImageSequence)
	require.Len(t, seq.Items, 1)
	desc, _ := seq.Items[0].GetString(tag.StudyDescription)
	assert.Equal(t, "Köpf", desc)

	inst, _ := ds.GetString(tag.InstitutionName)
	assert.Equal(t, "Général", inst)
}

func TestDecode_Deterministic(t *testing.T) {
	data := doeJohn(transfer.ExplicitVRLittleEndian)
	first, err := Decode(data)
	require.NoError(t, err)
	second, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first.String(), second.String())
}
