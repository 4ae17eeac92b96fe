package ingest

import (
	"bytes"
	"testing"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
	"github.com/jpfielding/dcmview/pkg/dicom/vr"
	"github.com/stretchr/testify/require"
)

func doeJohn(t testing.TB) []byte {
	b, err := dicom.Synthetic{
		PatientName: "DOE^JOHN", StudyDate: "20240115", Modality: "CT",
		Rows: 2, Columns: 2, BitsAllocated: 16, Pixels: []uint16{0, 0, 100, 65535},
	}.Bytes()
	require.NoError(t, err)
	return b
}

// jpeg2000 is a readable file whose truncated codestream the JPEG 2000 decoder rejects.
func jpeg2000(t testing.TB) []byte {
	ds, err := dicom.NewDataset(
		dicom.WithSyntax(transfer.JPEG2000Lossless),
		dicom.WithFileMeta(dicom.CTImageStorageUID, dicom.GenerateUID()),
		dicom.WithElement(tag.PatientName, "ROE^JANE"),
		dicom.WithElement(tag.Modality, "MR"),
		dicom.WithElement(tag.Rows, uint16(2)),
		dicom.WithElement(tag.Columns, uint16(2)),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.SamplesPerPixel, uint16(1)),
		dicom.WithElementVR(tag.PixelData, vr.OB, dicom.Fragments{{0xFF, 0x4F, 0xFF, 0x51}}),
	)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = dicom.Write(&buf, ds)
	require.NoError(t, err)
	return buf.Bytes()
}
