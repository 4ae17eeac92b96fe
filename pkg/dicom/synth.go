package dicom

import (
	"bytes"
	"fmt"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
)

// Synthetic describes a generated grayscale image file. Zero values get
// defaults: 64x64, 16 bits allocated, CT, a diagonal gradient of pixels.
type Synthetic struct {
	PatientName   string
	PatientID     string
	StudyDate     string
	Modality      string
	Description   string
	SeriesNumber  int
	Instance      int
	Rows          int
	Columns       int
	BitsAllocated int
	// Pixels holds Rows*Columns values per frame, row-major.
	Pixels []uint16
	Syntax transfer.Syntax
	Codec  Codec
}

func (s Synthetic) withDefaults() Synthetic {
	if s.Rows == 0 {
		s.Rows = 64
	}
	if s.Columns == 0 {
		s.Columns = 64
	}
	if s.BitsAllocated == 0 {
		s.BitsAllocated = 16
	}
	if s.Modality == "" {
		s.Modality = "CT"
	}
	if s.Syntax == "" {
		s.Syntax = transfer.Default
	}
	if len(s.Pixels) == 0 {
		s.Pixels = gradient(s.Rows, s.Columns, s.BitsAllocated)
	}
	return s
}

func gradient(rows, cols, bits int) []uint16 {
	top := (1 << bits) - 1
	span := max(1, rows+cols-2)
	px := make([]uint16, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px[y*cols+x] = uint16((x + y) * top / span)
		}
	}
	return px
}

// Dataset builds the synthetic dataset with fresh study, series and instance UIDs.
func (s Synthetic) Dataset() (*Dataset, error) {
	s = s.withDefaults()
	sopClass := SecondaryCaptureImageStorageUID
	switch s.Modality {
	case "CT":
		sopClass = CTImageStorageUID
	case "MR":
		sopClass = MRImageStorageUID
	}
	opts := []Option{
		WithSyntax(s.Syntax),
		WithFileMeta(sopClass, GenerateUID()),
		WithElement(tag.StudyInstanceUID, GenerateUID()),
		WithElement(tag.SeriesInstanceUID, GenerateUID()),
		WithElement(tag.Modality, s.Modality),
	}
	for t, v := range map[Tag]string{
		tag.PatientName:      s.PatientName,
		tag.PatientID:        s.PatientID,
		tag.StudyDate:        s.StudyDate,
		tag.StudyDescription: s.Description,
	} {
		if v != "" {
			opts = append(opts, WithElement(t, v))
		}
	}
	if s.SeriesNumber > 0 {
		opts = append(opts, WithElement(tag.SeriesNumber, s.SeriesNumber))
	}
	if s.Instance > 0 {
		opts = append(opts, WithElement(tag.InstanceNumber, s.Instance))
	}
	// the codec decides the syntax when present
	opts = append(opts, WithPixelData(s.Rows, s.Columns, s.BitsAllocated, s.Pixels, s.Codec))
	ds, err := NewDataset(opts...)
	if err != nil {
		return nil, fmt.Errorf("building synthetic dataset: %w", err)
	}
	return ds, nil
}

// Bytes returns the synthetic dataset encoded as a Part 10 file.
func (s Synthetic) Bytes() ([]byte, error) {
	ds, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := Write(&buf, ds); err != nil {
		return nil, fmt.Errorf("writing synthetic dataset: %w", err)
	}
	return buf.Bytes(), nil
}
