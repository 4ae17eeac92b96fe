// Package dicom decodes DICOM Part 10 files held in memory.
//
// It provides:
//   - Element reading for explicit/implicit VR in either byte order
//   - Data set decoding with nested sequences and a depth cap
//   - Patient/study metadata projection
//   - Pixel decoding to a signed integer raster
//
// Basic usage:
//
//	ds, err := dicom.Decode(data)
//	if errors.Is(err, dicom.ErrNotDicom) {
//		return err
//	}
//	// ds holds every element decoded before a MalformedElementError
//	meta := dicom.ExtractMetadata(ds)
//	raster, err := dicom.DecodePixels(ds)
package dicom

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
)

// SOP Class UIDs produced and recognized by this package
const (
	SecondaryCaptureImageStorageUID = "1.2.840.10008.5.1.4.1.1.7"
	CTImageStorageUID               = "1.2.840.10008.5.1.4.1.1.2"
	MRImageStorageUID               = "1.2.840.10008.5.1.4.1.1.4"
)

// ImplementationClassUID identifies files written by this module.
const ImplementationClassUID = "2.25.230927170405195331206178163045470521793"

// GetExtension returns the conventional DICOM file extension
func GetExtension() string {
	return ".dcm"
}

func readAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// GenerateUID returns a random UID under the 2.25 root (UUID derived).
func GenerateUID() string {
	id := uuid.New()
	return "2.25." + new(big.Int).SetBytes(id[:]).String()
}

// GetTransferSyntax returns the transfer syntax from the dataset
func GetTransferSyntax(ds *Dataset) transfer.Syntax {
	if ds == nil {
		return transfer.Default
	}
	if ds.Syntax != "" {
		return ds.Syntax
	}
	if s, ok := ds.GetString(tag.TransferSyntaxUID); ok && s != "" {
		return transfer.FromUID(s)
	}
	return transfer.Default
}

// GetModality returns the modality (0008,0060)
func GetModality(ds *Dataset) string {
	s, _ := ds.GetString(tag.Modality)
	return s
}

// GetRows returns the number of rows in the image
func GetRows(ds *Dataset) int {
	v, _ := ds.GetInt(tag.Rows)
	return v
}

// GetColumns returns the number of columns in the image
func GetColumns(ds *Dataset) int {
	v, _ := ds.GetInt(tag.Columns)
	return v
}

// GetNumberOfFrames returns the number of frames in the image
func GetNumberOfFrames(ds *Dataset) int {
	if v, ok := ds.GetInt(tag.NumberOfFrames); ok && v > 0 {
		return v
	}
	return 1 // Default to 1 if not specified
}

// GetSamplesPerPixel returns samples per pixel, defaulting to 1
func GetSamplesPerPixel(ds *Dataset) int {
	if v, ok := ds.GetInt(tag.SamplesPerPixel); ok && v > 0 {
		return v
	}
	return 1
}

// GetPixelRepresentation returns 0 for unsigned, 1 for signed
func GetPixelRepresentation(ds *Dataset) int {
	v, _ := ds.GetInt(tag.PixelRepresentation)
	return v
}

// GetPhotometricInterpretation returns the photometric interpretation, MONOCHROME2 when absent
func GetPhotometricInterpretation(ds *Dataset) string {
	if s, ok := ds.GetString(tag.PhotometricInterpretation); ok && s != "" {
		return strings.ToUpper(s)
	}
	return "MONOCHROME2"
}

// GetWindowLevel returns the first window center and width. ok is false when
// either is missing or the width is not positive.
func GetWindowLevel(ds *Dataset) (center, width float64, ok bool) {
	center, cok := ds.GetFloat(tag.WindowCenter)
	width, wok := ds.GetFloat(tag.WindowWidth)
	if !cok || !wok || width <= 0 {
		return 0, 0, false
	}
	return center, width, true
}

// GetRescale returns the rescale intercept and slope from the dataset.
func GetRescale(ds *Dataset) (intercept, slope float64) {
	intercept, slope = 0, 1 // Default values
	if v, ok := ds.GetFloat(tag.RescaleIntercept); ok {
		intercept = v
	}
	if v, ok := ds.GetFloat(tag.RescaleSlope); ok && v != 0 {
		slope = v
	}
	return
}
