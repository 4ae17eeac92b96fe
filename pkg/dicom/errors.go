package dicom

import (
	"errors"
	"fmt"

	"github.com/jpfielding/dcmview/pkg/dicom/transfer"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrNotDicom               = errors.New("not a DICOM file")
	ErrMalformedElement       = errors.New("malformed element")
	ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")
)

// NotDicomError reports a buffer without the 128 byte preamble and "DICM" marker.
type NotDicomError struct {
	Reason string
}

func (e *NotDicomError) Error() string {
	return fmt.Sprintf("not a DICOM file: %s", e.Reason)
}

func (e *NotDicomError) Is(target error) bool { return target == ErrNotDicom }

// MalformedElementError reports structural corruption. Elements decoded before
// Offset remain valid in the dataset returned alongside it.
type MalformedElementError struct {
	Tag    Tag
	Offset int
	Reason string
	Err    error
}

func (e *MalformedElementError) Error() string {
	msg := fmt.Sprintf("malformed element %s at offset %d: %s", e.Tag, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedElementError) Is(target error) bool { return target == ErrMalformedElement }

func (e *MalformedElementError) Unwrap() error { return e.Err }

// UnsupportedPixelFormatError is recoverable: metadata is still usable.
type UnsupportedPixelFormatError struct {
	Reason         string
	TransferSyntax transfer.Syntax
	BitsAllocated  int
}

func (e *UnsupportedPixelFormatError) Error() string {
	return fmt.Sprintf("unsupported pixel format: %s (transfer syntax %s, bits allocated %d)",
		e.Reason, e.TransferSyntax.Name(), e.BitsAllocated)
}

func (e *UnsupportedPixelFormatError) Is(target error) bool {
	return target == ErrUnsupportedPixelFormat
}

func malformed(t Tag, offset int, format string, args ...any) *MalformedElementError {
	return &MalformedElementError{Tag: t, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
