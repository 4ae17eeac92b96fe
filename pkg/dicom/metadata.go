package dicom

import (
	"strconv"
	"strings"
	"time"

	"github.com/jpfielding/dcmview/pkg/dicom/tag"
)

// Unknown is the fallback for every metadata field that is absent or unparseable.
const Unknown = "Unknown"

// Metadata is the caller-facing projection of well-known patient and study tags.
// Every field is a string and independently falls back to Unknown.
type Metadata struct {
	PatientName    string `json:"patientName"`
	PatientID      string `json:"patientId"`
	StudyDate      string `json:"studyDate"`
	Modality       string `json:"modality"`
	Description    string `json:"description"`
	SeriesNumber   string `json:"seriesNumber"`
	InstanceNumber string `json:"instanceNumber"`

	InstitutionName   string `json:"institutionName"`
	SeriesDescription string `json:"seriesDescription"`
	BodyPartExamined  string `json:"bodyPartExamined"`
	SOPInstanceUID    string `json:"sopInstanceUid"`
}

// UnknownMetadata returns a record with every field set to Unknown.
func UnknownMetadata() Metadata {
	return Metadata{
		PatientName:       Unknown,
		PatientID:         Unknown,
		StudyDate:         Unknown,
		Modality:          Unknown,
		Description:       Unknown,
		SeriesNumber:      Unknown,
		InstanceNumber:    Unknown,
		InstitutionName:   Unknown,
		SeriesDescription: Unknown,
		BodyPartExamined:  Unknown,
		SOPInstanceUID:    Unknown,
	}
}

// ExtractMetadata projects ds onto a Metadata record. It never fails; a nil or
// partially decoded dataset yields Unknown for each missing field.
func ExtractMetadata(ds *Dataset) Metadata {
	return Metadata{
		PatientName:       textField(ds, tag.PatientName),
		PatientID:         textField(ds, tag.PatientID),
		StudyDate:         dateField(ds, tag.StudyDate),
		Modality:          textField(ds, tag.Modality),
		Description:       textField(ds, tag.StudyDescription),
		SeriesNumber:      intField(ds, tag.SeriesNumber),
		InstanceNumber:    intField(ds, tag.InstanceNumber),
		InstitutionName:   textField(ds, tag.InstitutionName),
		SeriesDescription: textField(ds, tag.SeriesDescription),
		BodyPartExamined:  textField(ds, tag.BodyPartExamined),
		SOPInstanceUID:    textField(ds, tag.SOPInstanceUID),
	}
}

func textField(ds *Dataset, t Tag) string {
	if s, ok := ds.GetString(t); ok && s != "" {
		return s
	}
	return Unknown
}

func intField(ds *Dataset, t Tag) string {
	if i, ok := ds.GetInt(t); ok {
		return strconv.Itoa(i)
	}
	return Unknown
}

// DA values are YYYYMMDD; some legacy writers emit YYYY.MM.DD
var dateLayouts = []string{"20060102", "2006.01.02"}

func dateField(ds *Dataset, t Tag) string {
	s, ok := ds.GetString(t)
	if !ok {
		return Unknown
	}
	// Ranges and multi-valued dates keep the first value
	s, _, _ = strings.Cut(s, `\`)
	s, _, _ = strings.Cut(s, "-")
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	return Unknown
}
