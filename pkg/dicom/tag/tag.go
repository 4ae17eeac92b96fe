// Package tag defines standard DICOM tags and the static dictionary used to
// resolve a tag's VR when a data set is encoded with implicit VR.
package tag

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// Uint32 packs the tag as GGGGEEEE, which orders tags the way they appear in a stream.
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// Less orders tags by group, then element.
func (t Tag) Less(other Tag) bool {
	return t.Uint32() < other.Uint32()
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsPrivateCreator returns true for the (gggg,0010-00FF) reservation elements of a private group.
func (t Tag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.Element >= 0x0010 && t.Element <= 0x00FF
}

// IsGroupLength returns true for (gggg,0000) group length elements.
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

// IsMeta returns true if this tag is in the File Meta Information group
func (t Tag) IsMeta() bool {
	return t.Group == 0x0002
}

// IsDelimiter returns true for the item and sequence delimitation tags in group FFFE.
func (t Tag) IsDelimiter() bool {
	return t.Group == 0xFFFE
}

// File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
	SourceApplicationEntityTitle   = Tag{0x0002, 0x0016}
)

// SOP Common Module
var (
	SpecificCharacterSet = Tag{0x0008, 0x0005}
	ImageType            = Tag{0x0008, 0x0008}
	InstanceCreationDate = Tag{0x0008, 0x0012}
	InstanceCreationTime = Tag{0x0008, 0x0013}
	SOPClassUID          = Tag{0x0008, 0x0016}
	SOPInstanceUID       = Tag{0x0008, 0x0018}
)

// Patient Module (Group 0010)
var (
	PatientName      = Tag{0x0010, 0x0010}
	PatientID        = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}
	PatientSex       = Tag{0x0010, 0x0040}
	PatientAge       = Tag{0x0010, 0x1010}
	PatientWeight    = Tag{0x0010, 0x1030}
	PatientComments  = Tag{0x0010, 0x4000}
)

// General Study Module (Group 0008, 0020)
var (
	StudyDate              = Tag{0x0008, 0x0020}
	SeriesDate             = Tag{0x0008, 0x0021}
	AcquisitionDate        = Tag{0x0008, 0x0022}
	ContentDate            = Tag{0x0008, 0x0023}
	StudyTime              = Tag{0x0008, 0x0030}
	SeriesTime             = Tag{0x0008, 0x0031}
	ContentTime            = Tag{0x0008, 0x0033}
	AccessionNumber        = Tag{0x0008, 0x0050}
	ReferringPhysicianName = Tag{0x0008, 0x0090}
	StudyDescription       = Tag{0x0008, 0x1030}
	StudyInstanceUID       = Tag{0x0020, 0x000D}
	StudyID                = Tag{0x0020, 0x0010}
)

// General Series Module
var (
	Modality          = Tag{0x0008, 0x0060}
	SeriesDescription = Tag{0x0008, 0x103E}
	BodyPartExamined  = Tag{0x0018, 0x0015}
	ProtocolName      = Tag{0x0018, 0x1030}
	SeriesInstanceUID = Tag{0x0020, 0x000E}
	SeriesNumber      = Tag{0x0020, 0x0011}
	InstanceNumber    = Tag{0x0020, 0x0013}
)

// General Equipment Module
var (
	Manufacturer          = Tag{0x0008, 0x0070}
	InstitutionName       = Tag{0x0008, 0x0080}
	StationName           = Tag{0x0008, 0x1010}
	ManufacturerModelName = Tag{0x0008, 0x1090}
	DeviceSerialNumber    = Tag{0x0018, 0x1000}
	SoftwareVersions      = Tag{0x0018, 0x1020}
)

// Acquisition and geometry
var (
	SliceThickness          = Tag{0x0018, 0x0050}
	KVP                     = Tag{0x0018, 0x0060}
	SpacingBetweenSlices    = Tag{0x0018, 0x0088}
	ImagePositionPatient    = Tag{0x0020, 0x0032}
	ImageOrientationPatient = Tag{0x0020, 0x0037}
	FrameOfReferenceUID     = Tag{0x0020, 0x0052}
	SliceLocation           = Tag{0x0020, 0x1041}
	ImageComments           = Tag{0x0020, 0x4000}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel           = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	PlanarConfiguration       = Tag{0x0028, 0x0006}
	NumberOfFrames            = Tag{0x0028, 0x0008}
	Rows                      = Tag{0x0028, 0x0010}
	Columns                   = Tag{0x0028, 0x0011}
	PixelSpacing              = Tag{0x0028, 0x0030}
	BitsAllocated             = Tag{0x0028, 0x0100}
	BitsStored                = Tag{0x0028, 0x0101}
	HighBit                   = Tag{0x0028, 0x0102}
	PixelRepresentation       = Tag{0x0028, 0x0103}
	SmallestImagePixelValue   = Tag{0x0028, 0x0106}
	LargestImagePixelValue    = Tag{0x0028, 0x0107}
	PixelPaddingValue         = Tag{0x0028, 0x0120}
	WindowCenter              = Tag{0x0028, 0x1050}
	WindowWidth               = Tag{0x0028, 0x1051}
	RescaleIntercept          = Tag{0x0028, 0x1052}
	RescaleSlope              = Tag{0x0028, 0x1053}
	RescaleType               = Tag{0x0028, 0x1054}
	LossyImageCompression     = Tag{0x0028, 0x2110}
	ModalityLUTSequence       = Tag{0x0028, 0x3000}
	VOILUTSequence            = Tag{0x0028, 0x3010}
	PixelData                 = Tag{0x7FE0, 0x0010}
	DataSetTrailingPadding    = Tag{0xFFFC, 0xFFFC}
)

// Reference sequences
var (
	ReferencedSOPClassUID    = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID = Tag{0x0008, 0x1155}
	ReferencedSeriesSequence = Tag{0x0008, 0x1115}
	ReferencedImageSequence  = Tag{0x0008, 0x1140}
	SourceImageSequence      = Tag{0x0008, 0x2112}
)

// Sequence delimiters
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)
