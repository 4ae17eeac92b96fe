package tag

import "github.com/jpfielding/dcmview/pkg/dicom/vr"

// Entry is a static dictionary record for a tag.
type Entry struct {
	VR   vr.VR
	Name string
}

var dictionary = map[Tag]Entry{
	FileMetaInformationGroupLength: {vr.UL, "FileMetaInformationGroupLength"},
	FileMetaInformationVersion:     {vr.OB, "FileMetaInformationVersion"},
	MediaStorageSOPClassUID:        {vr.UI, "MediaStorageSOPClassUID"},
	MediaStorageSOPInstanceUID:     {vr.UI, "MediaStorageSOPInstanceUID"},
	TransferSyntaxUID:              {vr.UI, "TransferSyntaxUID"},
	ImplementationClassUID:         {vr.UI, "ImplementationClassUID"},
	ImplementationVersionName:      {vr.SH, "ImplementationVersionName"},
	SourceApplicationEntityTitle:   {vr.AE, "SourceApplicationEntityTitle"},

	SpecificCharacterSet: {vr.CS, "SpecificCharacterSet"},
	ImageType:            {vr.CS, "ImageType"},
	InstanceCreationDate: {vr.DA, "InstanceCreationDate"},
	InstanceCreationTime: {vr.TM, "InstanceCreationTime"},
	SOPClassUID:          {vr.UI, "SOPClassUID"},
	SOPInstanceUID:       {vr.UI, "SOPInstanceUID"},

	PatientName:      {vr.PN, "PatientName"},
	PatientID:        {vr.LO, "PatientID"},
	PatientBirthDate: {vr.DA, "PatientBirthDate"},
	PatientSex:       {vr.CS, "PatientSex"},
	PatientAge:       {vr.AS, "PatientAge"},
	PatientWeight:    {vr.DS, "PatientWeight"},
	PatientComments:  {vr.LT, "PatientComments"},

	StudyDate:              {vr.DA, "StudyDate"},
	SeriesDate:             {vr.DA, "SeriesDate"},
	AcquisitionDate:        {vr.DA, "AcquisitionDate"},
	ContentDate:            {vr.DA, "ContentDate"},
	StudyTime:              {vr.TM, "StudyTime"},
	SeriesTime:             {vr.TM, "SeriesTime"},
	ContentTime:            {vr.TM, "ContentTime"},
	AccessionNumber:        {vr.SH, "AccessionNumber"},
	ReferringPhysicianName: {vr.PN, "ReferringPhysicianName"},
	StudyDescription:       {vr.LO, "StudyDescription"},
	StudyInstanceUID:       {vr.UI, "StudyInstanceUID"},
	StudyID:                {vr.SH, "StudyID"},

	Modality:          {vr.CS, "Modality"},
	SeriesDescription: {vr.LO, "SeriesDescription"},
	BodyPartExamined:  {vr.CS, "BodyPartExamined"},
	ProtocolName:      {vr.LO, "ProtocolName"},
	SeriesInstanceUID: {vr.UI, "SeriesInstanceUID"},
	SeriesNumber:      {vr.IS, "SeriesNumber"},
	InstanceNumber:    {vr.IS, "InstanceNumber"},

	Manufacturer:          {vr.LO, "Manufacturer"},
	InstitutionName:       {vr.LO, "InstitutionName"},
	StationName:           {vr.SH, "StationName"},
	ManufacturerModelName: {vr.LO, "ManufacturerModelName"},
	DeviceSerialNumber:    {vr.LO, "DeviceSerialNumber"},
	SoftwareVersions:      {vr.LO, "SoftwareVersions"},

	SliceThickness:          {vr.DS, "SliceThickness"},
	KVP:                     {vr.DS, "KVP"},
	SpacingBetweenSlices:    {vr.DS, "SpacingBetweenSlices"},
	ImagePositionPatient:    {vr.DS, "ImagePositionPatient"},
	ImageOrientationPatient: {vr.DS, "ImageOrientationPatient"},
	FrameOfReferenceUID:     {vr.UI, "FrameOfReferenceUID"},
	SliceLocation:           {vr.DS, "SliceLocation"},
	ImageComments:           {vr.LT, "ImageComments"},

	SamplesPerPixel:           {vr.US, "SamplesPerPixel"},
	PhotometricInterpretation: {vr.CS, "PhotometricInterpretation"},
	PlanarConfiguration:       {vr.US, "PlanarConfiguration"},
	NumberOfFrames:            {vr.IS, "NumberOfFrames"},
	Rows:                      {vr.US, "Rows"},
	Columns:                   {vr.US, "Columns"},
	PixelSpacing:              {vr.DS, "PixelSpacing"},
	BitsAllocated:             {vr.US, "BitsAllocated"},
	BitsStored:                {vr.US, "BitsStored"},
	HighBit:                   {vr.US, "HighBit"},
	PixelRepresentation:       {vr.US, "PixelRepresentation"},
	SmallestImagePixelValue:   {vr.US, "SmallestImagePixelValue"},
	LargestImagePixelValue:    {vr.US, "LargestImagePixelValue"},
	PixelPaddingValue:         {vr.US, "PixelPaddingValue"},
	WindowCenter:              {vr.DS, "WindowCenter"},
	WindowWidth:               {vr.DS, "WindowWidth"},
	RescaleIntercept:          {vr.DS, "RescaleIntercept"},
	RescaleSlope:              {vr.DS, "RescaleSlope"},
	RescaleType:               {vr.LO, "RescaleType"},
	LossyImageCompression:     {vr.CS, "LossyImageCompression"},
	ModalityLUTSequence:       {vr.SQ, "ModalityLUTSequence"},
	VOILUTSequence:            {vr.SQ, "VOILUTSequence"},
	PixelData:                 {vr.OW, "PixelData"},
	DataSetTrailingPadding:    {vr.OB, "DataSetTrailingPadding"},

	ReferencedSOPClassUID:    {vr.UI, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUID: {vr.UI, "ReferencedSOPInstanceUID"},
	ReferencedSeriesSequence: {vr.SQ, "ReferencedSeriesSequence"},
	ReferencedImageSequence:  {vr.SQ, "ReferencedImageSequence"},
	SourceImageSequence:      {vr.SQ, "SourceImageSequence"},

	Item:                     {vr.UN, "Item"},
	ItemDelimitationItem:     {vr.UN, "ItemDelimitationItem"},
	SequenceDelimitationItem: {vr.UN, "SequenceDelimitationItem"},
}

// Find returns the dictionary entry for a tag. Group length and private creator
// elements, and the repeating overlay group 60xx, are resolved by rule.
func Find(t Tag) (Entry, bool) {
	if e, ok := dictionary[t]; ok {
		return e, true
	}
	switch {
	case t.IsGroupLength():
		return Entry{vr.UL, "GroupLength"}, true
	case t.IsPrivateCreator():
		return Entry{vr.LO, "PrivateCreator"}, true
	case t.Group&0xFF00 == 0x6000 && t.Group%2 == 0:
		return findOverlay(t)
	}
	return Entry{}, false
}

func findOverlay(t Tag) (Entry, bool) {
	switch t.Element {
	case 0x0010:
		return Entry{vr.US, "OverlayRows"}, true
	case 0x0011:
		return Entry{vr.US, "OverlayColumns"}, true
	case 0x0040:
		return Entry{vr.CS, "OverlayType"}, true
	case 0x0050:
		return Entry{vr.SS, "OverlayOrigin"}, true
	case 0x0100:
		return Entry{vr.US, "OverlayBitsAllocated"}, true
	case 0x0102:
		return Entry{vr.US, "OverlayBitPosition"}, true
	case 0x3000:
		return Entry{vr.OW, "OverlayData"}, true
	}
	return Entry{}, false
}

// LookupVR returns the VR of a tag for implicit VR decoding, or UN when the tag is unknown.
func (t Tag) LookupVR() vr.VR {
	if e, ok := Find(t); ok {
		return e.VR
	}
	return vr.UN
}

// LookupName returns a human-readable name for known tags
func (t Tag) LookupName() string {
	if e, ok := Find(t); ok {
		return e.Name
	}
	return ""
}
