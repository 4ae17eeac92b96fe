package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze cobra command
func NewAnalyzeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze DICOM file structure",
		Long:  "Parses and displays detailed information about a DICOM file including metadata, pixel data layout and frame statistics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			dumpFrame, _ := cmd.Flags().GetInt("dump-frame")
			out, _ := cmd.Flags().GetString("out")

			if filePath == "" && len(args) > 0 {
				filePath = args[0]
			}

			if filePath == "" {
				return fmt.Errorf("file path is required. Use --file flag or provide as argument")
			}

			return runAnalyze(cmd.OutOrStdout(), filePath, dumpFrame, out)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path to analyze")
	pf.Int("dump-frame", -1, "Index of frame whose raw pixel bytes are written to disk")
	pf.String("out", "", "Output path for dumped frame")

	return cmd
}

// runAnalyze reports the structure of one file
func runAnalyze(w io.Writer, filePath string, dumpFrame int, outPath string) error {
	ds, err := dicom.ReadFile(filePath, dicom.Options{})
	switch {
	case ds == nil:
		return fmt.Errorf("parse error: %w", err)
	case errors.Is(err, dicom.ErrMalformedElement):
		fmt.Fprintf(w, "Partial decode: %v\n", err)
	case err != nil:
		return fmt.Errorf("parse error: %w", err)
	}

	fmt.Fprintf(w, "Total elements: %d\n\n", ds.Len())

	fmt.Fprintln(w, "=== Key Metadata ===")
	md := dicom.ExtractMetadata(ds)
	fmt.Fprintf(w, "Modality: %s\n", md.Modality)
	fmt.Fprintf(w, "StudyDate: %s\n", md.StudyDate)
	fmt.Fprintf(w, "Series/Instance: %s/%s\n", md.SeriesNumber, md.InstanceNumber)
	fmt.Fprintf(w, "Rows: %d\n", dicom.GetRows(ds))
	fmt.Fprintf(w, "Columns: %d\n", dicom.GetColumns(ds))
	fmt.Fprintf(w, "SamplesPerPixel: %d\n", dicom.GetSamplesPerPixel(ds))
	fmt.Fprintf(w, "Photometric: %s\n", dicom.GetPhotometricInterpretation(ds))
	fmt.Fprintf(w, "PixelRepresentation: %d (0=unsigned, 1=signed)\n", dicom.GetPixelRepresentation(ds))
	fmt.Fprintf(w, "NumberOfFrames: %d\n", dicom.GetNumberOfFrames(ds))
	syntax := dicom.GetTransferSyntax(ds)
	fmt.Fprintf(w, "TransferSyntax: %s (%s)\n", syntax, syntax.Name())
	fmt.Fprintf(w, "Decodable: %v\n", syntax.IsDecodable())
	if c, width, ok := dicom.GetWindowLevel(ds); ok {
		fmt.Fprintf(w, "Window: center=%g width=%g\n", c, width)
	}
	fmt.Fprintln(w)

	pd := ds.PixelData
	if pd == nil {
		fmt.Fprintln(w, "No pixel data")
		return nil
	}
	fmt.Fprintln(w, "=== Pixel Data ===")
	fmt.Fprintf(w, "VR: %s\n", pd.VR)
	fmt.Fprintf(w, "IsEncapsulated: %v\n", pd.IsEncapsulated)
	fmt.Fprintf(w, "Value: %d bytes at offset %d\n", pd.Range.Length, pd.Range.Offset)
	if pd.IsEncapsulated {
		fmt.Fprintf(w, "Fragments: %d\n", len(pd.Fragments))
		if len(pd.Offsets) > 0 {
			fmt.Fprintf(w, "BOT Offsets: %v\n", pd.Offsets)
		}
	}

	frames := dicom.GetNumberOfFrames(ds)
	if dumpFrame >= 0 {
		if dumpFrame >= frames {
			return fmt.Errorf("frame index %d out of bounds (0-%d)", dumpFrame, frames-1)
		}
		data, err := frameBytes(ds, dumpFrame)
		if err != nil {
			return err
		}
		if outPath == "" {
			outPath = fmt.Sprintf("frame_%d.bin", dumpFrame)
		}
		fmt.Fprintf(w, "Dumping frame %d (%d bytes) to %s\n", dumpFrame, len(data), outPath)
		return os.WriteFile(outPath, data, 0644)
	}

	// Analyze first few frames
	for i := 0; i < min(frames, 3); i++ {
		fmt.Fprintf(w, "\n--- Frame %d ---\n", i)
		r, err := dicom.DecodeFrame(ds, i)
		if err != nil {
			fmt.Fprintf(w, "Decode error: %v\n", err)
			continue
		}
		minVal, maxVal := r.MinMax()
		fmt.Fprintf(w, "Decoded samples: %d\n", len(r.Data))
		fmt.Fprintf(w, "Pixel range: min=%d, max=%d\n", minVal, maxVal)
	}
	return nil
}

// frameBytes returns the raw bytes of a frame: the native slice, or the
// fragments that make it up when encapsulated
func frameBytes(ds *dicom.Dataset, index int) ([]byte, error) {
	pd := ds.PixelData
	frames := dicom.GetNumberOfFrames(ds)
	if index < 0 || index >= frames {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", index, frames)
	}
	if !pd.IsEncapsulated {
		raw, ok := ds.Bytes(pd.Range)
		if !ok {
			return nil, fmt.Errorf("pixel data out of range")
		}
		// compare frame counts, not byte offsets: index*size can overflow
		size := len(raw) / frames
		if size == 0 || index >= len(raw)/size {
			return nil, fmt.Errorf("pixel data holds %d bytes, too short for %d frames", len(raw), frames)
		}
		return raw[index*size : (index+1)*size], nil
	}
	frags := pd.Fragments
	if len(frags) == frames {
		frags = frags[index : index+1]
	}
	var data []byte
	for _, f := range frags {
		b, ok := ds.Bytes(f)
		if !ok {
			return nil, fmt.Errorf("fragment out of range")
		}
		data = append(data, b...)
	}
	return data, nil
}
