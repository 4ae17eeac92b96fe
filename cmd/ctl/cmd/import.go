package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/ingest"
	"github.com/jpfielding/dcmview/pkg/render"
	"github.com/spf13/cobra"
)

// importRecord is one JSON line of import output
type importRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Path     string         `json:"path,omitempty"`
	Checksum string         `json:"checksum,omitempty"`
	Status   ingest.Status  `json:"status"`
	Frames   int            `json:"frames,omitempty"`
	Metadata dicom.Metadata `json:"metadata"`
	Preview  string         `json:"preview,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewImportCmd bulk imports a directory of DICOM files
func NewImportCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Bulk import a directory of DICOM files",
		Long:  "Walks a directory, decodes every file in parallel and prints one JSON line per file with its status and metadata. Previews are written as PNGs when --previews is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			workers, _ := f.GetInt("workers")
			all, _ := f.GetBool("all")
			window, _ := f.GetBool("window")
			thumb, _ := f.GetInt("thumbnail")
			previews, _ := f.GetString("previews")
			dataURL, _ := f.GetBool("data-url")
			contentIDs, _ := f.GetBool("content-ids")

			files, err := ingest.Collect(args[0], all)
			if err != nil {
				return err
			}
			im := ingest.NewImporter(ingest.Options{
				Workers:      workers,
				Window:       window,
				ThumbnailMax: thumb,
				ContentIDs:   contentIDs,
			})
			results := im.Import(ctx, files)

			if previews != "" {
				if err := os.MkdirAll(previews, 0o755); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, res := range results {
				rec := importRecord{
					ID: res.ID, Name: res.Name, Path: files[i].Path, Checksum: res.Checksum,
					Status: res.Status, Frames: res.Frames, Metadata: res.Metadata,
				}
				if res.Err != nil {
					rec.Error = res.Err.Error()
				}
				if res.Display != nil && dataURL {
					if rec.Preview, err = render.DataURL(res.Display); err != nil {
						return err
					}
				}
				if res.Display != nil && previews != "" {
					path := filepath.Join(previews, res.ID+".png")
					if err := writePNG(path, res.Display); err != nil {
						return err
					}
					rec.Preview = path
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			for status, n := range ingest.Summary(results) {
				slog.InfoContext(ctx, "imported", slog.String("status", string(status)), slog.Int("files", n))
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.Int("workers", 0, fmt.Sprintf("Number of parallel workers (default: %d = CPU cores)", runtime.NumCPU()))
	pf.Bool("all", false, "import every regular file, not only *.dcm")
	pf.Bool("window", false, "apply each file's window center/width")
	pf.Int("thumbnail", 0, "scale previews so the longest side is at most this many pixels")
	pf.String("previews", "", "directory to write PNG previews into")
	pf.Bool("data-url", false, "embed previews as data URLs in the output")
	pf.Bool("content-ids", false, "derive file IDs from content instead of at random")
	return cmd
}

func writePNG(path string, d *render.DisplayRaster) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.EncodePNG(fh, d); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
