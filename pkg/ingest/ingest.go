// Package ingest runs the per-file pipeline from raw bytes to metadata and a
// display raster, and fans bulk imports out over a bounded worker pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/logging"
	"github.com/jpfielding/dcmview/pkg/render"
	"github.com/jpfielding/dcmview/pkg/util"
)

// Status is a file's position in the ingestion state machine.
type Status string

const (
	StatusReceived          Status = "received"
	StatusMetadataExtracted Status = "metadata_extracted"
	StatusPixelDecoded      Status = "pixel_decoded"
	// StatusPixelUnsupported is terminal but not an error: metadata is usable.
	StatusPixelUnsupported Status = "pixel_unsupported"
	StatusReady            Status = "ready"
	// StatusFailed means decoding broke after the file was recognised.
	StatusFailed Status = "failed"
	// StatusRejected means the bytes are not a DICOM file at all.
	StatusRejected Status = "rejected"
)

// PreviewAvailable reports whether a result in this status carries a display raster.
func (s Status) PreviewAvailable() bool { return s == StatusReady }

// File is one input. Data is read from Path when nil.
type File struct {
	ID   string
	Name string
	Path string
	Data []byte
}

// Result is the outcome for one File; ID and Name are carried through unchanged.
type Result struct {
	ID       string
	Name     string
	Checksum string
	Metadata dicom.Metadata
	Frames   int
	Status   Status
	// Display is the rendered frame, or a placeholder when Options.Placeholder
	// is set and no preview could be made.
	Display *render.DisplayRaster
	// Overlay is a heatmap of the same frame when Options.Heatmap is set.
	Overlay *render.DisplayRaster
	Err     error
}

// Options configures Process and Importer.
type Options struct {
	// Workers bounds concurrent decodes; zero means runtime.NumCPU().
	Workers int
	// MaxDepth caps sequence nesting; zero means dicom.DefaultMaxDepth.
	MaxDepth int
	// Window renders with the dataset's Window Center/Width when present.
	Window bool
	// Heatmap also produces a jet coloured overlay of the frame.
	Heatmap bool
	// ThumbnailMax scales the display down to this longest side; zero keeps full size.
	ThumbnailMax int
	// Placeholder fills Display for files without a preview.
	Placeholder bool
	// ContentIDs derives missing file IDs from content instead of at random.
	ContentIDs bool
}

const placeholderWidth, placeholderHeight = 256, 256

// Process runs one file through the pipeline. It never panics on bad input;
// failures are reported on the Result.
func Process(ctx context.Context, f File, opts Options) Result {
	res := Result{ID: f.ID, Name: f.Name, Status: StatusReceived, Metadata: dicom.UnknownMetadata()}
	if res.Name == "" && f.Path != "" {
		res.Name = filepath.Base(f.Path)
	}

	data := f.Data
	if data == nil && f.Path != "" {
		b, err := os.ReadFile(f.Path)
		if err != nil {
			res.ID = orNewID(res.ID, nil, opts)
			return res.fail(StatusFailed, fmt.Errorf("reading %s: %w", f.Path, err), opts)
		}
		data = b
	}
	res.ID = orNewID(res.ID, data, opts)
	res.Checksum = util.Checksum(data)
	ctx = logging.AppendCtx(ctx, slog.String("file", res.ID))

	if err := ctx.Err(); err != nil {
		return res.fail(StatusFailed, err, opts)
	}

	ds, err := dicom.DecodeWithOptions(data, dicom.Options{MaxDepth: opts.MaxDepth})
	switch {
	case errors.Is(err, dicom.ErrNotDicom):
		slog.DebugContext(ctx, "rejected", slog.Any("error", err))
		return res.fail(StatusRejected, err, opts)
	case err != nil && ds == nil:
		return res.fail(StatusFailed, err, opts)
	case err != nil:
		// elements before the corruption are still usable
		slog.WarnContext(ctx, "partial decode", slog.Any("error", err))
		res.Err = err
	}

	res.Metadata = dicom.ExtractMetadata(ds)
	res.Frames = dicom.GetNumberOfFrames(ds)
	res.Status = StatusMetadataExtracted
	slog.DebugContext(ctx, "metadata extracted",
		slog.String("modality", res.Metadata.Modality),
		slog.String("patient", res.Metadata.PatientName))

	if err := ctx.Err(); err != nil {
		return res.fail(StatusFailed, err, opts)
	}

	raster, err := dicom.DecodePixels(ds)
	switch {
	case errors.Is(err, dicom.ErrUnsupportedPixelFormat):
		slog.WarnContext(ctx, "pixel data unsupported", slog.Any("error", err))
		return res.fail(StatusPixelUnsupported, err, opts)
	case err != nil:
		return res.fail(StatusFailed, err, opts)
	}
	res.Status = StatusPixelDecoded

	ropts := render.Options{}
	if opts.Window {
		if c, w, ok := dicom.GetWindowLevel(ds); ok {
			ropts = render.Options{Window: true, Center: c, Width: w}
		}
	}
	res.Display = render.Thumbnail(render.Render(raster, ropts), opts.ThumbnailMax)
	if opts.Heatmap {
		res.Overlay = render.Thumbnail(render.Heatmap(raster), opts.ThumbnailMax)
	}
	res.Status = StatusReady
	slog.DebugContext(ctx, "ready",
		slog.Int("width", res.Display.Width),
		slog.Int("height", res.Display.Height))
	return res
}

func (r Result) fail(status Status, err error, opts Options) Result {
	r.Status = status
	r.Err = errors.Join(r.Err, err)
	if opts.Placeholder {
		r.Display = render.Placeholder(placeholderWidth, placeholderHeight)
	}
	return r
}

func orNewID(id string, data []byte, opts Options) string {
	switch {
	case id != "":
		return id
	case opts.ContentIDs && data != nil:
		return util.ContentID(data)
	}
	return util.NewFileID()
}
