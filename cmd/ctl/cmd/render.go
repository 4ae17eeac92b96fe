package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/render"
	"github.com/spf13/cobra"
)

// NewRenderCmd renders a frame, optionally with an overlay, to PNG
func NewRenderCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a DICOM frame to PNG",
		Long:  "Normalizes a frame to 8-bit RGBA and writes it as PNG or a base64 data URL. An overlay file is composited on top at the given opacity, coloured as a heatmap when requested.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			input := uriArg(cmd, args)
			overlayPath, _ := f.GetString("overlay")
			opacity, _ := f.GetFloat64("opacity")
			heatmap, _ := f.GetBool("heatmap")
			window, _ := f.GetBool("window")
			frame, _ := f.GetInt("frame")
			thumb, _ := f.GetInt("thumbnail")
			placeholder, _ := f.GetBool("placeholder")
			out, _ := f.GetString("out")
			dataURL, _ := f.GetBool("data-url")

			base, err := renderFile(ctx, input, frame, window, false)
			switch {
			case errors.Is(err, dicom.ErrUnsupportedPixelFormat) && placeholder:
				slog.WarnContext(ctx, "preview unavailable", slog.Any("error", err))
				base = render.Placeholder(256, 256)
				overlayPath = ""
			case err != nil:
				return err
			}

			display := base
			if overlayPath != "" {
				overlay, err := renderFile(ctx, overlayPath, frame, false, heatmap)
				if err != nil {
					return fmt.Errorf("overlay: %w", err)
				}
				v, err := render.NewViewer(base, overlay)
				if err != nil {
					return err
				}
				display = v.SetOpacity(opacity)
			}
			display = render.Thumbnail(display, thumb)

			if dataURL {
				url, err := render.DataURL(display)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}
			if out == "" || out == "-" {
				return render.EncodePNG(cmd.OutOrStdout(), display)
			}
			fh, err := os.Create(out)
			if err != nil {
				return err
			}
			defer fh.Close()
			if err := render.EncodePNG(fh, display); err != nil {
				return err
			}
			slog.InfoContext(ctx, "rendered", slog.String("out", out),
				slog.Int("width", display.Width), slog.Int("height", display.Height))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("uri", "u", "", "DICOM file path, URL or - for stdin")
	pf.String("overlay", "", "DICOM file composited over the base image")
	pf.Float64("opacity", render.DefaultOpacity, "overlay opacity, clamped to [0,1]")
	pf.Bool("heatmap", true, "colour the overlay with the jet colour map")
	pf.Bool("window", false, "apply the file's window center/width")
	pf.Int("frame", 0, "frame index for multi-frame files")
	pf.Int("thumbnail", 0, "scale so the longest side is at most this many pixels")
	pf.Bool("placeholder", false, "write a preview unavailable image instead of failing on unsupported pixel data")
	pf.StringP("out", "o", "", "output PNG path, - for stdout")
	pf.Bool("data-url", false, "print a data:image/png;base64 URL instead of PNG bytes")
	return cmd
}

func renderFile(ctx context.Context, uri string, frame int, window, heatmap bool) (*render.DisplayRaster, error) {
	data, err := openURI(ctx, uri, false, false)
	if err != nil {
		return nil, err
	}
	ds, err := dicom.Decode(data)
	if ds == nil || (err != nil && !errors.Is(err, dicom.ErrMalformedElement)) {
		return nil, err
	}
	r, err := dicom.DecodeFrame(ds, frame)
	if err != nil {
		return nil, err
	}
	if heatmap {
		return render.Heatmap(r), nil
	}
	opts := render.Options{}
	if c, w, ok := dicom.GetWindowLevel(ds); ok && window {
		opts = render.Options{Window: true, Center: c, Width: w}
	}
	return render.Render(r, opts), nil
}
