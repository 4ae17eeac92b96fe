package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/dicom/tag"
	"github.com/spf13/cobra"
)

// openURI reads a local path, "-" for stdin, or an http(s) URL.
func openURI(ctx context.Context, uri string, insecure, verbose bool) ([]byte, error) {
	uri = strings.TrimPrefix(uri, "file://")
	switch {
	case uri == "":
		return nil, fmt.Errorf("a file path or URI is required")
	case uri == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(uri, "http"):
		cl := &http.Client{}
		if insecure {
			cl.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download: %w", err)
		}
		defer resp.Body.Close()
		if verbose {
			reqDump, _ := httputil.DumpRequest(req, true)
			os.Stderr.Write(reqDump)
			resDump, _ := httputil.DumpResponse(resp, false)
			os.Stderr.Write(resDump)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to download: %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	default:
		b, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		return b, nil
	}
}

func uriArg(cmd *cobra.Command, args []string) string {
	uri, _ := cmd.Flags().GetString("uri")
	if uri == "" && len(args) > 0 {
		uri = args[0]
	}
	return uri
}

// NewDecodeCmd prints the element table of a DICOM file
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [uri]",
		Short: "DICOM decode",
		Long:  "Decodes a DICOM file and prints its element table and metadata record.",
		RunE: func(cmd *cobra.Command, args []string) error {
			insecure, _ := cmd.Flags().GetBool("insecure")
			verbose, _ := cmd.Flags().GetBool("verbose")
			maxDepth, _ := cmd.Flags().GetInt("max-depth")
			data, err := openURI(ctx, uriArg(cmd, args), insecure, verbose)
			if err != nil {
				return err
			}
			dataset, err := dicom.DecodeWithOptions(data, dicom.Options{MaxDepth: maxDepth})
			switch {
			case dataset == nil:
				return err
			case errors.Is(err, dicom.ErrMalformedElement):
				// still print what was read
				slog.WarnContext(ctx, "partial decode", slog.Any("error", err))
			case err != nil:
				return err
			}
			out := cmd.OutOrStdout()
			if names, _ := cmd.Flags().GetStringSlice("tag"); len(names) > 0 {
				for _, name := range names {
					t, err := tag.Parse(name)
					if err != nil {
						return err
					}
					if elem, ok := dataset.FindElement(t); ok {
						fmt.Fprintln(out, elem)
					}
				}
				return nil
			}
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "text": // Dataset prints as an indented element table
				fmt.Fprintln(out, dataset)
			case "metadata":
				j, err := json.MarshalIndent(dicom.ExtractMetadata(dataset), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(j))
			default: // Dataset is also JSON serializable out of the box.
				j, err := json.Marshal(dataset)
				if err != nil {
					return err
				}
				out.Write(j)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("uri", "u", "", "DICOM file path, URL or - for stdin")
	pf.StringP("format", "f", "json", "output format (text|json|metadata)")
	pf.Bool("insecure", false, "skip TLS verification for https URIs")
	pf.BoolP("verbose", "v", false, "dump HTTP request and response headers")
	pf.Int("max-depth", dicom.DefaultMaxDepth, "maximum sequence nesting depth")
	pf.StringSlice("tag", nil, "print only these elements, by keyword or (GGGG,EEEE)")
	return cmd
}
