package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jpfielding/dcmview/pkg/dicom"
)

// Importer decodes many files in parallel. Decodes share no state, so the only
// coordination is handing out work and collecting results.
type Importer struct {
	opts Options
}

// NewImporter returns an importer using opts for every file.
func NewImporter(opts Options) *Importer {
	return &Importer{opts: opts}
}

type task struct {
	index int
	file  File
}

// Import processes files and returns one Result per File in input order. Files
// not started before ctx is cancelled are reported as failed with ctx.Err().
func (im *Importer) Import(ctx context.Context, files []File) []Result {
	results := make([]Result, len(files))
	if len(files) == 0 {
		return results
	}
	numWorkers := im.opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	// Don't use more workers than files
	numWorkers = min(numWorkers, len(files))
	slog.DebugContext(ctx, "importing", slog.Int("files", len(files)), slog.Int("workers", numWorkers))

	taskChan := make(chan task, len(files))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				// each worker owns distinct indexes
				results[t.index] = Process(ctx, t.file, im.opts)
			}
		}()
	}
	for i, f := range files {
		taskChan <- task{index: i, file: f}
	}
	close(taskChan)
	wg.Wait()
	return results
}

// ImportDir walks dir and imports every regular file with a .dcm extension, or
// every regular file when all is set.
func (im *Importer) ImportDir(ctx context.Context, dir string, all bool) ([]Result, error) {
	files, err := Collect(dir, all)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, files), nil
}

// Collect lists the files under dir that ImportDir would import. Data is left
// nil so each file is read by the worker that processes it.
func Collect(dir string, all bool) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !all && !strings.EqualFold(filepath.Ext(path), dicom.GetExtension()) {
			return nil
		}
		files = append(files, File{Name: d.Name(), Path: path})
		return nil
	})
	return files, err
}

// Summary counts results by status.
func Summary(results []Result) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
