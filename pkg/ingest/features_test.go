package ingest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/jpfielding/dcmview/pkg/dicom"
	"github.com/jpfielding/dcmview/pkg/ingest"
)

// scenario holds state for a single scenario
type scenario struct {
	files   []ingest.File
	results map[string]ingest.Result
	order   []string
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	s := &scenario{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*s = scenario{results: make(map[string]ingest.Result)}
		return ctx, nil
	})

	sc.Step(`^a DICOM file "([^"]*)" for patient "([^"]*)" on "([^"]*)" with modality "([^"]*)" and 16-bit pixels "([^"]*)" in (\d+) rows and (\d+) columns$`, s.aDICOMFile)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, s.aPlainFile)
	sc.Step(`^the files are imported$`, func(ctx context.Context) error { return s.imported(ctx, 0) })
	sc.Step(`^the files are imported with (\d+) workers$`, s.imported)
	sc.Step(`^"([^"]*)" has status "([^"]*)"$`, s.hasStatus)
	sc.Step(`^"([^"]*)" has metadata "([^"]*)" equal to "([^"]*)"$`, s.hasMetadata)
	sc.Step(`^"([^"]*)" pixel (\d+) is "([^"]*)"$`, s.pixelIs)
	sc.Step(`^"([^"]*)" has no preview$`, s.hasNoPreview)
	sc.Step(`^the results are in the order "([^"]*)"$`, s.resultsInOrder)
}

func (s *scenario) aDICOMFile(name, patient, date, modality, pixels string, rows, cols int) error {
	var px []uint16
	for _, f := range strings.Split(pixels, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return err
		}
		px = append(px, uint16(v))
	}
	b, err := dicom.Synthetic{
		PatientName: patient, StudyDate: date, Modality: modality,
		Rows: rows, Columns: cols, BitsAllocated: 16, Pixels: px,
	}.Bytes()
	if err != nil {
		return err
	}
	s.files = append(s.files, ingest.File{Name: name, Data: b})
	return nil
}

func (s *scenario) aPlainFile(name, content string) error {
	s.files = append(s.files, ingest.File{Name: name, Data: []byte(content)})
	return nil
}

func (s *scenario) imported(ctx context.Context, workers int) error {
	for _, r := range ingest.NewImporter(ingest.Options{Workers: workers}).Import(ctx, s.files) {
		s.results[r.Name] = r
		s.order = append(s.order, r.Name)
	}
	return nil
}

func (s *scenario) result(name string) (ingest.Result, error) {
	r, ok := s.results[name]
	if !ok {
		return r, fmt.Errorf("no result for %q", name)
	}
	return r, nil
}

func (s *scenario) hasStatus(name, status string) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if string(r.Status) != status {
		return fmt.Errorf("status %s, want %s (err: %v)", r.Status, status, r.Err)
	}
	return nil
}

func (s *scenario) hasMetadata(name, field, want string) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(r.Metadata)
	if err != nil {
		return err
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if got, ok := fields[field]; !ok || got != want {
		return fmt.Errorf("metadata %s = %q, want %q", field, got, want)
	}
	return nil
}

func (s *scenario) pixelIs(name string, index int, rgba string) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.Display == nil {
		return fmt.Errorf("%s has no display raster", name)
	}
	x, y := index%r.Display.Width, index/r.Display.Width
	got := r.Display.PixelAt(x, y)
	if have := fmt.Sprintf("%d,%d,%d,%d", got[0], got[1], got[2], got[3]); have != rgba {
		return fmt.Errorf("pixel %d is %s, want %s", index, have, rgba)
	}
	return nil
}

func (s *scenario) hasNoPreview(name string) error {
	r, err := s.result(name)
	if err != nil {
		return err
	}
	if r.Display != nil || r.Status.PreviewAvailable() {
		return fmt.Errorf("%s unexpectedly has a preview", name)
	}
	return nil
}

func (s *scenario) resultsInOrder(names string) error {
	if got := strings.Join(s.order, ","); got != names {
		return fmt.Errorf("order %s, want %s", got, names)
	}
	return nil
}
