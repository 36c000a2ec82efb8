package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stolostron/qe-intelligence/pkg/evidence"
	"github.com/stolostron/qe-intelligence/pkg/masking"
)

// Writer persists the final artifacts. Every byte goes through the report
// masking path, so credentials and cluster endpoints never reach disk.
type Writer struct {
	masker *masking.Service
}

// NewWriter builds a writer over the given masking service.
func NewWriter(masker *masking.Service) *Writer {
	return &Writer{masker: masker}
}

// WriteGeneratorArtifacts writes Test-Cases.md and Complete-Analysis.md.
func (w *Writer) WriteGeneratorArtifacts(runDir string, plan *TestPlan) error {
	if err := w.write(runDir, "Test-Cases.md", RenderTestCases(plan)); err != nil {
		return err
	}
	return w.write(runDir, "Complete-Analysis.md", RenderCompleteAnalysis(plan))
}

// WriteAnalyzerArtifacts writes analysis-results.json and report.md.
func (w *Writer) WriteAnalyzerArtifacts(runDir string, agg *evidence.Aggregated) error {
	data, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis results: %w", err)
	}
	if err := w.write(runDir, "analysis-results.json", string(data)); err != nil {
		return err
	}
	return w.write(runDir, "report.md", RenderAnalyzerReport(agg))
}

func (w *Writer) write(runDir, name, content string) error {
	masked := w.masker.MaskReport(content)
	path := filepath.Join(runDir, name)
	if err := os.WriteFile(path, []byte(masked), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
