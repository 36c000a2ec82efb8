package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInitCleaner_PurgesStagingAndCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "staging", "bundle_staging.json"), "stale")
	writeFile(t, filepath.Join(root, "staging", "nested", "old.tmp"), "stale nested")
	writeFile(t, filepath.Join(root, "cache", "entry.json"), "cached")
	writeFile(t, filepath.Join(root, "runs", "ACM-1", "Test-Cases.md"), "keep me")

	report := NewInitCleaner(root).Clean()

	assert.Equal(t, 3, report.FilesRemoved)
	assert.Equal(t, 2, report.DirectoriesCleaned)
	assert.Equal(t, int64(len("stale")+len("stale nested")+len("cached")), report.TotalSizeFreedBytes)
	assert.Empty(t, report.Errors)

	entries, err := os.ReadDir(filepath.Join(root, "staging"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.FileExists(t, filepath.Join(root, "runs", "ACM-1", "Test-Cases.md"),
		"runs tree must never be touched")
}

func TestInitCleaner_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cache", "entry.json"), "cached")

	first := NewInitCleaner(root).Clean()
	second := NewInitCleaner(root).Clean()

	assert.Equal(t, 1, first.FilesRemoved)
	assert.Zero(t, second.FilesRemoved)
	assert.Empty(t, second.Errors)
}

func TestInitCleaner_MissingDirectories(t *testing.T) {
	report := NewInitCleaner(t.TempDir()).Clean()

	assert.Zero(t, report.FilesRemoved)
	assert.Zero(t, report.DirectoriesCleaned)
	assert.Empty(t, report.Errors)
}

func TestRunCleaner_RemovesTempArtifacts(t *testing.T) {
	runDir := t.TempDir()
	writeFile(t, filepath.Join(runDir, "Test-Cases.md"), "essential")
	writeFile(t, filepath.Join(runDir, "Complete-Analysis.md"), "essential")
	writeFile(t, filepath.Join(runDir, "agent_a_jira-intelligence.md"), "temp")
	writeFile(t, filepath.Join(runDir, "bundle_staging.json"), "temp")
	writeFile(t, filepath.Join(runDir, "qe_intelligence.json"), "temp")
	writeFile(t, filepath.Join(runDir, "notes_phase_3.txt"), "temp")
	writeFile(t, filepath.Join(runDir, "scratch.tmp"), "temp")
	writeFile(t, filepath.Join(runDir, "README.md"), "not temp, not essential")

	report := NewRunCleaner().Clean(runDir, models.ToolTestGenerator)

	assert.Equal(t, 5, report.FilesRemoved)
	assert.True(t, report.ValidationPassed)
	assert.Empty(t, report.Errors)

	assert.FileExists(t, filepath.Join(runDir, "Test-Cases.md"))
	assert.FileExists(t, filepath.Join(runDir, "Complete-Analysis.md"))
	assert.FileExists(t, filepath.Join(runDir, "README.md"),
		"files outside the temp patterns are kept")
	assert.NoFileExists(t, filepath.Join(runDir, "scratch.tmp"))
	assert.NoFileExists(t, filepath.Join(runDir, "agent_a_jira-intelligence.md"))
}

func TestRunCleaner_EssentialNameMatchingTempPatternIsKept(t *testing.T) {
	runDir := t.TempDir()
	writeFile(t, filepath.Join(runDir, "analysis-results.json"), "essential")
	writeFile(t, filepath.Join(runDir, "report.md"), "essential")
	writeFile(t, filepath.Join(runDir, "agent_a_pipeline-intelligence.md"), "temp")

	report := NewRunCleaner().Clean(runDir, models.ToolPipelineAnalyzer)

	assert.Equal(t, 1, report.FilesRemoved)
	assert.True(t, report.ValidationPassed)
	assert.FileExists(t, filepath.Join(runDir, "analysis-results.json"))
	assert.FileExists(t, filepath.Join(runDir, "report.md"))
}

func TestRunCleaner_MissingEssentialFailsValidation(t *testing.T) {
	runDir := t.TempDir()
	writeFile(t, filepath.Join(runDir, "Test-Cases.md"), "essential")
	// Complete-Analysis.md never produced.

	report := NewRunCleaner().Clean(runDir, models.ToolTestGenerator)

	assert.False(t, report.ValidationPassed)
	assert.Equal(t, []string{"Complete-Analysis.md"}, report.MissingEssential)
}

func TestRunCleaner_Idempotent(t *testing.T) {
	runDir := t.TempDir()
	writeFile(t, filepath.Join(runDir, "Test-Cases.md"), "essential")
	writeFile(t, filepath.Join(runDir, "Complete-Analysis.md"), "essential")
	writeFile(t, filepath.Join(runDir, "scratch.tmp"), "temp")

	first := NewRunCleaner().Clean(runDir, models.ToolTestGenerator)
	second := NewRunCleaner().Clean(runDir, models.ToolTestGenerator)

	assert.Equal(t, 1, first.FilesRemoved)
	assert.Zero(t, second.FilesRemoved)
	assert.True(t, second.ValidationPassed)
}

func TestIsTempFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"scratch.tmp", true},
		{"bundle_staging.json", true},
		{"qe_intelligence.json", true},
		{"notes_phase_2.txt", true},
		{"agent_a_jira-intelligence.md", true},
		{"Test-Cases.md", false},
		{"Complete-Analysis.md", false},
		{"report.md", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTempFile(tt.name))
		})
	}
}
