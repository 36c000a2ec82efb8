package models

// Tool selects which of the two pipelines a run executes. Both tools share
// the same phase sequence; agents adjust what they investigate.
type Tool string

const (
	// ToolTestGenerator ingests a JIRA ticket and emits Test-Cases.md plus
	// Complete-Analysis.md.
	ToolTestGenerator Tool = "test-generator"
	// ToolPipelineAnalyzer ingests a Jenkins build URL and emits
	// analysis-results.json plus report.md.
	ToolPipelineAnalyzer Tool = "pipeline-analyzer"
)

// EssentialFiles returns the files the final cleanup phase must preserve for
// this tool.
func (t Tool) EssentialFiles() []string {
	if t == ToolPipelineAnalyzer {
		return []string{"analysis-results.json", "report.md"}
	}
	return []string{"Test-Cases.md", "Complete-Analysis.md"}
}
