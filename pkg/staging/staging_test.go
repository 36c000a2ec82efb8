package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

func successResult(id, name, detail string) *models.AgentResult {
	return &models.AgentResult{
		AgentID:          id,
		AgentName:        name,
		Status:           models.AgentStatusSuccess,
		Findings:         map[string]any{"components": []any{"search"}},
		Confidence:       0.8,
		DetailedAnalysis: detail,
	}
}

func TestStage_PreservesDetailedContent(t *testing.T) {
	runDir := t.TempDir()
	results := []*models.AgentResult{
		successResult("agent_a", "jira-intelligence", "# JIRA Intelligence: ACM-1\n\nfull analysis body"),
		successResult("agent_d", "environment-intelligence", "# Environment Intelligence\n"),
	}

	bundle, err := NewStager().Stage(runDir, results)
	require.NoError(t, err)

	assert.True(t, bundle.DataPreservationVerified)
	assert.Empty(t, bundle.PreservationFailures)
	require.Len(t, bundle.AgentPackages, 2)

	for i, pkg := range bundle.AgentPackages {
		assert.Equal(t, results[i].AgentID, pkg.AgentID, "package order follows result order")
		assert.Equal(t, results[i].DetailedAnalysis, pkg.DetailedContent,
			"detailed content must be preserved byte-for-byte")
	}
	require.NotNil(t, bundle.QEIntelligence)
	assert.Equal(t, models.AgentStatusSuccess, bundle.QEIntelligence.Status)
}

func TestStage_FailedAgentNeedsNoDetail(t *testing.T) {
	results := []*models.AgentResult{
		successResult("agent_a", "jira-intelligence", "analysis"),
		models.FailedResult("agent_d", "environment-intelligence", models.ErrorKindTransient, "probe failed", 0),
	}

	bundle, err := NewStager().Stage(t.TempDir(), results)
	require.NoError(t, err)
	assert.True(t, bundle.DataPreservationVerified)
}

func TestStage_EmptyDetailFromSuccessfulAgentFails(t *testing.T) {
	results := []*models.AgentResult{
		successResult("agent_a", "jira-intelligence", "analysis"),
		successResult("agent_b", "documentation-intelligence", ""),
	}

	bundle, err := NewStager().Stage(t.TempDir(), results)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDataPreservation)

	assert.False(t, bundle.DataPreservationVerified)
	require.Len(t, bundle.PreservationFailures, 1)
	assert.Contains(t, bundle.PreservationFailures[0], "agent_b")
}

func TestStage_WritesStagingArtifacts(t *testing.T) {
	runDir := t.TempDir()
	_, err := NewStager().Stage(runDir, []*models.AgentResult{
		successResult("agent_a", "jira-intelligence", "analysis"),
	})
	require.NoError(t, err)

	for _, name := range []string{"bundle_staging.json", "qe_intelligence.json"} {
		data, err := os.ReadFile(filepath.Join(runDir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data)
	}
}

func TestStage_NoResults(t *testing.T) {
	bundle, err := NewStager().Stage(t.TempDir(), nil)
	require.NoError(t, err)

	assert.True(t, bundle.DataPreservationVerified, "nothing to preserve")
	assert.Equal(t, models.AgentStatusFailed, bundle.QEIntelligence.Status)
}
