package agents

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// probeTimeout bounds each endpoint reachability check.
const probeTimeout = 5 * time.Second

// EnvironmentAgent is Phase 1 agent D: it assesses whether the target
// cluster is reachable so later phases know how much weight environment
// evidence can carry.
type EnvironmentAgent struct {
	// probe checks one endpoint; tests inject a stub.
	probe func(ctx context.Context, url string) error
}

// NewEnvironmentAgent builds the agent with the HTTP reachability probe.
func NewEnvironmentAgent() *EnvironmentAgent {
	client := &http.Client{Timeout: probeTimeout}
	return &EnvironmentAgent{
		probe: func(ctx context.Context, url string) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		},
	}
}

func (a *EnvironmentAgent) ID() string   { return "agent_d" }
func (a *EnvironmentAgent) Name() string { return "environment-intelligence" }

func (a *EnvironmentAgent) Execute(ctx context.Context, rc *RunContext) (*models.AgentResult, error) {
	started := time.Now()
	announce(rc, a.ID(), "active")

	consoleURL := strings.TrimSpace(os.Getenv("CLUSTER_CONSOLE_URL"))
	apiURL := strings.TrimSpace(os.Getenv("CLUSTER_API_URL"))
	cluster := strings.TrimSpace(os.Getenv("CLUSTER_NAME"))

	var warnings []string
	consoleOK, apiOK := false, false

	if consoleURL == "" && apiURL == "" {
		warnings = append(warnings, "no cluster endpoints configured; environment evidence unavailable")
	}
	if consoleURL != "" {
		if err := a.probe(ctx, consoleURL); err != nil {
			warnings = append(warnings, fmt.Sprintf("console unreachable: %v", err))
		} else {
			consoleOK = true
		}
	}
	if apiURL != "" {
		if err := a.probe(ctx, apiURL); err != nil {
			warnings = append(warnings, fmt.Sprintf("api endpoint unreachable: %v", err))
		} else {
			apiOK = true
		}
	}

	healthy := consoleOK && (apiURL == "" || apiOK)
	confidence := 0.4
	switch {
	case consoleOK && apiOK:
		confidence = 0.85
	case consoleOK || apiOK:
		confidence = 0.6
	}

	findings := map[string]any{
		"target_cluster":     valueOr(cluster, "unknown"),
		"console_url":        consoleURL,
		"api_url":            apiURL,
		"console_accessible": consoleOK,
		"api_accessible":     apiOK,
		"healthy":            healthy,
	}

	detail := renderEnvironmentDetail(cluster, findings, warnings)
	outFile, err := writeDetailFile(rc, a.ID(), a.Name(), detail)
	if err != nil {
		return nil, err
	}

	result := &models.AgentResult{
		AgentID:          a.ID(),
		AgentName:        a.Name(),
		Findings:         findings,
		Confidence:       confidence,
		OutputFile:       outFile,
		Warnings:         warnings,
		DetailedAnalysis: detail,
	}
	return finish(rc, result, started), nil
}

func renderEnvironmentDetail(cluster string, findings map[string]any, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Environment Intelligence: %s\n\n", valueOr(cluster, "unknown cluster"))
	fmt.Fprintf(&b, "- Healthy: %v\n", findings["healthy"])
	fmt.Fprintf(&b, "- Console accessible: %v\n", findings["console_accessible"])
	fmt.Fprintf(&b, "- API accessible: %v\n", findings["api_accessible"])
	if len(warnings) > 0 {
		b.WriteString("\n## Degradations\n\n")
		writeBullets(&b, warnings, "")
	}
	return b.String()
}
