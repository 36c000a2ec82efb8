// Package orchestrator drives the fixed phase pipeline: initialization
// cleanup, foundation, deep investigation, data-flow staging, analysis,
// pattern extension, and comprehensive cleanup. Phases never branch; agent
// failures degrade a phase, they never stop the pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stolostron/qe-intelligence/pkg/agents"
	"github.com/stolostron/qe-intelligence/pkg/cleanup"
	"github.com/stolostron/qe-intelligence/pkg/config"
	"github.com/stolostron/qe-intelligence/pkg/evidence"
	"github.com/stolostron/qe-intelligence/pkg/extract"
	"github.com/stolostron/qe-intelligence/pkg/hub"
	"github.com/stolostron/qe-intelligence/pkg/masking"
	"github.com/stolostron/qe-intelligence/pkg/models"
	"github.com/stolostron/qe-intelligence/pkg/report"
	"github.com/stolostron/qe-intelligence/pkg/staging"
)

// RunRecorder persists finished runs. Recording is best-effort: failures are
// logged and never change the workflow outcome.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *models.WorkflowResult) error
}

// Runtime owns one run at a time: it builds the run directory, constructs a
// hub per parallel phase, launches agents, and hands phase outputs forward.
type Runtime struct {
	cfg       *config.Config
	services  agents.Services
	recorder  RunRecorder
	masker    *masking.Service
	stager    *staging.Stager
	writer    *report.Writer
	extractor *extract.Extractor
	logger    *slog.Logger
	now       func() time.Time

	hubMu     sync.RWMutex
	activeHub *hub.Hub
}

// New builds a runtime. recorder may be nil when run history is disabled.
func New(cfg *config.Config, services agents.Services, recorder RunRecorder) *Runtime {
	masker := masking.NewService(cfg.MaskingEnabled)
	return &Runtime{
		cfg:       cfg,
		services:  services,
		recorder:  recorder,
		masker:    masker,
		stager:    staging.NewStager(),
		writer:    report.NewWriter(masker),
		extractor: extract.NewExtractor(nil),
		logger:    slog.With("component", "orchestrator"),
		now:       time.Now,
	}
}

// ActiveHub returns the hub of the currently running parallel phase, or nil
// between phases. The API server streams messages from it.
func (r *Runtime) ActiveHub() *hub.Hub {
	r.hubMu.RLock()
	defer r.hubMu.RUnlock()
	return r.activeHub
}

func (r *Runtime) setActiveHub(h *hub.Hub) {
	r.hubMu.Lock()
	r.activeHub = h
	r.hubMu.Unlock()
}

// ExecuteFullWorkflow runs the full pipeline for one input. It always
// returns a WorkflowResult; the error is non-nil only for the fatal abort
// (no run directory) or cancellation.
func (r *Runtime) ExecuteFullWorkflow(ctx context.Context, tool models.Tool, input string) (*models.WorkflowResult, error) {
	started := r.now()
	result := &models.WorkflowResult{
		RunID:     uuid.New().String(),
		Tool:      tool,
		Input:     input,
		Success:   true,
		Status:    models.RunStatusCompleted,
		StartedAt: started,
	}
	logger := r.logger.With("run_id", result.RunID, "tool", tool)

	runDir, err := r.createRunDir(tool, input)
	if err != nil {
		result.Success = false
		result.Status = models.RunStatusFatalAbort
		result.ErrorMessage = err.Error()
		r.finalize(ctx, result, logger)
		return result, err
	}
	result.RunDir = runDir
	logger.Info("Run started", "run_dir", runDir)

	// Phase 0: purge stale staging and cache state.
	r.runPhase(result, models.PhaseInitCleanup, "Initialization Cleanup", func() []*models.AgentResult {
		return []*models.AgentResult{initCleanupResult(r.cfg.Run.OutputDir)}
	})

	rc := &agents.RunContext{
		RunID:        result.RunID,
		RunDir:       runDir,
		Tool:         tool,
		Input:        input,
		Services:     r.services,
		PauseTimeout: r.cfg.Run.PauseTimeout,
		Logger:       logger,
	}

	// Phase 1: foundation agents, in parallel.
	foundation := r.runHubPhase(ctx, rc, models.PhaseFoundation, "Foundation", phase1Roster(tool))
	result.Phases = append(result.Phases, foundation)
	rc.Foundation = foundation.AgentResults

	if r.cancelled(ctx, result, logger) {
		r.finalize(ctx, result, logger)
		return result, ctx.Err()
	}

	// Phase 2: deep investigation agents, in parallel.
	investigation := r.runHubPhase(ctx, rc, models.PhaseInvestigation, "Deep Investigation", phase2Roster())
	result.Phases = append(result.Phases, investigation)

	if r.cancelled(ctx, result, logger) {
		r.finalize(ctx, result, logger)
		return result, ctx.Err()
	}

	// Phase 2.5: staging plus QE intelligence.
	gathered := append(append([]*models.AgentResult{}, foundation.AgentResults...),
		investigation.AgentResults...)
	var bundle *models.IntelligenceBundle
	r.runPhase(result, models.PhaseStaging, "Data-flow Staging", func() []*models.AgentResult {
		var stageErr error
		bundle, stageErr = r.stager.Stage(runDir, gathered)
		if stageErr != nil {
			// The only integrity failure: the run completes but cannot be
			// trusted, so success flips to false.
			result.Success = false
			result.ErrorMessage = stageErr.Error()
			return []*models.AgentResult{models.FailedResult("staging", "data-flow-staging",
				models.ErrorKindIntegrity, stageErr.Error(), 0)}
		}
		return []*models.AgentResult{{
			AgentID:    "staging",
			AgentName:  "data-flow-staging",
			Status:     models.AgentStatusSuccess,
			Confidence: bundle.QEIntelligence.Confidence,
			Findings: map[string]any{
				"packages":                   len(bundle.AgentPackages),
				"data_preservation_verified": bundle.DataPreservationVerified,
			},
		}}
	})

	// Phase 3: synthesis over the bundle.
	var plan *report.TestPlan
	var analysis *evidence.Aggregated
	r.runPhase(result, models.PhaseAnalysis, "AI Analysis", func() []*models.AgentResult {
		if tool == models.ToolPipelineAnalyzer {
			analysis = report.BuildAnalysis(input, bundle)
			return []*models.AgentResult{analysisResult(analysis, r.extractor)}
		}
		plan = report.BuildTestPlan(input, bundle)
		return []*models.AgentResult{planResult(plan, bundle)}
	})

	// Phase 4: pattern extension always runs; with partial upstream data it
	// emits fewer, more generic artifacts rather than skipping.
	r.runPhase(result, models.PhaseExtension, "Pattern Extension", func() []*models.AgentResult {
		var writeErr error
		if tool == models.ToolPipelineAnalyzer {
			writeErr = r.writer.WriteAnalyzerArtifacts(runDir, analysis)
		} else {
			writeErr = r.writer.WriteGeneratorArtifacts(runDir, plan)
		}
		if writeErr != nil {
			return []*models.AgentResult{models.FailedResult("extension", "pattern-extension",
				models.ErrorKindTransient, writeErr.Error(), 0)}
		}
		return []*models.AgentResult{{
			AgentID: "extension", AgentName: "pattern-extension",
			Status: models.AgentStatusSuccess, Confidence: 1.0,
		}}
	})

	// Phase 5: remove temp artifacts, validate essentials.
	r.runPhase(result, models.PhaseFinalCleanup, "Comprehensive Cleanup", func() []*models.AgentResult {
		return []*models.AgentResult{runCleanupResult(runDir, tool)}
	})

	r.finalize(ctx, result, logger)
	return result, nil
}

// cancelled converts a context cancellation into the cancelled terminal
// state. Remaining phases are not launched.
func (r *Runtime) cancelled(ctx context.Context, result *models.WorkflowResult, logger *slog.Logger) bool {
	if ctx.Err() == nil {
		return false
	}
	result.Success = false
	result.Status = models.RunStatusCancelled
	result.ErrorMessage = "run cancelled"
	logger.Warn("Run cancelled; remaining phases skipped")
	return true
}

func (r *Runtime) finalize(ctx context.Context, result *models.WorkflowResult, logger *slog.Logger) {
	result.CompletedAt = r.now()
	result.ExecutionTime = result.CompletedAt.Sub(result.StartedAt)
	logger.Info("Run finished",
		"status", result.Status, "success", result.Success,
		"phases", len(result.Phases), "elapsed", result.ExecutionTime)

	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordRun(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("Run history not recorded", "err", err)
	}
}

// runPhase executes a sequential phase body and appends its result.
func (r *Runtime) runPhase(result *models.WorkflowResult, id models.PhaseID, name string, body func() []*models.AgentResult) {
	phaseStart := r.now()
	agentResults := body()
	result.Phases = append(result.Phases, &models.PhaseResult{
		PhaseID:       id,
		PhaseName:     name,
		Status:        models.AggregatePhaseStatus(agentResults),
		AgentResults:  agentResults,
		ExecutionTime: r.now().Sub(phaseStart),
	})
}

// runHubPhase executes a parallel phase: fresh hub, registered agents, an
// orchestrator responder for PAUSE-and-wait requests, and the parallel
// runner. The hub is stopped before the phase result is returned.
func (r *Runtime) runHubPhase(ctx context.Context, rc *agents.RunContext, id models.PhaseID, name string, roster []agents.Agent) *models.PhaseResult {
	phaseStart := r.now()

	h := hub.New(rc.RunID, id)
	if err := h.Start(); err != nil {
		return &models.PhaseResult{
			PhaseID: id, PhaseName: name,
			Status:       models.PhaseStatusFailed,
			ErrorMessage: err.Error(),
		}
	}
	h.RegisterAgent(agents.OrchestratorID, nil)
	h.Subscribe(agents.OrchestratorID, []string{agents.MsgStatusPaused}, func(m *models.Message) {
		if _, err := h.PublishReply(agents.OrchestratorID, m.Sender, agents.MsgProceed, nil, m.ID); err != nil {
			r.logger.Debug("Proceed reply not delivered", "agent", m.Sender, "err", err)
		}
	})
	for _, ag := range roster {
		h.RegisterAgent(ag.ID(), map[string]any{"name": ag.Name()})
	}

	rc.Hub = h
	r.setActiveHub(h)
	agentResults := r.runParallel(ctx, rc, roster)
	r.setActiveHub(nil)
	rc.Hub = nil
	h.Stop()

	return &models.PhaseResult{
		PhaseID:       id,
		PhaseName:     name,
		Status:        models.AggregatePhaseStatus(agentResults),
		AgentResults:  agentResults,
		ExecutionTime: r.now().Sub(phaseStart),
	}
}

// phase1Roster picks the foundation agents for the tool.
func phase1Roster(tool models.Tool) []agents.Agent {
	if tool == models.ToolPipelineAnalyzer {
		return []agents.Agent{&agents.PipelineAgent{}, agents.NewEnvironmentAgent()}
	}
	return []agents.Agent{&agents.JIRAAgent{}, agents.NewEnvironmentAgent()}
}

func phase2Roster() []agents.Agent {
	return []agents.Agent{&agents.DocumentationAgent{}, &agents.GitHubAgent{}}
}

// createRunDir builds <output>/runs/<slug>/<timestamp>/. Failure here is the
// run's only fatal abort.
func (r *Runtime) createRunDir(tool models.Tool, input string) (string, error) {
	dir := filepath.Join(r.cfg.Run.OutputDir, "runs", runSlug(tool, input),
		r.now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	return dir, nil
}

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// runSlug derives the run-directory name: the ticket ID for the generator,
// the Jenkins job path for the analyzer.
func runSlug(tool models.Tool, input string) string {
	input = strings.TrimSpace(input)
	if tool == models.ToolPipelineAnalyzer {
		if jobs := jenkinsJobPath(input); jobs != "" {
			return jobs
		}
	}
	slug := strings.Trim(slugUnsafe.ReplaceAllString(input, "-"), "-")
	if slug == "" {
		return "run"
	}
	return slug
}

// jenkinsJobPath extracts "jobA_jobB" from a Jenkins build URL.
func jenkinsJobPath(buildURL string) string {
	u, err := url.Parse(buildURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	var jobs []string
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "job" && segments[i+1] != "" {
			jobs = append(jobs, segments[i+1])
			i++
		}
	}
	return strings.Join(jobs, "_")
}

func initCleanupResult(outputRoot string) *models.AgentResult {
	rep := cleanup.NewInitCleaner(outputRoot).Clean()
	status := models.AgentStatusSuccess
	errMsg := ""
	if len(rep.Errors) > 0 {
		status = models.AgentStatusFailed
		errMsg = strings.Join(rep.Errors, "; ")
	}
	return &models.AgentResult{
		AgentID:      "init_cleanup",
		AgentName:    "initialization-cleanup",
		Status:       status,
		ErrorMessage: errMsg,
		Confidence:   1.0,
		Findings: map[string]any{
			"files_removed":          rep.FilesRemoved,
			"directories_cleaned":    rep.DirectoriesCleaned,
			"total_size_freed_bytes": rep.TotalSizeFreedBytes,
		},
	}
}

func runCleanupResult(runDir string, tool models.Tool) *models.AgentResult {
	rep := cleanup.NewRunCleaner().Clean(runDir, tool)
	res := &models.AgentResult{
		AgentID:    "run_cleanup",
		AgentName:  "comprehensive-cleanup",
		Status:     models.AgentStatusSuccess,
		Confidence: 1.0,
		Findings: map[string]any{
			"files_removed":     rep.FilesRemoved,
			"validation_passed": rep.ValidationPassed,
		},
	}
	if !rep.ValidationPassed {
		res.Status = models.AgentStatusFailed
		res.Confidence = 0.0
		res.ErrorMessage = fmt.Sprintf("essential files missing: %s",
			strings.Join(rep.MissingEssential, ", "))
	}
	return res
}

// planResult summarizes the generator synthesis as the Phase 3 agent result.
func planResult(plan *report.TestPlan, bundle *models.IntelligenceBundle) *models.AgentResult {
	confidence := 0.5
	if bundle != nil && bundle.QEIntelligence != nil &&
		bundle.QEIntelligence.Status == models.AgentStatusSuccess {
		confidence = bundle.QEIntelligence.Confidence
	}
	return &models.AgentResult{
		AgentID:    "analysis",
		AgentName:  "analysis-synthesis",
		Status:     models.AgentStatusSuccess,
		Confidence: confidence,
		Findings: map[string]any{
			"test_cases": len(plan.Cases),
			"components": plan.Components,
		},
	}
}

// analysisResult summarizes the analyzer synthesis, including the components
// recognized in the failure artifacts.
func analysisResult(agg *evidence.Aggregated, extractor *extract.Extractor) *models.AgentResult {
	components := map[string]bool{}
	meanConfidence := 0.0
	for _, pkg := range agg.Tests {
		meanConfidence += pkg.Validation.FinalConfidence
		for _, c := range extractor.ExtractAllFromTestFailure(
			pkg.Test.ErrorMessage, pkg.Test.StackTrace, "") {
			components[c.Name] = true
		}
	}
	if len(agg.Tests) > 0 {
		meanConfidence /= float64(len(agg.Tests))
	}

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	return &models.AgentResult{
		AgentID:    "analysis",
		AgentName:  "analysis-synthesis",
		Status:     models.AgentStatusSuccess,
		Confidence: meanConfidence,
		Findings: map[string]any{
			"total_failures":        agg.TotalFailures,
			"classification_counts": agg.ClassificationCounts,
			"needs_review":          agg.NeedsReviewCount,
			"components":            names,
		},
	}
}
