package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stolostron/qe-intelligence/pkg/agents"
	"github.com/stolostron/qe-intelligence/pkg/hub"
	"github.com/stolostron/qe-intelligence/pkg/models"
)

type agentOutcome struct {
	index  int
	result *models.AgentResult
}

// runParallel launches the roster concurrently and collects results in
// spawn order. Sibling failures never cancel each other. When the run
// context is cancelled, in-flight agents get the configured grace period;
// whatever has not finished by then is recorded as cancelled.
func (r *Runtime) runParallel(ctx context.Context, rc *agents.RunContext, roster []agents.Agent) []*models.AgentResult {
	results := make([]*models.AgentResult, len(roster))
	outcomes := make(chan agentOutcome, len(roster))

	launched := 0
	for i, ag := range roster {
		if cfg, err := r.cfg.AgentRegistry.Get(ag.ID()); err == nil && !cfg.IsEnabled() {
			results[i] = &models.AgentResult{
				AgentID:      ag.ID(),
				AgentName:    ag.Name(),
				Status:       models.AgentStatusSkipped,
				ErrorMessage: "disabled by configuration",
			}
			continue
		}
		launched++
		go func(i int, ag agents.Agent) {
			outcomes <- agentOutcome{index: i, result: r.runAgent(ctx, rc, ag)}
		}(i, ag)
	}

	done := ctx.Done()
	var graceC <-chan time.Time
	for collected := 0; collected < launched; {
		select {
		case out := <-outcomes:
			results[out.index] = out.result
			collected++
		case <-done:
			done = nil
			timer := time.NewTimer(r.cfg.Run.CancelGracePeriod)
			defer timer.Stop()
			graceC = timer.C
		case <-graceC:
			for i, ag := range roster {
				if results[i] == nil {
					results[i] = models.FailedResult(ag.ID(), ag.Name(),
						models.ErrorKindCancelled, "cancelled before completion", 0)
				}
			}
			return results
		}
	}
	return results
}

// runAgent executes one agent under its configured timeout. Errors and
// panics are converted into failed results; they never cross the phase
// boundary as errors.
func (r *Runtime) runAgent(ctx context.Context, rc *agents.RunContext, ag agents.Agent) (result *models.AgentResult) {
	started := r.now()
	logger := rc.Logger.With("agent", ag.ID())

	timeout := r.cfg.Run.AgentTimeout
	if cfg, err := r.cfg.AgentRegistry.Get(ag.ID()); err == nil {
		timeout = cfg.Timeout(timeout)
	}
	agentCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if rc.Hub != nil {
		if err := rc.Hub.UpdateAgentStatus(ag.ID(), hub.AgentActive); err != nil {
			logger.Debug("Agent status update failed", "err", err)
		}
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Agent panicked", "panic", rec)
			result = models.FailedResult(ag.ID(), ag.Name(), models.ErrorKindTransient,
				fmt.Sprintf("agent panicked: %v", rec), r.now().Sub(started))
		}
		if rc.Hub != nil {
			state := hub.AgentCompleted
			if result == nil || !result.Succeeded() {
				state = hub.AgentFailed
			}
			if err := rc.Hub.UpdateAgentStatus(ag.ID(), state); err != nil {
				logger.Debug("Agent status update failed", "err", err)
			}
		}
	}()

	res, err := ag.Execute(agentCtx, rc)
	elapsed := r.now().Sub(started)
	if err != nil {
		kind := models.ErrorKindTransient
		if errors.Is(err, context.Canceled) {
			kind = models.ErrorKindCancelled
		}
		logger.Warn("Agent failed", "err", err, "elapsed", elapsed)
		return models.FailedResult(ag.ID(), ag.Name(), kind, err.Error(), elapsed)
	}
	if res == nil {
		return models.FailedResult(ag.ID(), ag.Name(), models.ErrorKindSchema,
			"agent returned no result", elapsed)
	}
	if res.ExecutionTime == 0 {
		res.ExecutionTime = elapsed
	}
	logger.Info("Agent finished", "status", res.Status,
		"confidence", res.Confidence, "elapsed", elapsed)
	return res
}
