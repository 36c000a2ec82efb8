package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

func newGenerateCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <jira-ticket>",
		Short: "Generate test cases from a JIRA ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, *configDir, models.ToolTestGenerator, args[0])
		},
	}
}

func newAnalyzeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <jenkins-build-url>",
		Short: "Analyze a Jenkins pipeline failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, *configDir, models.ToolPipelineAnalyzer, args[0])
		},
	}
}

// executeRun drives one full workflow and maps its outcome to the process
// exit code: 0 completed, 1 fatal or failed, 130 interrupted.
func executeRun(cmd *cobra.Command, configDir string, tool models.Tool, input string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, coordinator, store, err := buildRuntime(ctx, configDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = coordinator.Close()
		_ = store.Close()
	}()

	result, runErr := runtime.ExecuteFullWorkflow(ctx, tool, input)
	printSummary(cmd, result)

	switch {
	case result.Status == models.RunStatusCancelled:
		return &exitError{code: exitCancelled, msg: "run interrupted"}
	case runErr != nil:
		return runErr
	case !result.Success:
		return &exitError{code: 1, msg: result.ErrorMessage}
	}
	return nil
}

func printSummary(cmd *cobra.Command, result *models.WorkflowResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", result.RunID)
	fmt.Fprintf(out, "Status:   %s (success=%v)\n", result.Status, result.Success)
	if result.RunDir != "" {
		fmt.Fprintf(out, "Artifacts: %s\n", result.RunDir)
	}
	for _, phase := range result.Phases {
		fmt.Fprintf(out, "  %-10s %-25s %s\n", phase.PhaseID, phase.PhaseName, phase.Status)
	}
	if result.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", result.ErrorMessage)
	}
}
