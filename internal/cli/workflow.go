package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gatewarden/internal/workflow"
)

func newWorkflowCommand(app *App) *cobra.Command {
	var (
		stage       int
		phase       int
		gateType    string
		gateFile    string
		skipSignoff bool
		skipAlerts  bool
		skipAudit   bool
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run the full gate readiness workflow",
		Long: `Run the complete gate workflow for a stage/phase transition:
alert check, checklist auto-verification, gate record validation, user
sign-off, audit, memory enrichment, anomaly scan, memory checkpoint, and
secure event logging.

The exit code carries the decision: 0 PASS, 1 FAIL, 2 PENDING, 3 BLOCKED.

Example:
  gatewarden workflow --stage 1 --phase 2 --type output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gateType != "input" && gateType != "output" {
				return fmt.Errorf("invalid gate type %q: must be input or output", gateType)
			}
			if phase < 1 {
				return fmt.Errorf("invalid phase %d: must be 1 or greater", phase)
			}

			result := app.Workflow.Run(cmd.Context(), workflow.Request{
				Stage:       stage,
				Phase:       phase,
				GateType:    gateType,
				GateFile:    gateFile,
				SkipSignoff: skipSignoff,
				SkipAlerts:  skipAlerts,
				SkipAudit:   skipAudit,
			})

			if jsonOut {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			} else {
				app.Printer.WorkflowReport(result)
			}

			if code := result.Status.ExitCode(); code != 0 {
				return NewExitError(code)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 1, "stage number")
	cmd.Flags().IntVar(&phase, "phase", 0, "phase number (required)")
	cmd.Flags().StringVar(&gateType, "type", "", "gate type: input or output (required)")
	cmd.Flags().StringVar(&gateFile, "file", "", "gate record path (validation is skipped when omitted)")
	cmd.Flags().BoolVar(&skipSignoff, "skip-signoff", false, "skip the user sign-off check")
	cmd.Flags().BoolVar(&skipAlerts, "skip-alerts", false, "skip the alert check")
	cmd.Flags().BoolVar(&skipAudit, "skip-audit", false, "skip the audit step")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the workflow result as JSON")
	cmd.MarkFlagRequired("phase")
	cmd.MarkFlagRequired("type")

	return cmd
}
