// Package cli wires the gatewarden commands together.
//
// The command tree follows dependency injection through the [App] struct:
// [NewApp] builds production collaborators from configuration, tests build
// an App with mocks, and [NewRootCommand] constructs the same Cobra tree
// either way. Commands signal exit codes through [ExitError] rather than
// calling os.Exit in RunE, so the full tree is testable in-process.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gatewarden/internal/alerts"
	"gatewarden/internal/audit"
	"gatewarden/internal/checklist"
	"gatewarden/internal/config"
	"gatewarden/internal/events"
	"gatewarden/internal/gate"
	"gatewarden/internal/memory"
	"gatewarden/internal/output"
	"gatewarden/internal/signoff"
	"gatewarden/internal/workflow"
)

// AlertStore is the alert log surface the CLI needs.
// The alerts.Store implements this interface.
type AlertStore interface {
	Load() ([]alerts.Alert, error)
	Active() ([]alerts.Alert, error)
	Create(severity, message, notificationType, agent string, actions []string) (alerts.Alert, error)
	Resolve(id string) (bool, error)
	CheckTransition(toPhase int) (alerts.TransitionCheck, error)
}

// SignoffStore is the sign-off surface the CLI needs.
// The signoff.Store implements this interface.
type SignoffStore interface {
	Check(stage, phase int, gateType string) signoff.Status
	Request(stage, phase int, gateType string) (signoff.Record, error)
	Verify(token string) (signoff.Record, error)
}

// WorkflowRunner runs the full gate workflow.
// The workflow.Orchestrator implements this interface.
type WorkflowRunner interface {
	Run(ctx context.Context, req workflow.Request) *workflow.Result
}

// App carries the collaborators every command draws on.
type App struct {
	Config    *config.Config
	Printer   *output.Printer
	Validator workflow.RecordValidator
	Alerts    AlertStore
	Signoffs  SignoffStore
	Workflow  WorkflowRunner
}

// NewApp builds a production App from configuration.
func NewApp(cfg *config.Config) *App {
	validator := gate.NewValidator(cfg.Rules, cfg.Bus.GatesDir)
	validator.SetGitVerifier(gate.ExecGitVerifier{
		Timeout: time.Duration(cfg.Checks.GitTimeoutSec) * time.Second,
	})

	alertStore := alerts.NewStore(cfg.Bus.AlertsFile)
	signoffStore := signoff.NewStore(cfg.Bus.SignoffsDir,
		time.Duration(cfg.Checks.SignoffTTLHours)*time.Hour)

	auditor := &audit.Runner{
		Command:     cfg.Checks.AuditCommand,
		Timeout:     time.Duration(cfg.Checks.AuditTimeoutSec) * time.Second,
		AuditPhases: cfg.Checks.AuditPhases,
	}

	orch := workflow.New(
		alertStore,
		checklist.NewProvider(cfg.Bus.ChecklistFile),
		checklist.NewExecutor(cfg.Checks),
		validator,
		signoffStore,
		auditor,
	)

	if len(cfg.Checks.MemoryCommand) > 0 {
		memTimeout := time.Duration(cfg.Checks.MemoryTimeoutSec) * time.Second
		orch.SetMemoryQuerier(memory.ExecQuerier{
			Command: cfg.Checks.MemoryCommand, Timeout: memTimeout,
		})
		orch.SetAnomalyScanner(memory.ExecAnomalyScanner{
			Command: cfg.Checks.MemoryCommand, Timeout: memTimeout,
		})
		orch.SetCheckpointChecker(memory.ExecCheckpointChecker{
			Command: cfg.Checks.MemoryCommand, Timeout: memTimeout,
		})
	}
	if cfg.EventSecret != "" {
		orch.SetEventLogger(events.NewLogger(cfg.Bus.EventsFile, cfg.EventSecret))
	}

	return &App{
		Config:    cfg,
		Printer:   output.NewPrinter(),
		Validator: validator,
		Alerts:    alertStore,
		Signoffs:  signoffStore,
		Workflow:  orch,
	}
}

// NewRootCommand constructs the full command tree over app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatewarden",
		Short: "Gate validation and workflow orchestration for phase transitions",
		Long: `gatewarden validates gate records and orchestrates the readiness
workflow that decides whether a development phase transition may proceed.

Exit codes:
  0  PASS     gate may proceed
  1  FAIL     validation or workflow failure
  2  PENDING  waiting on human sign-off
  3  BLOCKED  critical alerts block the transition`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(newValidateCommand(app))
	rootCmd.AddCommand(newWorkflowCommand(app))
	rootCmd.AddCommand(newAlertCommand(app))
	rootCmd.AddCommand(newSignoffCommand(app))

	return rootCmd
}

// ExecuteResult carries the outcome of one CLI run for callers that must
// not exit the process, such as tests.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig executes the CLI against an explicit configuration.
func RunWithConfig(cfg *config.Config, args []string) ExecuteResult {
	app := NewApp(cfg)
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute loads configuration, runs the CLI with os.Args, and exits.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	result := RunWithConfig(cfg, os.Args[1:])
	os.Exit(result.ExitCode)
}
