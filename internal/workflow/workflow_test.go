package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewarden/internal/alerts"
	"gatewarden/internal/audit"
	"gatewarden/internal/checklist"
	"gatewarden/internal/events"
	"gatewarden/internal/gate"
	"gatewarden/internal/memory"
	"gatewarden/internal/signoff"
)

type mockAlerts struct {
	check alerts.TransitionCheck
	err   error
}

func (m mockAlerts) CheckTransition(toPhase int) (alerts.TransitionCheck, error) {
	return m.check, m.err
}

type mockChecklists struct {
	items []checklist.Item
	err   error
}

func (m mockChecklists) Get(phase int, gateType string) ([]checklist.Item, error) {
	return m.items, m.err
}

type mockChecks struct {
	results []checklist.Result
}

func (m mockChecks) Execute(ctx context.Context, stage, phase int, gateType string, items []checklist.Item) []checklist.Result {
	return m.results
}

type mockValidator struct {
	result *gate.Result
}

func (m mockValidator) ValidateFile(path string) *gate.Result {
	if m.result != nil {
		return m.result
	}
	return &gate.Result{}
}

type mockSignoffs struct {
	status signoff.Status
}

func (m mockSignoffs) Check(stage, phase int, gateType string) signoff.Status {
	return m.status
}

type mockAuditor struct {
	required bool
	result   audit.Result
}

func (m mockAuditor) Required(phase int, gateType string) bool { return m.required }
func (m mockAuditor) Run(ctx context.Context, stage, phase int, gateType string) audit.Result {
	return m.result
}

type mockScanner struct {
	findings []memory.Finding
	err      error
}

func (m mockScanner) Scan(ctx context.Context, stage, phase int) ([]memory.Finding, error) {
	return m.findings, m.err
}

type mockQuerier struct {
	result memory.QueryResult
}

func (m mockQuerier) Query(ctx context.Context, stage, phase int) memory.QueryResult {
	return m.result
}

type mockCheckpoints struct {
	result memory.CheckpointResult
}

func (m mockCheckpoints) Check(ctx context.Context, stage, phase int, gateType string) memory.CheckpointResult {
	return m.result
}

// newTestOrchestrator returns an Orchestrator whose collaborators all report
// success, plus a gate file on disk that validates clean.
func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()

	gateFile := filepath.Join(t.TempDir(), "gate.md")
	require.NoError(t, os.WriteFile(gateFile, []byte("# gate"), 0644))

	o := New(
		mockAlerts{check: alerts.TransitionCheck{CanProceed: true, Status: "OK"}},
		mockChecklists{},
		mockChecks{},
		mockValidator{},
		mockSignoffs{status: signoff.Status{Required: false, Verified: true, Message: "User sign-off not required for this gate"}},
		mockAuditor{},
	)
	o.SetNow(func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	})
	return o, gateFile
}

func stepByName(t *testing.T, res *Result, name string) Step {
	t.Helper()
	for _, s := range res.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %q not found in %v", name, res.Steps)
	return Step{}
}

func TestRun_AllClearPasses(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StatusPass, res.Status)
	assert.True(t, res.CanProceed)
	assert.Equal(t, 0, res.Status.ExitCode())
}

func TestRun_StepOrderIsFixed(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 3, GateType: "output", GateFile: gateFile,
		SkipSignoff: true, SkipAlerts: true, SkipAudit: true,
	})

	var names []string
	for _, s := range res.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"alert_check",
		"checklist_auto_verify",
		"validate_gate_record",
		"user_signoff",
		"audit",
		"memory_query",
		"anomaly_detection",
		"memory_checkpoint",
		"secure_event_log",
	}, names, "every step appears exactly once, in order, even when skipped")
}

func TestRun_CriticalAlertBlocks(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.alerts = mockAlerts{check: alerts.TransitionCheck{
		CanProceed: false,
		Status:     "BLOCKED",
		Message:    "Cannot proceed to Phase 3",
		Alerts:     []alerts.Alert{{ID: "notify-001", Severity: "critical"}},
	}}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "output", GateFile: gateFile,
	})

	assert.Equal(t, StatusBlocked, res.Status)
	assert.False(t, res.CanProceed)
	assert.Equal(t, 3, res.Status.ExitCode())

	step := stepByName(t, res, "alert_check")
	assert.Equal(t, StepBlocked, step.Status)
	assert.Contains(t, step.Detail, "notify-001")

	require.NotEmpty(t, res.ActionsRequired)
	assert.Equal(t, "resolve_alerts", res.ActionsRequired[0].Action)
}

func TestRun_BlockedIsNeverReset(t *testing.T) {
	// Every later step succeeds, but the critical alert decided the outcome.
	o, gateFile := newTestOrchestrator(t)
	o.alerts = mockAlerts{check: alerts.TransitionCheck{
		CanProceed: false, Status: "BLOCKED", Message: "blocked",
	}}
	o.SetMemoryQuerier(mockQuerier{result: memory.QueryResult{Available: true, Message: "No related memories found"}})
	o.SetAnomalyScanner(mockScanner{})

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StatusBlocked, res.Status, "PASS steps must not mask BLOCKED")
	assert.False(t, res.CanProceed, "can_proceed is monotonic")
}

func TestRun_ValidationFailure(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.validator = mockValidator{result: &gate.Result{
		Errors: []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7"},
	}}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StatusFail, res.Status)
	assert.False(t, res.CanProceed)
	assert.Equal(t, 1, res.Status.ExitCode())

	step := stepByName(t, res, "validate_gate_record")
	assert.Equal(t, StepFail, step.Status)
	assert.Equal(t, "Validation failed with 7 errors", step.Message)
	assert.Len(t, step.Detail, 5, "detail is capped at the first five errors")
}

func TestRun_MissingGateFile(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input",
		GateFile: filepath.Join(t.TempDir(), "missing.md"),
	})

	assert.Equal(t, StatusFail, res.Status)
	assert.False(t, res.CanProceed)

	step := stepByName(t, res, "validate_gate_record")
	assert.Contains(t, step.Message, "Gate file not found")
}

func TestRun_NoGateFileSkipsValidation(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	res := o.Run(context.Background(), Request{Stage: 1, Phase: 2, GateType: "input"})

	step := stepByName(t, res, "validate_gate_record")
	assert.Equal(t, StepSkip, step.Status)
	assert.Equal(t, StatusPass, res.Status)
}

func TestRun_PendingSignoff(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.signoffs = mockSignoffs{status: signoff.Status{
		Required:  true,
		Token:     "tok-123",
		ExpiresAt: "2026-03-02T09:00:00Z",
		Message:   "User sign-off pending verification",
	}}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 3, GateType: "output", GateFile: gateFile,
	})

	assert.Equal(t, StatusPending, res.Status)
	assert.False(t, res.CanProceed)
	assert.Equal(t, 2, res.Status.ExitCode())

	require.NotEmpty(t, res.ActionsRequired)
	action := res.ActionsRequired[0]
	assert.Equal(t, "verify_signoff", action.Action)
	assert.Contains(t, action.Command, "tok-123")
}

func TestRun_UnrequestedSignoffSuggestsRequest(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.signoffs = mockSignoffs{status: signoff.Status{
		Required: true,
		Message:  "User sign-off required but not requested yet",
	}}

	res := o.Run(context.Background(), Request{
		Stage: 2, Phase: 4, GateType: "output", GateFile: gateFile,
	})

	assert.Equal(t, StatusPending, res.Status)
	require.NotEmpty(t, res.ActionsRequired)
	action := res.ActionsRequired[0]
	assert.Equal(t, "request_signoff", action.Action)
	assert.Contains(t, action.Command, "--stage 2 --phase 4 --type output")
}

func TestRun_SkipFlags(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	// Collaborators that would block or go pending if consulted.
	o.alerts = mockAlerts{check: alerts.TransitionCheck{CanProceed: false, Status: "BLOCKED"}}
	o.signoffs = mockSignoffs{status: signoff.Status{Required: true, Message: "pending"}}
	o.auditor = mockAuditor{required: true, result: audit.Result{Status: "WARN", Message: "issues"}}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 3, GateType: "output", GateFile: gateFile,
		SkipAlerts: true, SkipSignoff: true, SkipAudit: true,
	})

	assert.Equal(t, StatusPass, res.Status)
	assert.True(t, res.CanProceed)
	assert.Equal(t, StepSkip, stepByName(t, res, "alert_check").Status)
	assert.Equal(t, StepSkip, stepByName(t, res, "user_signoff").Status)
	assert.Equal(t, StepSkip, stepByName(t, res, "audit").Status)
}

func TestRun_ChecklistFailuresDoNotGate(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.checklists = mockChecklists{items: []checklist.Item{
		{ID: "a", Desc: "auto check", Auto: true, Check: "typecheck_passes"},
		{ID: "b", Desc: "manual review", Auto: false},
	}}
	o.checks = mockChecks{results: []checklist.Result{
		{ID: "a", Status: checklist.StatusFail, Message: "build failed"},
	}}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	step := stepByName(t, res, "checklist_auto_verify")
	assert.Equal(t, StepFail, step.Status)
	assert.Contains(t, step.Detail, "a")

	assert.Equal(t, StatusPass, res.Status, "checklist results are advisory")
	assert.True(t, res.CanProceed)

	// The manual item surfaces as a required action.
	var manualAction *Action
	for i := range res.ActionsRequired {
		if res.ActionsRequired[i].Action == "manual_checklist" {
			manualAction = &res.ActionsRequired[i]
		}
	}
	require.NotNil(t, manualAction)
	assert.Equal(t, []string{"manual review"}, manualAction.Items)
}

func TestRun_EmptyChecklistSkips(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 1, GateType: "input", GateFile: gateFile,
	})

	step := stepByName(t, res, "checklist_auto_verify")
	assert.Equal(t, StepSkip, step.Status)
	assert.Equal(t, "No checklist defined for this gate", step.Message)
}

func TestRun_AuditStates(t *testing.T) {
	t.Run("not required", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)
		o.auditor = mockAuditor{required: false}

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
		})
		assert.Equal(t, StepNotRequired, stepByName(t, res, "audit").Status)
	})

	t.Run("warn does not gate", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)
		o.auditor = mockAuditor{required: true, result: audit.Result{
			Status: "WARN", Message: "Audit flagged 2 findings",
		}}

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 3, GateType: "output", GateFile: gateFile,
		})

		assert.Equal(t, "WARN", stepByName(t, res, "audit").Status)
		assert.Equal(t, StatusPass, res.Status)
	})
}

func TestRun_CriticalAnomaliesFail(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.SetAnomalyScanner(mockScanner{findings: []memory.Finding{
		{Severity: memory.SeverityCritical, Message: "duplicate gate record"},
		{Severity: memory.SeverityHigh, Message: "slow agent"},
	}})

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	step := stepByName(t, res, "anomaly_detection")
	assert.Equal(t, StepFail, step.Status)
	assert.Contains(t, step.Message, "1 CRITICAL")
	assert.Equal(t, StatusFail, res.Status)
	assert.False(t, res.CanProceed)
}

func TestRun_HighAnomaliesWarn(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.SetAnomalyScanner(mockScanner{findings: []memory.Finding{
		{Severity: memory.SeverityHigh, Message: "slow agent"},
	}})

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StepWarn, stepByName(t, res, "anomaly_detection").Status)
	assert.Equal(t, StatusPass, res.Status)
}

func TestRun_MemoryQueryEnrichment(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.SetMemoryQuerier(mockQuerier{result: memory.QueryResult{
		Available: true,
		Count:     4,
		Titles:    []string{"t1", "t2", "t3", "t4"},
		Message:   "Found 4 related memories",
	}})

	res := o.Run(context.Background(), Request{
		Stage: 2, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StepPass, stepByName(t, res, "memory_query").Status)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, res.RelevantMemories)

	var reviewAction *Action
	for i := range res.ActionsRequired {
		if res.ActionsRequired[i].Action == "review_memories" {
			reviewAction = &res.ActionsRequired[i]
		}
	}
	require.NotNil(t, reviewAction)
	assert.Len(t, reviewAction.Items, 3, "action lists at most three titles")
}

func TestRun_MemoryCheckpoint(t *testing.T) {
	t.Run("not required below phase 2", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 1, GateType: "output", GateFile: gateFile,
		})
		assert.Equal(t, StepNotRequired, stepByName(t, res, "memory_checkpoint").Status)
	})

	t.Run("not required for input gates", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 4, GateType: "input", GateFile: gateFile,
		})
		assert.Equal(t, StepNotRequired, stepByName(t, res, "memory_checkpoint").Status)
	})

	t.Run("missing lessons warn with action", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)
		o.SetCheckpointChecker(mockCheckpoints{result: memory.CheckpointResult{
			Available: true, Passed: false, Found: 0, Required: 1,
			Issues: []string{"Expected 1 lesson(s) for phase 3, found 0"},
		}})

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 3, GateType: "output", GateFile: gateFile,
		})

		step := stepByName(t, res, "memory_checkpoint")
		assert.Equal(t, StepWarn, step.Status)
		assert.Equal(t, StatusPass, res.Status, "missing lessons warn but do not gate")

		var found bool
		for _, a := range res.ActionsRequired {
			if a.Action == "store_lessons" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestRun_EventLogging(t *testing.T) {
	t.Run("not configured records skip", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
		})
		assert.Equal(t, StepSkip, stepByName(t, res, "secure_event_log").Status)
	})

	t.Run("signed event records pass", func(t *testing.T) {
		o, gateFile := newTestOrchestrator(t)
		logger := events.NewLogger(filepath.Join(t.TempDir(), "events.jsonl"), "secret")
		o.SetEventLogger(logger)

		res := o.Run(context.Background(), Request{
			Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
		})

		step := stepByName(t, res, "secure_event_log")
		assert.Equal(t, StepPass, step.Status)
		require.Len(t, step.Detail, 1, "step detail carries the signature")
		assert.NotEmpty(t, step.Detail[0])
	})
}

func TestStatus_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, StatusPass.ExitCode())
	assert.Equal(t, 1, StatusFail.ExitCode())
	assert.Equal(t, 2, StatusPending.ExitCode())
	assert.Equal(t, 3, StatusBlocked.ExitCode())
}

func TestRun_AlertCheckerUnavailableSkips(t *testing.T) {
	o, gateFile := newTestOrchestrator(t)
	o.alerts = mockAlerts{err: os.ErrPermission}

	res := o.Run(context.Background(), Request{
		Stage: 1, Phase: 2, GateType: "input", GateFile: gateFile,
	})

	assert.Equal(t, StepSkip, stepByName(t, res, "alert_check").Status)
	assert.Equal(t, StatusPass, res.Status)
}
