// Package workflow orchestrates the gate readiness evaluation.
//
// A single [Orchestrator.Run] invocation walks a fixed, ordered sequence of
// steps: alert check, checklist auto-verification, gate record validation,
// user sign-off, audit, memory enrichment, anomaly scan, memory checkpoint,
// and secure event logging. Every step always appears in the step log; a
// collaborator that is unavailable degrades its step to SKIP rather than
// omitting it, so two runs are always comparable step by step.
//
// Aggregation combines step outcomes by maximum severity
// (BLOCKED > FAIL > PENDING > PASS), and can_proceed is monotonic: once any
// step sets it false, no later step resets it.
//
// Collaborators are injected via interfaces with working defaults, in the
// style of the lifecycle executor: tests swap in mocks, production wiring
// happens in the CLI layer.
package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"gatewarden/internal/alerts"
	"gatewarden/internal/audit"
	"gatewarden/internal/checklist"
	"gatewarden/internal/events"
	"gatewarden/internal/gate"
	"gatewarden/internal/memory"
	"gatewarden/internal/signoff"
)

// Status is the overall workflow decision.
type Status string

// Overall statuses in increasing severity order.
const (
	StatusPass    Status = "PASS"
	StatusPending Status = "PENDING"
	StatusFail    Status = "FAIL"
	StatusBlocked Status = "BLOCKED"
)

// ExitCode maps the decision to the process exit code contract:
// PASS=0, PENDING=2, BLOCKED=3, anything else 1.
func (s Status) ExitCode() int {
	switch s {
	case StatusPass:
		return 0
	case StatusPending:
		return 2
	case StatusBlocked:
		return 3
	default:
		return 1
	}
}

// Per-step statuses. Steps use a wider vocabulary than the overall decision.
const (
	StepPass        = "PASS"
	StepFail        = "FAIL"
	StepWarn        = "WARN"
	StepSkip        = "SKIP"
	StepPending     = "PENDING"
	StepVerified    = "VERIFIED"
	StepNotRequired = "NOT_REQUIRED"
	StepBlocked     = "BLOCKED"
)

// Step is one stage of the workflow as it appears in the step log.
type Step struct {
	Name    string   `json:"step"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Detail  []string `json:"detail,omitempty"`
}

// Action is a remediation the operator must perform before the gate can pass.
type Action struct {
	Action    string   `json:"action"`
	Command   string   `json:"command,omitempty"`
	Message   string   `json:"message,omitempty"`
	Items     []string `json:"items,omitempty"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// Result is the complete outcome of one workflow invocation.
type Result struct {
	Stage            int                `json:"stage"`
	Phase            int                `json:"phase"`
	GateType         string             `json:"gate_type"`
	Timestamp        string             `json:"timestamp"`
	Steps            []Step             `json:"steps"`
	Status           Status             `json:"status"`
	CanProceed       bool               `json:"can_proceed"`
	ActionsRequired  []Action           `json:"actions_required"`
	ChecklistResults []checklist.Result `json:"checklist_results"`
	RelevantMemories []string           `json:"relevant_memories,omitempty"`
}

func severityOf(s Status) int {
	switch s {
	case StatusBlocked:
		return 3
	case StatusFail:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

// escalate raises the overall status to s if s is more severe. A less
// severe later step never masks an earlier decision.
func (r *Result) escalate(s Status) {
	if severityOf(s) > severityOf(r.Status) {
		r.Status = s
	}
}

// block marks the workflow as not allowed to proceed. There is deliberately
// no way to set CanProceed back to true: once false, always false.
func (r *Result) block() {
	r.CanProceed = false
}

func (r *Result) addStep(name, status, message string, detail ...string) {
	r.Steps = append(r.Steps, Step{Name: name, Status: status, Message: message, Detail: detail})
}

func (r *Result) addAction(a Action) {
	r.ActionsRequired = append(r.ActionsRequired, a)
}

// Request identifies the gate under evaluation and which checks to skip.
// The skip flags exist for testing and for out-of-band operation; skipped
// steps still appear in the log with status SKIP.
type Request struct {
	Stage       int
	Phase       int
	GateType    string // "input" or "output"
	GateFile    string
	SkipSignoff bool
	SkipAlerts  bool
	SkipAudit   bool
}

// AlertChecker answers whether active alerts permit a phase transition.
type AlertChecker interface {
	CheckTransition(toPhase int) (alerts.TransitionCheck, error)
}

// ChecklistProvider supplies the checklist for a gate, or nil when none
// is defined.
type ChecklistProvider interface {
	Get(phase int, gateType string) ([]checklist.Item, error)
}

// AutoCheckRunner executes the auto-verifiable checklist items.
type AutoCheckRunner interface {
	Execute(ctx context.Context, stage, phase int, gateType string, items []checklist.Item) []checklist.Result
}

// RecordValidator validates a gate record document.
// The gate.Validator implements this interface.
type RecordValidator interface {
	ValidateFile(path string) *gate.Result
}

// SignoffChecker reports the human sign-off state for a gate.
// The signoff.Store implements this interface.
type SignoffChecker interface {
	Check(stage, phase int, gateType string) signoff.Status
}

// Auditor decides whether a gate requires an external audit and runs it.
// The audit.Runner implements this interface.
type Auditor interface {
	Required(phase int, gateType string) bool
	Run(ctx context.Context, stage, phase int, gateType string) audit.Result
}

// EventLogger records the final decision with a tamper-evident signature.
// The events.Logger implements this interface.
type EventLogger interface {
	Log(eventType, agent string, data map[string]any) (events.Event, error)
}

// Orchestrator sequences the readiness checks into one decision.
//
// Create with [New]; the optional collaborators default to no-ops that
// record SKIP, so a minimally-wired Orchestrator still produces the full
// step log.
type Orchestrator struct {
	alerts     AlertChecker
	checklists ChecklistProvider
	checks     AutoCheckRunner
	validator  RecordValidator
	signoffs   SignoffChecker
	auditor    Auditor

	memories    memory.Querier
	anomalies   memory.AnomalyScanner
	checkpoints memory.CheckpointChecker
	eventLog    EventLogger

	agent string
	now   func() time.Time
}

// New creates an Orchestrator with the required collaborators.
//
// Memory enrichment and event logging default to absent (their steps record
// SKIP); set them with the Set methods. The audit collaborator is required
// because its NOT_REQUIRED/SKIP distinction depends on configuration.
func New(alertChecker AlertChecker, provider ChecklistProvider, checks AutoCheckRunner,
	validator RecordValidator, signoffs SignoffChecker, auditor Auditor) *Orchestrator {
	return &Orchestrator{
		alerts:      alertChecker,
		checklists:  provider,
		checks:      checks,
		validator:   validator,
		signoffs:    signoffs,
		auditor:     auditor,
		memories:    memory.Noop{},
		anomalies:   memory.Noop{},
		checkpoints: memory.Noop{},
		agent:       "PM-Architect-Agent",
		now:         time.Now,
	}
}

// SetMemoryQuerier enables memory enrichment.
func (o *Orchestrator) SetMemoryQuerier(q memory.Querier) { o.memories = q }

// SetAnomalyScanner enables the anomaly scan.
func (o *Orchestrator) SetAnomalyScanner(s memory.AnomalyScanner) { o.anomalies = s }

// SetCheckpointChecker enables the memory checkpoint requirement.
func (o *Orchestrator) SetCheckpointChecker(c memory.CheckpointChecker) { o.checkpoints = c }

// SetEventLogger enables secure event logging.
func (o *Orchestrator) SetEventLogger(l EventLogger) { o.eventLog = l }

// SetAgent sets the agent name recorded on logged events.
func (o *Orchestrator) SetAgent(agent string) { o.agent = agent }

// SetNow replaces the clock, for tests.
func (o *Orchestrator) SetNow(now func() time.Time) { o.now = now }

// Run executes the complete gate workflow and returns the decision.
//
// Run never returns an error: every failure mode is folded into the result,
// because calling automation branches on the decision and its exit code,
// not on Go errors.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Result {
	res := &Result{
		Stage:            req.Stage,
		Phase:            req.Phase,
		GateType:         req.GateType,
		Timestamp:        o.now().Format(time.RFC3339),
		Status:           StatusPass,
		CanProceed:       true,
		ActionsRequired:  []Action{},
		ChecklistResults: []checklist.Result{},
	}

	o.runAlertCheck(req, res)
	o.runChecklist(ctx, req, res)
	o.runRecordValidation(req, res)
	o.runSignoffCheck(req, res)
	o.runAudit(ctx, req, res)
	o.runMemoryQuery(ctx, req, res)
	o.runAnomalyScan(ctx, req, res)
	o.runMemoryCheckpoint(ctx, req, res)
	o.runEventLog(req, res)

	return res
}

func (o *Orchestrator) runAlertCheck(req Request, res *Result) {
	const step = "alert_check"

	if req.SkipAlerts {
		res.addStep(step, StepSkip, "Alert check skipped (testing mode)")
		return
	}

	// An output gate transitions into the next phase; an input gate is
	// entering its own phase.
	toPhase := req.Phase
	if req.GateType == "output" {
		toPhase++
	}

	check, err := o.alerts.CheckTransition(toPhase)
	if err != nil {
		res.addStep(step, StepSkip, fmt.Sprintf("Alert check unavailable: %v", err))
		return
	}

	switch {
	case !check.CanProceed:
		ids := make([]string, 0, len(check.Alerts))
		for _, a := range check.Alerts {
			ids = append(ids, a.ID)
		}
		res.addStep(step, StepBlocked, check.Message, ids...)
		res.escalate(StatusBlocked)
		res.block()
		res.addAction(Action{
			Action:  "resolve_alerts",
			Command: "gatewarden alert list",
			Message: "Resolve critical alerts before proceeding",
		})
	case check.Status == "WARNING":
		res.addStep(step, StepWarn, check.Message)
	default:
		res.addStep(step, StepPass, "No blocking alerts")
	}
}

func (o *Orchestrator) runChecklist(ctx context.Context, req Request, res *Result) {
	const step = "checklist_auto_verify"

	items, err := o.checklists.Get(req.Phase, req.GateType)
	if err != nil {
		res.addStep(step, StepSkip, fmt.Sprintf("Checklist unavailable: %v", err))
		return
	}
	if len(items) == 0 {
		res.addStep(step, StepSkip, "No checklist defined for this gate")
		return
	}

	results := o.checks.Execute(ctx, req.Stage, req.Phase, req.GateType, items)
	res.ChecklistResults = results

	var passed, failed, skipped int
	var failedIDs []string
	for _, r := range results {
		switch r.Status {
		case checklist.StatusPass:
			passed++
		case checklist.StatusFail:
			failed++
			failedIDs = append(failedIDs, r.ID)
		default:
			skipped++
		}
	}

	// Failed auto-checks inform the operator but do not gate passage on
	// their own; the checklist's role in the decision is advisory.
	if failed > 0 {
		res.addStep(step, StepFail,
			fmt.Sprintf("Auto-checks: %d passed, %d failed, %d skipped", passed, failed, skipped),
			failedIDs...)
	} else {
		res.addStep(step, StepPass,
			fmt.Sprintf("Auto-checks: %d passed, %d skipped/manual", passed, skipped))
	}

	var manual []string
	for _, item := range items {
		if !item.Auto {
			manual = append(manual, item.Desc)
		}
	}
	if len(manual) > 0 {
		res.addAction(Action{
			Action:  "manual_checklist",
			Items:   manual,
			Message: fmt.Sprintf("%d items require manual verification", len(manual)),
		})
	}
}

func (o *Orchestrator) runRecordValidation(req Request, res *Result) {
	const step = "validate_gate_record"

	if req.GateFile == "" {
		res.addStep(step, StepSkip, "No gate file provided")
		return
	}

	if _, err := os.Stat(req.GateFile); err != nil {
		res.addStep(step, StepFail, fmt.Sprintf("Gate file not found: %s", req.GateFile))
		res.escalate(StatusFail)
		res.block()
		return
	}

	validation := o.validator.ValidateFile(req.GateFile)
	if validation.Valid() {
		res.addStep(step, StepPass, "Gate record validated successfully")
		return
	}

	detail := validation.Errors
	if len(detail) > 5 {
		detail = detail[:5]
	}
	res.addStep(step, StepFail,
		fmt.Sprintf("Validation failed with %d errors", len(validation.Errors)), detail...)
	res.escalate(StatusFail)
	res.block()
}

func (o *Orchestrator) runSignoffCheck(req Request, res *Result) {
	const step = "user_signoff"

	if req.SkipSignoff {
		res.addStep(step, StepSkip, "Sign-off check skipped (testing mode)")
		return
	}

	status := o.signoffs.Check(req.Stage, req.Phase, req.GateType)
	switch {
	case !status.Required:
		res.addStep(step, StepNotRequired, status.Message)
	case status.Verified:
		res.addStep(step, StepVerified, "User sign-off confirmed")
	default:
		res.addStep(step, StepPending, status.Message)
		res.escalate(StatusPending)
		res.block()

		if status.Token != "" {
			res.addAction(Action{
				Action:    "verify_signoff",
				Command:   "gatewarden signoff verify --token " + status.Token,
				ExpiresAt: status.ExpiresAt,
			})
		} else {
			res.addAction(Action{
				Action: "request_signoff",
				Command: fmt.Sprintf("gatewarden signoff request --stage %d --phase %d --type %s",
					req.Stage, req.Phase, req.GateType),
			})
		}
	}
}

func (o *Orchestrator) runAudit(ctx context.Context, req Request, res *Result) {
	const step = "audit"

	if req.SkipAudit {
		res.addStep(step, StepSkip, "Audit skipped (testing mode)")
		return
	}
	if !o.auditor.Required(req.Phase, req.GateType) {
		res.addStep(step, StepNotRequired, "Audit not required for this gate")
		return
	}

	result := o.auditor.Run(ctx, req.Stage, req.Phase, req.GateType)
	res.addStep(step, result.Status, result.Message)

	if result.Status == StepFail {
		res.addAction(Action{
			Action:  "review_audit",
			Message: "Audit found issues requiring review",
		})
	}
}

func (o *Orchestrator) runMemoryQuery(ctx context.Context, req Request, res *Result) {
	const step = "memory_query"

	query := o.memories.Query(ctx, req.Stage, req.Phase)
	if !query.Available {
		res.addStep(step, StepSkip, query.Message)
		return
	}

	res.addStep(step, StepPass, query.Message)
	if query.Count > 0 {
		res.RelevantMemories = query.Titles
		items := query.Titles
		if len(items) > 3 {
			items = items[:3]
		}
		res.addAction(Action{
			Action:  "review_memories",
			Message: fmt.Sprintf("Review %d related memories from previous stages", query.Count),
			Items:   items,
		})
	}
}

func (o *Orchestrator) runAnomalyScan(ctx context.Context, req Request, res *Result) {
	const step = "anomaly_detection"

	findings, err := o.anomalies.Scan(ctx, req.Stage, req.Phase)
	if err != nil {
		res.addStep(step, StepSkip, fmt.Sprintf("Anomaly scan unavailable: %v", err))
		return
	}

	var critical, high []string
	for _, f := range findings {
		switch f.Severity {
		case memory.SeverityCritical:
			critical = append(critical, f.Message)
		case memory.SeverityHigh:
			high = append(high, f.Message)
		}
	}

	switch {
	case len(critical) > 0:
		detail := critical
		if len(detail) > 3 {
			detail = detail[:3]
		}
		res.addStep(step, StepFail,
			fmt.Sprintf("Detected %d CRITICAL anomalies", len(critical)), detail...)
		res.escalate(StatusFail)
		res.block()
	case len(high) > 0:
		res.addStep(step, StepWarn,
			fmt.Sprintf("Detected %d HIGH severity anomalies (review recommended)", len(high)))
	default:
		res.addStep(step, StepPass, "No critical anomalies detected")
	}
}

func (o *Orchestrator) runMemoryCheckpoint(ctx context.Context, req Request, res *Result) {
	const step = "memory_checkpoint"

	if req.GateType != "output" || req.Phase < 2 {
		res.addStep(step, StepNotRequired, "Memory checkpoint not required for this gate")
		return
	}

	check := o.checkpoints.Check(ctx, req.Stage, req.Phase, req.GateType)
	switch {
	case !check.Available:
		res.addStep(step, StepSkip, "Memory checkpoint not available")
	case check.Passed:
		res.addStep(step, StepPass,
			fmt.Sprintf("Lessons stored: %d/%d required", check.Found, check.Required))
	default:
		res.addStep(step, StepWarn,
			fmt.Sprintf("Missing lessons: %d/%d required", check.Found, check.Required),
			check.Issues...)
		res.addAction(Action{
			Action:  "store_lessons",
			Message: "Store lessons to memory before gate passage",
		})
	}
}

func (o *Orchestrator) runEventLog(req Request, res *Result) {
	const step = "secure_event_log"

	if o.eventLog == nil {
		res.addStep(step, StepSkip, "Event logging not configured")
		return
	}

	event, err := o.eventLog.Log("gate_workflow", o.agent, map[string]any{
		"stage":       req.Stage,
		"phase":       req.Phase,
		"gate_type":   req.GateType,
		"status":      string(res.Status),
		"can_proceed": res.CanProceed,
	})
	if err != nil {
		res.addStep(step, StepSkip, fmt.Sprintf("Event logging unavailable: %v", err))
		return
	}

	res.addStep(step, StepPass, "Event logged with HMAC signature", event.Signature)
}
