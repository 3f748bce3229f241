// Package audit invokes the external deep-audit tool for gate passage.
//
// The audit is an outside opinion on a completed phase: an external process
// that inspects the work and reports findings as JSON on stdout. It is
// advisory infrastructure, so every failure mode short of "the audit ran and
// returned findings" degrades to WARN or SKIP rather than failing the gate.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Result statuses.
const (
	StatusPass = "PASS"
	StatusWarn = "WARN"
	StatusSkip = "SKIP"
)

// Result is the outcome of one audit invocation.
type Result struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Findings json.RawMessage `json:"findings,omitempty"`
}

// Runner executes the audit tool as a subprocess with a bounded timeout.
type Runner struct {
	// Command is the audit tool invocation prefix. Stage, phase, type,
	// and --json are appended. Empty means no tool is configured.
	Command []string

	// Timeout bounds the subprocess.
	Timeout time.Duration

	// Dir is the working directory for the subprocess.
	Dir string

	// AuditPhases are the phases whose output gates require an audit.
	AuditPhases []int
}

// Required reports whether (phase, gateType) calls for an audit: output
// gates at the configured phase boundaries.
func (r *Runner) Required(phase int, gateType string) bool {
	if gateType != "output" {
		return false
	}
	for _, p := range r.AuditPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// Run invokes the audit tool for a gate.
//
// A missing tool, a timeout, or a non-zero exit never returns an error:
// the step result carries SKIP or WARN instead, because the audit must not
// block progress on infrastructure flakiness.
func (r *Runner) Run(ctx context.Context, stage, phase int, gateType string) Result {
	if len(r.Command) == 0 {
		return Result{Status: StatusSkip, Message: "No audit tool configured"}
	}

	if _, err := exec.LookPath(r.Command[0]); err != nil {
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Audit tool not found: %s", r.Command[0])}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.Command[1:]...),
		"--stage", strconv.Itoa(stage),
		"--phase", strconv.Itoa(phase),
		"--type", gateType,
		"--json",
	)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Status: StatusSkip, Message: "Audit timed out"}
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Result{
				Status:  StatusWarn,
				Message: fmt.Sprintf("Audit returned non-zero exit: %d", exitErr.ExitCode()),
			}
		}
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Audit failed to run: %v", err)}
	}

	var findings json.RawMessage
	if json.Valid(stdout.Bytes()) {
		findings = json.RawMessage(stdout.Bytes())
		return Result{Status: StatusPass, Message: "Audit completed", Findings: findings}
	}
	return Result{Status: StatusPass, Message: "Audit completed (non-JSON output)"}
}
