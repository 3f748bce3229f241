package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"gatewarden/internal/gate"
	"gatewarden/internal/workflow"
)

func TestValidationReport(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		buf := &bytes.Buffer{}
		p := NewPrinterWithWriter(buf)

		p.ValidationReport("gate.md", &gate.Result{})

		out := buf.String()
		assert.Contains(t, out, "gate.md")
		assert.Contains(t, out, "VALID")
		assert.NotContains(t, out, "INVALID")
	})

	t.Run("invalid record lists findings", func(t *testing.T) {
		buf := &bytes.Buffer{}
		p := NewPrinterWithWriter(buf)

		p.ValidationReport("gate.md", &gate.Result{
			Errors:   []string{"Missing required section: 'Section 6: Gate Decision'"},
			Warnings: []string{"No git checkpoint reference found"},
			Info:     []string{"Git checkpoint referenced: a1b2c3d"},
		})

		out := buf.String()
		assert.Contains(t, out, "ERROR")
		assert.Contains(t, out, "Missing required section")
		assert.Contains(t, out, "WARN")
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "INVALID")
		assert.Contains(t, out, "(1 errors, 1 warnings)")
	})
}

func TestWorkflowReport(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.WorkflowReport(&workflow.Result{
		Stage:    1,
		Phase:    3,
		GateType: "output",
		Steps: []workflow.Step{
			{Name: "alert_check", Status: workflow.StepPass, Message: "No blocking alerts"},
			{
				Name:    "validate_gate_record",
				Status:  workflow.StepFail,
				Message: "Validation failed with 2 errors",
				Detail:  []string{"Missing field: Date", "Missing field: Status"},
			},
		},
		Status:     workflow.StatusFail,
		CanProceed: false,
		ActionsRequired: []workflow.Action{
			{
				Action:  "request_signoff",
				Command: "gatewarden signoff request --stage 1 --phase 3 --type output",
				Message: "Request a user sign-off for this gate",
			},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Stage 1 Phase 3 (output)")
	assert.Contains(t, out, "alert_check")
	assert.Contains(t, out, "Missing field: Date")
	assert.Contains(t, out, "Actions required:")
	assert.Contains(t, out, "request_signoff")
	assert.Contains(t, out, "signoff request --stage 1 --phase 3")
	assert.Contains(t, out, "can_proceed=false")
}
