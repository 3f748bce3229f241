// Package output renders validation and workflow results for the terminal.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"gatewarden/internal/gate"
	"gatewarden/internal/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))
)

// Printer writes human-readable reports.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to stdout.
func NewPrinter() *Printer {
	return &Printer{w: os.Stdout}
}

// NewPrinterWithWriter returns a Printer writing to w, for tests.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// ValidationReport renders the outcome of validating a single gate record.
func (p *Printer) ValidationReport(path string, res *gate.Result) {
	fmt.Fprintln(p.w, titleStyle.Render("Gate Record Validation"))
	fmt.Fprintln(p.w, dimStyle.Render(path))
	fmt.Fprintln(p.w)

	for _, e := range res.Errors {
		fmt.Fprintf(p.w, "  %s %s\n", failStyle.Render("ERROR"), e)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(p.w, "  %s %s\n", warnStyle.Render("WARN "), w)
	}
	for _, i := range res.Info {
		fmt.Fprintf(p.w, "  %s %s\n", dimStyle.Render("INFO "), i)
	}
	if len(res.Errors)+len(res.Warnings)+len(res.Info) > 0 {
		fmt.Fprintln(p.w)
	}

	if res.Valid() {
		verdict := passStyle.Render("VALID")
		if len(res.Warnings) > 0 {
			verdict = passStyle.Render("VALID") + warnStyle.Render(fmt.Sprintf(" (%d warnings)", len(res.Warnings)))
		}
		fmt.Fprintf(p.w, "Result: %s\n", verdict)
	} else {
		fmt.Fprintf(p.w, "Result: %s (%d errors, %d warnings)\n",
			failStyle.Render("INVALID"), len(res.Errors), len(res.Warnings))
	}
}

// WorkflowReport renders the full workflow decision with its step log and
// any actions the operator still has to perform.
func (p *Printer) WorkflowReport(res *workflow.Result) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf("Gate Workflow: Stage %d Phase %d (%s)",
		res.Stage, res.Phase, res.GateType)))
	fmt.Fprintln(p.w, dimStyle.Render(res.Timestamp))
	fmt.Fprintln(p.w)

	for _, step := range res.Steps {
		fmt.Fprintf(p.w, "  %s  %s  %s\n",
			stepStyle(step.Status).Render(fmt.Sprintf("%-12s", step.Status)),
			labelStyle.Render(fmt.Sprintf("%-22s", step.Name)),
			step.Message)
		for _, d := range step.Detail {
			fmt.Fprintf(p.w, "      %s\n", dimStyle.Render(d))
		}
	}

	if len(res.ActionsRequired) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, warnStyle.Render("Actions required:"))
		for _, a := range res.ActionsRequired {
			if a.Message != "" {
				fmt.Fprintf(p.w, "  - %s: %s\n", a.Action, a.Message)
			} else {
				fmt.Fprintf(p.w, "  - %s\n", a.Action)
			}
			if a.Command != "" {
				fmt.Fprintf(p.w, "      %s\n", dimStyle.Render(a.Command))
			}
			for _, item := range a.Items {
				fmt.Fprintf(p.w, "      %s\n", dimStyle.Render("* "+item))
			}
			if a.ExpiresAt != "" {
				fmt.Fprintf(p.w, "      %s\n", dimStyle.Render("expires "+a.ExpiresAt))
			}
		}
	}

	fmt.Fprintln(p.w)
	verdict := string(res.Status)
	fmt.Fprintf(p.w, "Decision: %s (can_proceed=%t)\n",
		statusStyle(res.Status).Render(verdict), res.CanProceed)
}

func stepStyle(status string) lipgloss.Style {
	switch status {
	case workflow.StepPass, workflow.StepVerified:
		return passStyle
	case workflow.StepFail, workflow.StepBlocked:
		return failStyle
	case workflow.StepWarn, workflow.StepPending:
		return warnStyle
	default:
		return dimStyle
	}
}

func statusStyle(s workflow.Status) lipgloss.Style {
	switch s {
	case workflow.StatusPass:
		return passStyle
	case workflow.StatusPending:
		return warnStyle
	default:
		return failStyle
	}
}
