// Package memory defines the optional enrichment collaborators consulted at
// gate time: the memory service, the anomaly scanner, and the memory
// checkpoint policy.
//
// Each capability is an explicit interface with a no-op default, so
// "collaborator absent" is a first-class configuration the orchestrator and
// its tests can exercise, not an implicit control-flow branch. All
// implementations are read-only from the workflow's point of view.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Severity levels for anomaly findings.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// QueryResult is the outcome of a memory search for a gate.
type QueryResult struct {
	// Available is false when the service could not be consulted at all.
	Available bool

	// Count is the number of related memories found.
	Count int

	// Titles are up to five memory titles, for display.
	Titles []string

	// Message is a human-readable summary.
	Message string
}

// Finding is one anomaly reported by the scanner.
type Finding struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CheckpointResult reports whether enough lessons were stored for a phase.
type CheckpointResult struct {
	Available bool
	Passed    bool
	Found     int
	Required  int
	Issues    []string
}

// Querier searches stored memories relevant to a gate.
type Querier interface {
	Query(ctx context.Context, stage, phase int) QueryResult
}

// AnomalyScanner scans a stage/phase for coordination anomalies.
//
// A nil finding slice with a nil error means a clean scan. An error means
// the scanner itself was unavailable; the caller records SKIP.
type AnomalyScanner interface {
	Scan(ctx context.Context, stage, phase int) ([]Finding, error)
}

// CheckpointChecker verifies the lessons-stored requirement for output gates.
type CheckpointChecker interface {
	Check(ctx context.Context, stage, phase int, gateType string) CheckpointResult
}

// Noop implements all three capabilities as "service absent".
type Noop struct{}

// Query implements [Querier].
func (Noop) Query(context.Context, int, int) QueryResult {
	return QueryResult{Available: false, Message: "Memory service not configured"}
}

// Scan implements [AnomalyScanner].
func (Noop) Scan(context.Context, int, int) ([]Finding, error) {
	return nil, fmt.Errorf("anomaly scanner not configured")
}

// Check implements [CheckpointChecker].
func (Noop) Check(context.Context, int, int, string) CheckpointResult {
	return CheckpointResult{Available: false}
}

var foundCountRe = regexp.MustCompile(`Found (\d+) memories`)

// ExecQuerier consults the memory service through its CLI.
//
// The command prefix typically shells into the service container. Output is
// parsed for a "Found N memories" line followed by bracketed titles.
type ExecQuerier struct {
	// Command is the CLI prefix; search arguments are appended.
	Command []string

	// Timeout bounds one query.
	Timeout time.Duration

	// Dir is the working directory for the subprocess.
	Dir string
}

// Query implements [Querier].
func (q ExecQuerier) Query(ctx context.Context, stage, phase int) QueryResult {
	if len(q.Command) == 0 {
		return QueryResult{Available: false, Message: "Memory service not configured"}
	}

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, q.Command[1:]...),
		"search", fmt.Sprintf("stage %d phase %d", stage, phase),
		"--min-similarity", "0.2",
		"--top-k", "5",
	)
	cmd := exec.CommandContext(ctx, q.Command[0], args...)
	cmd.Dir = q.Dir
	out, err := cmd.Output()

	if ctx.Err() == context.DeadlineExceeded {
		return QueryResult{Available: false, Message: "Memory query timed out"}
	}
	if err != nil {
		return QueryResult{Available: false, Message: "Memory query failed (service may be down)"}
	}

	output := string(out)
	count := 0
	if m := foundCountRe.FindStringSubmatch(output); m != nil {
		count, _ = strconv.Atoi(m[1])
	}
	if count == 0 {
		return QueryResult{Available: true, Message: "No related memories found"}
	}

	var titles []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "[") {
			continue
		}
		if _, title, ok := strings.Cut(line, "]"); ok {
			title = strings.TrimSpace(title)
			if title != "" {
				if len(title) > 80 {
					title = title[:80]
				}
				titles = append(titles, title)
			}
		}
		if len(titles) == 5 {
			break
		}
	}

	return QueryResult{
		Available: true,
		Count:     count,
		Titles:    titles,
		Message:   fmt.Sprintf("Found %d related memories", count),
	}
}
