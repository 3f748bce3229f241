package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecAnomalyScanner runs the memory service's anomaly detection through
// its CLI and parses the JSON findings it prints.
type ExecAnomalyScanner struct {
	Command []string
	Timeout time.Duration
	Dir     string
}

// Scan implements [AnomalyScanner].
func (s ExecAnomalyScanner) Scan(ctx context.Context, stage, phase int) ([]Finding, error) {
	if len(s.Command) == 0 {
		return nil, fmt.Errorf("anomaly scanner not configured")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, s.Command[1:]...),
		"anomaly-scan",
		"--stage", fmt.Sprintf("%d", stage),
		"--phase", fmt.Sprintf("%d", phase),
		"--json",
	)
	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	cmd.Dir = s.Dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("anomaly scan failed: %w", err)
	}

	var payload struct {
		Findings []Finding `json:"findings"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		// Some service versions print a bare findings array.
		var findings []Finding
		if err2 := json.Unmarshal(out, &findings); err2 != nil {
			return nil, fmt.Errorf("anomaly scan output not parseable: %w", err)
		}
		return findings, nil
	}
	return payload.Findings, nil
}

// ExecCheckpointChecker verifies that lessons were stored for a phase by
// searching the memory service for lesson entries.
type ExecCheckpointChecker struct {
	Command []string
	Timeout time.Duration
	Dir     string

	// RequiredLessons is the minimum lesson count per phase. Zero means 1.
	RequiredLessons int
}

// Check implements [CheckpointChecker].
func (c ExecCheckpointChecker) Check(ctx context.Context, stage, phase int, gateType string) CheckpointResult {
	if len(c.Command) == 0 {
		return CheckpointResult{Available: false}
	}

	required := c.RequiredLessons
	if required <= 0 {
		required = 1
	}

	q := ExecQuerier{Command: c.Command, Timeout: c.Timeout, Dir: c.Dir}
	result := q.Query(ctx, stage, phase)
	if !result.Available {
		return CheckpointResult{Available: false}
	}

	// Lessons are memories whose titles carry the lesson marker; the service
	// tags them on store, so title matching is sufficient here.
	found := 0
	for _, title := range result.Titles {
		if strings.Contains(strings.ToLower(title), "lesson") {
			found++
		}
	}

	res := CheckpointResult{
		Available: true,
		Found:     found,
		Required:  required,
		Passed:    found >= required,
	}
	if !res.Passed {
		res.Issues = append(res.Issues,
			fmt.Sprintf("Expected %d lesson(s) for phase %d, found %d", required, phase, found))
	}
	return res
}
