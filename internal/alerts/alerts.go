// Package alerts stores user alerts and answers phase-transition checks.
//
// Alerts live in an append-only JSON Lines file. Creating an alert appends a
// line; resolving rewrites the file atomically (temp file + rename) so a
// concurrent reader never observes a half-written log. The transition check
// is the gate workflow's first step: critical alerts block, high-severity
// alerts warn, everything else is informational.
package alerts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Severity levels in decreasing order of urgency.
var SeverityLevels = []string{"critical", "high", "medium", "low"}

// NotificationTypes classify what an alert is about.
var NotificationTypes = []string{"blocker_alert", "service_health", "security", "performance", "tech_debt"}

// Alert is one entry in the alert log.
type Alert struct {
	ID               string   `json:"id"`
	Timestamp        string   `json:"timestamp"`
	Severity         string   `json:"severity"`
	NotificationType string   `json:"notification_type"`
	Message          string   `json:"message"`
	SuggestedActions []string `json:"suggested_actions"`
	Agent            string   `json:"agent"`
	Status           string   `json:"status"`
	ResolvedAt       string   `json:"resolved_at,omitempty"`
}

// TransitionCheck is the outcome of evaluating active alerts against a
// pending phase transition.
type TransitionCheck struct {
	CanProceed           bool    `json:"can_proceed"`
	Status               string  `json:"status"`
	Message              string  `json:"message"`
	Reason               string  `json:"reason,omitempty"`
	Alerts               []Alert `json:"alerts"`
	RequiresConfirmation bool    `json:"requires_confirmation,omitempty"`
}

// Store manages the alert log file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a Store for the given alerts file path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// SetNow replaces the clock, for tests.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

// Load reads every alert in the log. A missing file yields an empty list.
// Unparseable lines are skipped, matching append-only log conventions.
func (s *Store) Load() ([]Alert, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open alerts log: %w", err)
	}
	defer f.Close()

	var alerts []Alert
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a Alert
		if err := json.Unmarshal(line, &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts log: %w", err)
	}
	return alerts, nil
}

// Active returns only unresolved alerts.
func (s *Store) Active() ([]Alert, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var active []Alert
	for _, a := range all {
		if a.Status == "active" {
			active = append(active, a)
		}
	}
	return active, nil
}

// Create appends a new active alert and returns it with its assigned ID.
func (s *Store) Create(severity, message, notificationType, agent string, actions []string) (Alert, error) {
	existing, err := s.Load()
	if err != nil {
		return Alert{}, err
	}

	if notificationType == "" {
		notificationType = "blocker_alert"
	}
	if actions == nil {
		actions = []string{}
	}

	alert := Alert{
		ID:               fmt.Sprintf("notify-%03d", len(existing)+1),
		Timestamp:        s.now().Format(time.RFC3339),
		Severity:         severity,
		NotificationType: notificationType,
		Message:          message,
		SuggestedActions: actions,
		Agent:            agent,
		Status:           "active",
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return Alert{}, fmt.Errorf("failed to create alerts directory: %w", err)
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return Alert{}, fmt.Errorf("failed to marshal alert: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Alert{}, fmt.Errorf("failed to open alerts log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return Alert{}, fmt.Errorf("failed to append alert: %w", err)
	}

	return alert, nil
}

// Resolve marks the alert with the given ID as resolved.
//
// The whole log is rewritten to a temp file and renamed into place, so
// concurrent readers see either the old or the new log, never a torn one.
func (s *Store) Resolve(id string) (bool, error) {
	alerts, err := s.Load()
	if err != nil {
		return false, err
	}

	updated := false
	for i := range alerts {
		if alerts[i].ID == id {
			alerts[i].Status = "resolved"
			alerts[i].ResolvedAt = s.now().Format(time.RFC3339)
			updated = true
			break
		}
	}
	if !updated {
		return false, nil
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to rewrite alerts log: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return false, fmt.Errorf("failed to marshal alert: %w", err)
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to rewrite alerts log: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to rewrite alerts log: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to rewrite alerts log: %w", err)
	}

	return true, nil
}

// CheckTransition evaluates active alerts against a move to toPhase.
//
// Critical alerts block. High-severity alerts allow proceeding but require
// confirmation. Medium/low are informational only.
func (s *Store) CheckTransition(toPhase int) (TransitionCheck, error) {
	active, err := s.Active()
	if err != nil {
		return TransitionCheck{}, err
	}

	var critical, high, mediumLow []Alert
	for _, a := range active {
		switch a.Severity {
		case "critical":
			critical = append(critical, a)
		case "high":
			high = append(high, a)
		default:
			mediumLow = append(mediumLow, a)
		}
	}

	switch {
	case len(critical) > 0:
		return TransitionCheck{
			CanProceed: false,
			Status:     "BLOCKED",
			Message:    fmt.Sprintf("Cannot proceed to Phase %d", toPhase),
			Reason:     fmt.Sprintf("%d critical issue(s) must be resolved first", len(critical)),
			Alerts:     critical,
		}, nil
	case len(high) > 0:
		return TransitionCheck{
			CanProceed:           true,
			Status:               "WARNING",
			Message:              fmt.Sprintf("Proceed to Phase %d with caution", toPhase),
			Reason:               fmt.Sprintf("%d high-priority issue(s) detected", len(high)),
			Alerts:               high,
			RequiresConfirmation: true,
		}, nil
	case len(mediumLow) > 0:
		return TransitionCheck{
			CanProceed: true,
			Status:     "INFO",
			Message:    fmt.Sprintf("Proceeding to Phase %d", toPhase),
			Reason:     fmt.Sprintf("FYI: %d medium/low priority issue(s)", len(mediumLow)),
			Alerts:     mediumLow,
		}, nil
	}

	return TransitionCheck{
		CanProceed: true,
		Status:     "OK",
		Message:    fmt.Sprintf("Clear to proceed to Phase %d", toPhase),
		Alerts:     []Alert{},
	}, nil
}
