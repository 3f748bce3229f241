package cli

import (
	"context"

	"gatewarden/internal/alerts"
	"gatewarden/internal/gate"
	"gatewarden/internal/signoff"
	"gatewarden/internal/workflow"
)

// MockAlertStore is an in-memory AlertStore for testing.
type MockAlertStore struct {
	Alerts      []alerts.Alert
	Transition  alerts.TransitionCheck
	ResolvedIDs []string
	Err         error
}

func (m *MockAlertStore) Load() ([]alerts.Alert, error) {
	return m.Alerts, m.Err
}

func (m *MockAlertStore) Active() ([]alerts.Alert, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var active []alerts.Alert
	for _, a := range m.Alerts {
		if a.Status == "active" {
			active = append(active, a)
		}
	}
	return active, nil
}

func (m *MockAlertStore) Create(severity, message, notificationType, agent string, actions []string) (alerts.Alert, error) {
	if m.Err != nil {
		return alerts.Alert{}, m.Err
	}
	a := alerts.Alert{
		ID:               "notify-001",
		Severity:         severity,
		Message:          message,
		NotificationType: notificationType,
		Agent:            agent,
		SuggestedActions: actions,
		Status:           "active",
	}
	m.Alerts = append(m.Alerts, a)
	return a, nil
}

func (m *MockAlertStore) Resolve(id string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	for i := range m.Alerts {
		if m.Alerts[i].ID == id {
			m.Alerts[i].Status = "resolved"
			m.ResolvedIDs = append(m.ResolvedIDs, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAlertStore) CheckTransition(toPhase int) (alerts.TransitionCheck, error) {
	if m.Err != nil {
		return alerts.TransitionCheck{}, m.Err
	}
	return m.Transition, nil
}

// MockSignoffStore is an in-memory SignoffStore for testing.
type MockSignoffStore struct {
	Status    signoff.Status
	Requested []signoff.Record
	VerifyRec signoff.Record
	VerifyErr error
}

func (m *MockSignoffStore) Check(stage, phase int, gateType string) signoff.Status {
	return m.Status
}

func (m *MockSignoffStore) Request(stage, phase int, gateType string) (signoff.Record, error) {
	rec := signoff.Record{
		Stage:    stage,
		Phase:    phase,
		GateType: gateType,
		Status:   "PENDING",
		Token:    "test-token",
	}
	m.Requested = append(m.Requested, rec)
	return rec, nil
}

func (m *MockSignoffStore) Verify(token string) (signoff.Record, error) {
	if m.VerifyErr != nil {
		return signoff.Record{}, m.VerifyErr
	}
	return m.VerifyRec, nil
}

// MockValidator returns a canned validation result.
type MockValidator struct {
	Result *gate.Result
	Paths  []string
}

func (m *MockValidator) ValidateFile(path string) *gate.Result {
	m.Paths = append(m.Paths, path)
	if m.Result != nil {
		return m.Result
	}
	return &gate.Result{}
}

// MockWorkflowRunner returns a canned workflow result.
type MockWorkflowRunner struct {
	Result   *workflow.Result
	Requests []workflow.Request
}

func (m *MockWorkflowRunner) Run(ctx context.Context, req workflow.Request) *workflow.Result {
	m.Requests = append(m.Requests, req)
	if m.Result != nil {
		return m.Result
	}
	return &workflow.Result{Status: workflow.StatusPass, CanProceed: true}
}
