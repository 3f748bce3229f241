// Package checklist supplies per-gate readiness checklists and executes the
// automatable subset.
//
// Checklists are keyed by phase and gate type. Built-in defaults cover the
// standard phases and can be replaced wholesale by a YAML checklist file.
// Items marked auto carry a check identifier that [Executor] maps to a
// concrete probe; identifiers without a probe yield SKIP, never an error,
// so an outdated checklist file cannot break the workflow.
package checklist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Check result statuses.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusWarn = "WARN"
	StatusSkip = "SKIP"
)

// Item is one readiness requirement for a phase/gate-type.
type Item struct {
	// ID identifies the item within its checklist.
	ID string `yaml:"id"`

	// Desc is the human-readable requirement.
	Desc string `yaml:"desc"`

	// Auto marks the item as machine-verifiable.
	Auto bool `yaml:"auto"`

	// Check is the identifier the [Executor] dispatches on. Only
	// meaningful when Auto is true.
	Check string `yaml:"check"`
}

// Result is the outcome of executing one auto item.
type Result struct {
	ID      string `json:"id"`
	Desc    string `json:"desc"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Provider loads checklists from a YAML file, falling back to built-in
// defaults when the file is absent.
type Provider struct {
	path     string
	defaults map[string][]Item
}

// NewProvider creates a Provider. path may name a YAML checklist file; an
// empty or missing path means built-in defaults only.
func NewProvider(path string) *Provider {
	return &Provider{path: path, defaults: defaultChecklists()}
}

// Get returns the checklist for (phase, gateType), or nil when none is
// defined for that gate.
func (p *Provider) Get(phase int, gateType string) ([]Item, error) {
	key := checklistKey(phase, gateType)

	if p.path != "" {
		data, err := os.ReadFile(p.path)
		if err == nil {
			var file struct {
				Checklists map[string][]Item `yaml:"checklists"`
			}
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse checklist file %s: %w", p.path, err)
			}
			return file.Checklists[key], nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read checklist file %s: %w", p.path, err)
		}
	}

	return p.defaults[key], nil
}

func checklistKey(phase int, gateType string) string {
	return fmt.Sprintf("phase%d-%s", phase, gateType)
}

// defaultChecklists reconstructs the standard five-phase gate checklists.
func defaultChecklists() map[string][]Item {
	inputItems := []Item{
		{ID: "in-1", Desc: "Backend service healthy", Auto: true, Check: "service_healthy"},
		{ID: "in-2", Desc: "No root-owned cache files", Auto: true, Check: "cache_permissions"},
		{ID: "in-3", Desc: "Phase plan reviewed by coordinator", Auto: false},
	}
	outputItems := []Item{
		{ID: "out-1", Desc: "Git checkpoint commit created", Auto: true, Check: "git_checkpoint_exists"},
		{ID: "out-2", Desc: "Code typechecks cleanly", Auto: true, Check: "typecheck_passes"},
		{ID: "out-3", Desc: "Test suite passes", Auto: true, Check: "tests_pass"},
		{ID: "out-4", Desc: "Coverage meets threshold", Auto: true, Check: "coverage_threshold"},
		{ID: "out-5", Desc: "All agent responses collected in gate record", Auto: false},
	}

	lists := make(map[string][]Item)
	for phase := 2; phase <= 5; phase++ {
		lists[checklistKey(phase, "input")] = inputItems
		lists[checklistKey(phase, "output")] = outputItems
	}
	// Phase 1 has no input checklist: there is nothing to carry in yet.
	lists[checklistKey(1, "output")] = outputItems
	return lists
}
