// Package config provides configuration loading and management for gatewarden.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The package provides sensible defaults that work out of the
// box, with the ability to customize validation rules, collaborator commands, and
// file locations.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [Rules] holds the gate-record validation rule set
//   - [Checks] holds auto-check probe settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (GATEWARDEN_ prefix)
//  2. Config file specified by GATEWARDEN_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/gatewarden/gatewarden.yaml
//     - macOS: ~/Library/Application Support/gatewarden/gatewarden.yaml
//  4. ./gatewarden.yaml
//  5. [DefaultConfig] defaults
package config

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Bus contains the coordination-bus file locations.
	Bus BusConfig `mapstructure:"bus"`

	// Rules contains the gate-record validation rule set.
	Rules Rules `mapstructure:"rules"`

	// Checks contains settings for auto-check probes and external collaborators.
	Checks Checks `mapstructure:"checks"`

	// EventSecret is the HMAC key for the secure event log.
	// When empty, event logging is disabled and the workflow records a SKIP.
	// Override with GATEWARDEN_EVENT_SECRET.
	EventSecret string `mapstructure:"event_secret"`
}

// BusConfig locates the flat files shared between workflow invocations.
//
// All paths are relative to the project root unless absolute.
type BusConfig struct {
	// Dir is the coordination bus root directory.
	// Default: ".gatewarden"
	Dir string `mapstructure:"dir"`

	// GatesDir holds gate record documents, one subdirectory per stage.
	GatesDir string `mapstructure:"gates_dir"`

	// SignoffsDir holds per-gate sign-off JSON records.
	SignoffsDir string `mapstructure:"signoffs_dir"`

	// AlertsFile is the append-only JSON Lines alert log.
	AlertsFile string `mapstructure:"alerts_file"`

	// EventsFile is the append-only JSON Lines secure event log.
	EventsFile string `mapstructure:"events_file"`

	// ChecklistFile is an optional YAML file overriding the built-in
	// per-phase checklists. A missing file means built-in defaults apply.
	ChecklistFile string `mapstructure:"checklist_file"`
}

// Rules is the gate-record validation rule set.
//
// The validator and the anti-fabrication analyzer take a Rules value rather
// than reading package globals, so tests can run with alternate rule sets.
type Rules struct {
	// RequiredAgents are the agents that must appear in the invocation
	// table, the response sections, and the sign-off table. Every one of
	// them must be invoked for the gate to pass.
	RequiredAgents []string `mapstructure:"required_agents"`

	// Coordinator is the coordinating role whose sign-off is mandatory.
	Coordinator string `mapstructure:"coordinator"`

	// RequiredSections are the exact section header texts a gate record
	// must contain, in order.
	RequiredSections []string `mapstructure:"required_sections"`

	// MinSummaryLength is the minimum character count for an agent
	// response summary. Shorter summaries warn but do not fail.
	MinSummaryLength int `mapstructure:"min_summary_length"`

	// MaxFileSize caps the gate record file size in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`

	// BackdateGraceDays is how many days the file modification time may
	// precede the claimed gate date before the backdating warning fires.
	BackdateGraceDays int `mapstructure:"backdate_grace_days"`

	// TemplatePath is named in missing-section errors so authors know
	// where to copy the section from.
	TemplatePath string `mapstructure:"template_path"`
}

// Checks contains auto-check probe and external collaborator settings.
type Checks struct {
	// TypecheckCommand is run for the typecheck auto-check.
	// Default: ["go", "build", "./..."]
	TypecheckCommand []string `mapstructure:"typecheck_command"`

	// TypecheckTimeoutSec bounds the typecheck command. Default: 60.
	TypecheckTimeoutSec int `mapstructure:"typecheck_timeout_sec"`

	// HealthURL is probed by the service-health auto-check.
	// Default: "http://localhost:8000/health"
	HealthURL string `mapstructure:"health_url"`

	// HealthTimeoutSec bounds the health probe. Default: 5.
	HealthTimeoutSec int `mapstructure:"health_timeout_sec"`

	// CacheDir is scanned by the filesystem-ownership auto-check for
	// root-owned files left behind by containerized tooling.
	CacheDir string `mapstructure:"cache_dir"`

	// GitTimeoutSec bounds git queries (checkpoint verification). Default: 5.
	GitTimeoutSec int `mapstructure:"git_timeout_sec"`

	// AuditCommand is the external audit tool invoked for output gates at
	// audit phases. Empty means the audit step records SKIP.
	AuditCommand []string `mapstructure:"audit_command"`

	// AuditTimeoutSec bounds the audit subprocess. Default: 120.
	AuditTimeoutSec int `mapstructure:"audit_timeout_sec"`

	// AuditPhases are the phases whose output gates require an audit.
	AuditPhases []int `mapstructure:"audit_phases"`

	// MemoryCommand is the memory-service CLI prefix for queries and
	// health checks. Empty means memory enrichment records SKIP.
	MemoryCommand []string `mapstructure:"memory_command"`

	// MemoryTimeoutSec bounds memory queries. Default: 30.
	MemoryTimeoutSec int `mapstructure:"memory_timeout_sec"`

	// SignoffTTLHours is the lifetime of a requested sign-off token.
	SignoffTTLHours int `mapstructure:"signoff_ttl_hours"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults mirror the rule set the gate template was written against:
// six required agents, seven required sections, a 50-character summary
// minimum, and a 7-day backdating grace window. They work without any
// configuration file.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Dir:           ".gatewarden",
			GatesDir:      ".gatewarden/gates",
			SignoffsDir:   ".gatewarden/signoffs",
			AlertsFile:    ".gatewarden/notifications/user-alerts.jsonl",
			EventsFile:    ".gatewarden/events/secure-events.jsonl",
			ChecklistFile: ".gatewarden/checklists.yaml",
		},
		Rules: Rules{
			RequiredAgents: []string{
				"Backend-Agent",
				"Frontend-Agent",
				"QA-Agent",
				"Document-RAG-Agent",
				"Super-AI-UltraThink-Agent",
				"frontend-debug-agent",
			},
			Coordinator: "PM-Architect-Agent",
			RequiredSections: []string{
				"Section 1: Agent Invocation Evidence",
				"Section 2: Agent Responses",
				"Section 3: Consolidated Checklist",
				"Section 4: Unresolved Issues",
				"Section 5: Sign-offs",
				"Section 6: Gate Decision",
				"Section 7: Validation",
			},
			MinSummaryLength:  50,
			MaxFileSize:       1_000_000,
			BackdateGraceDays: 7,
			TemplatePath:      ".gatewarden/templates/gate-validation-template.md",
		},
		Checks: Checks{
			TypecheckCommand:    []string{"go", "build", "./..."},
			TypecheckTimeoutSec: 60,
			HealthURL:           "http://localhost:8000/health",
			HealthTimeoutSec:    5,
			CacheDir:            "frontend/node_modules/.vite",
			GitTimeoutSec:       5,
			AuditTimeoutSec:     120,
			AuditPhases:         []int{1, 3, 5},
			MemoryTimeoutSec:    30,
			SignoffTTLHours:     24,
		},
	}
}
