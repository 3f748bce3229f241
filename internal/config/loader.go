package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader loads configuration using Viper.
//
// Use [NewLoader] to create an instance and [Loader.Load] to resolve the
// final configuration. The zero value is not usable.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GATEWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	registerDefaults(v, DefaultConfig())

	return &Loader{v: v}
}

// Load resolves the configuration from file, environment, and defaults.
//
// The config file is discovered in priority order: GATEWARDEN_CONFIG_PATH,
// the user config directory, then the working directory. A missing file is
// not an error; defaults apply. A malformed file is an error.
func (l *Loader) Load() (*Config, error) {
	path := l.findConfigFile()
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from an explicit file path.
//
// Unlike [Loader.Load], a missing file is an error here because the caller
// asked for that specific file.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func (l *Loader) findConfigFile() string {
	if envPath := os.Getenv("GATEWARDEN_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	if userDir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(userDir, "gatewarden", "gatewarden.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if _, err := os.Stat("gatewarden.yaml"); err == nil {
		return "gatewarden.yaml"
	}

	return ""
}

// registerDefaults walks the default config into viper so that env overrides
// and partial config files merge on top of a complete value set.
func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("bus.dir", cfg.Bus.Dir)
	v.SetDefault("bus.gates_dir", cfg.Bus.GatesDir)
	v.SetDefault("bus.signoffs_dir", cfg.Bus.SignoffsDir)
	v.SetDefault("bus.alerts_file", cfg.Bus.AlertsFile)
	v.SetDefault("bus.events_file", cfg.Bus.EventsFile)
	v.SetDefault("bus.checklist_file", cfg.Bus.ChecklistFile)

	v.SetDefault("rules.required_agents", cfg.Rules.RequiredAgents)
	v.SetDefault("rules.coordinator", cfg.Rules.Coordinator)
	v.SetDefault("rules.required_sections", cfg.Rules.RequiredSections)
	v.SetDefault("rules.min_summary_length", cfg.Rules.MinSummaryLength)
	v.SetDefault("rules.max_file_size", cfg.Rules.MaxFileSize)
	v.SetDefault("rules.backdate_grace_days", cfg.Rules.BackdateGraceDays)
	v.SetDefault("rules.template_path", cfg.Rules.TemplatePath)

	v.SetDefault("checks.typecheck_command", cfg.Checks.TypecheckCommand)
	v.SetDefault("checks.typecheck_timeout_sec", cfg.Checks.TypecheckTimeoutSec)
	v.SetDefault("checks.health_url", cfg.Checks.HealthURL)
	v.SetDefault("checks.health_timeout_sec", cfg.Checks.HealthTimeoutSec)
	v.SetDefault("checks.cache_dir", cfg.Checks.CacheDir)
	v.SetDefault("checks.git_timeout_sec", cfg.Checks.GitTimeoutSec)
	v.SetDefault("checks.audit_command", cfg.Checks.AuditCommand)
	v.SetDefault("checks.audit_timeout_sec", cfg.Checks.AuditTimeoutSec)
	v.SetDefault("checks.audit_phases", cfg.Checks.AuditPhases)
	v.SetDefault("checks.memory_command", cfg.Checks.MemoryCommand)
	v.SetDefault("checks.memory_timeout_sec", cfg.Checks.MemoryTimeoutSec)
	v.SetDefault("checks.signoff_ttl_hours", cfg.Checks.SignoffTTLHours)

	v.SetDefault("event_secret", cfg.EventSecret)
}
