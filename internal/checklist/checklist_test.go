package checklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewarden/internal/config"
)

func TestProvider_Defaults(t *testing.T) {
	p := NewProvider("")

	t.Run("output checklist exists for every phase", func(t *testing.T) {
		for phase := 1; phase <= 5; phase++ {
			items, err := p.Get(phase, "output")
			require.NoError(t, err)
			assert.NotEmpty(t, items, "phase %d output", phase)
		}
	})

	t.Run("phase 1 has no input checklist", func(t *testing.T) {
		items, err := p.Get(1, "input")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("input checklist mixes auto and manual items", func(t *testing.T) {
		items, err := p.Get(3, "input")
		require.NoError(t, err)
		var auto, manual int
		for _, item := range items {
			if item.Auto {
				auto++
				assert.NotEmpty(t, item.Check, "auto item %s needs a check id", item.ID)
			} else {
				manual++
			}
		}
		assert.Positive(t, auto)
		assert.Positive(t, manual)
	})
}

func TestProvider_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklists.yaml")
	content := `checklists:
  phase2-input:
    - id: custom-1
      desc: Load balancer drained
      auto: true
      check: service_healthy
    - id: custom-2
      desc: Rollback plan written
      auto: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p := NewProvider(path)

	items, err := p.Get(2, "input")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "custom-1", items[0].ID)
	assert.True(t, items[0].Auto)
	assert.Equal(t, "service_healthy", items[0].Check)
	assert.False(t, items[1].Auto)

	// The file replaces defaults wholesale: gates it does not define
	// have no checklist.
	items, err = p.Get(3, "output")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProvider_MissingFileFallsBack(t *testing.T) {
	p := NewProvider(filepath.Join(t.TempDir(), "absent.yaml"))

	items, err := p.Get(2, "output")
	require.NoError(t, err)
	assert.NotEmpty(t, items, "missing file means built-in defaults")
}

func TestProvider_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checklists: [not: a: map"), 0644))

	p := NewProvider(path)
	_, err := p.Get(2, "output")
	assert.Error(t, err)
}

func TestExecutor_ManualAndUnknownChecks(t *testing.T) {
	e := NewExecutor(config.DefaultConfig().Checks)

	items := []Item{
		{ID: "a", Desc: "manual review", Auto: false},
		{ID: "b", Desc: "tests", Auto: true, Check: "tests_pass"},
		{ID: "c", Desc: "mystery", Auto: true, Check: "no_such_probe"},
	}

	results := e.Execute(context.Background(), 1, 2, "output", items)

	require.Len(t, results, 2, "manual items are not executed")

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}

	assert.Equal(t, StatusSkip, byID["b"].Status, "tests_pass defers to manual verification")
	assert.Equal(t, StatusSkip, byID["c"].Status)
	assert.Contains(t, byID["c"].Message, "not implemented")
}

func TestExecutor_ServiceHealthProbe(t *testing.T) {
	checks := config.DefaultConfig().Checks
	// Nothing listens here; the probe should FAIL, not hang.
	checks.HealthURL = "http://127.0.0.1:1/health"
	checks.HealthTimeoutSec = 1
	e := NewExecutor(checks)

	results := e.Execute(context.Background(), 1, 2, "input", []Item{
		{ID: "health", Desc: "service healthy", Auto: true, Check: "service_healthy"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, StatusFail, results[0].Status)
}
