package checklist

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gatewarden/internal/config"
)

// Executor runs the auto-verifiable checklist items.
//
// Each recognized check identifier maps to one concrete probe. Probes are
// individually bounded by timeouts and degrade to SKIP on infrastructure
// problems; only a probe that ran and observed a bad state returns FAIL.
type Executor struct {
	cfg config.Checks

	// dir is the working directory for subprocess probes.
	dir string
}

// NewExecutor creates an Executor with the given probe settings.
func NewExecutor(cfg config.Checks) *Executor {
	return &Executor{cfg: cfg}
}

// SetDir sets the working directory for subprocess probes, for tests.
func (e *Executor) SetDir(dir string) { e.dir = dir }

// Execute runs every auto item and returns one [Result] per item, in input
// order. Non-auto items are ignored here; the orchestrator surfaces them as
// required manual actions.
func (e *Executor) Execute(ctx context.Context, stage, phase int, gateType string, items []Item) []Result {
	var results []Result
	for _, item := range items {
		if !item.Auto {
			continue
		}
		res := e.run(ctx, stage, phase, item.Check)
		res.ID = item.ID
		res.Desc = item.Desc
		results = append(results, res)
	}
	return results
}

func (e *Executor) run(ctx context.Context, stage, phase int, check string) Result {
	switch check {
	case "git_checkpoint_exists":
		return e.checkGitCheckpoint(ctx, stage, phase)
	case "typecheck_passes":
		return e.checkTypecheck(ctx)
	case "service_healthy":
		return e.checkServiceHealthy(ctx)
	case "cache_permissions":
		return e.checkCachePermissions()
	case "tests_pass":
		return Result{Status: StatusSkip, Message: "Run the full test suite manually to verify"}
	case "coverage_threshold":
		return Result{Status: StatusSkip, Message: "Run the coverage report manually to verify the threshold"}
	case "coverage_not_decreased":
		return Result{Status: StatusSkip, Message: "Coverage regression check requires manual verification"}
	case "e2e_tests_pass":
		return Result{Status: StatusSkip, Message: "Run the e2e suite manually for end-to-end verification"}
	case "bundle_size":
		return Result{Status: StatusSkip, Message: "Build and check the bundle size manually"}
	case "quality_checks":
		return Result{Status: StatusSkip, Message: "Quality checks require manual verification"}
	}
	return Result{Status: StatusSkip, Message: fmt.Sprintf("Check '%s' not implemented", check)}
}

// checkGitCheckpoint scans recent commit subjects for checkpoint markers.
func (e *Executor) checkGitCheckpoint(ctx context.Context, stage, phase int) Result {
	timeout := time.Duration(e.cfg.GitTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "log", "--oneline", "-20")
	cmd.Dir = e.dir
	out, err := cmd.Output()
	if err != nil {
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Git check failed: %v", err)}
	}

	logs := strings.ToLower(string(out))
	markers := []string{
		fmt.Sprintf("stage %d", stage),
		fmt.Sprintf("stage%d", stage),
		fmt.Sprintf("phase %d", phase),
		fmt.Sprintf("phase%d", phase),
		"checkpoint",
		"complete",
	}
	for _, m := range markers {
		if strings.Contains(logs, m) {
			return Result{Status: StatusPass, Message: "Git checkpoint found"}
		}
	}
	return Result{Status: StatusWarn, Message: "No obvious checkpoint found in recent commits"}
}

func (e *Executor) checkTypecheck(ctx context.Context) Result {
	if len(e.cfg.TypecheckCommand) == 0 {
		return Result{Status: StatusSkip, Message: "No typecheck command configured"}
	}

	timeout := time.Duration(e.cfg.TypecheckTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.TypecheckCommand[0], e.cfg.TypecheckCommand[1:]...)
	cmd.Dir = e.dir
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Status: StatusSkip, Message: "Typecheck timed out"}
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return Result{Status: StatusFail, Message: "Typecheck reported errors"}
		}
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Typecheck failed to run: %v", err)}
	}
	return Result{Status: StatusPass, Message: "Typecheck succeeded"}
}

func (e *Executor) checkServiceHealthy(ctx context.Context) Result {
	if e.cfg.HealthURL == "" {
		return Result{Status: StatusSkip, Message: "No health URL configured"}
	}

	timeout := time.Duration(e.cfg.HealthTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.HealthURL, nil)
	if err != nil {
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Invalid health URL: %v", err)}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Status: StatusFail, Message: fmt.Sprintf("Service not reachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return Result{Status: StatusPass, Message: fmt.Sprintf("Service healthy at %s", e.cfg.HealthURL)}
	}
	return Result{Status: StatusFail, Message: fmt.Sprintf("Service returned status %d", resp.StatusCode)}
}

// checkCachePermissions walks the configured cache directory looking for
// root-owned files left behind by containerized tooling. Those break later
// phases that need to rewrite the cache.
func (e *Executor) checkCachePermissions() Result {
	dir := e.cfg.CacheDir
	if dir == "" {
		return Result{Status: StatusSkip, Message: "No cache directory configured"}
	}
	if e.dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(e.dir, dir)
	}

	if _, err := os.Stat(dir); err != nil {
		return Result{Status: StatusPass, Message: "Cache clean or not present"}
	}

	var rootOwned []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if st, ok := info.Sys().(*syscall.Stat_t); ok && st.Uid == 0 {
			rootOwned = append(rootOwned, path)
		}
		return nil
	})
	if err != nil {
		return Result{Status: StatusSkip, Message: fmt.Sprintf("Permission scan failed: %v", err)}
	}

	if len(rootOwned) > 0 {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("%d root-owned file(s) found under %s; remove them before proceeding", len(rootOwned), e.cfg.CacheDir),
		}
	}
	return Result{Status: StatusPass, Message: "No permission issues in cache"}
}
