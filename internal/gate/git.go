package gate

import (
	"context"
	"os/exec"
	"time"
)

// GitVerifier confirms that a commit identifier exists in version control.
//
// VerifyCommit returns found=true when the commit exists. available=false
// means the query could not be made at all (git missing, timeout); callers
// treat that as "unverifiable", never as a failure.
type GitVerifier interface {
	VerifyCommit(hash string) (found, available bool)
}

// ExecGitVerifier verifies commits by running `git cat-file -t` in Dir.
type ExecGitVerifier struct {
	// Dir is the repository directory. Empty means the working directory.
	Dir string

	// Timeout bounds the git invocation.
	Timeout time.Duration
}

// VerifyCommit implements [GitVerifier].
func (g ExecGitVerifier) VerifyCommit(hash string) (found, available bool) {
	if _, err := exec.LookPath("git"); err != nil {
		return false, false
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "cat-file", "-t", hash)
	cmd.Dir = g.Dir
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return false, false
	}
	if err != nil {
		// git ran and said no: the object does not exist.
		return false, true
	}
	return true, true
}
