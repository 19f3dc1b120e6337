// Package host provides the low-level host collaborators the reconciler
// is built on: an external command runner, read-only presence probes, and
// the random port/password generators used on first install.
package host

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Runner executes external commands. The reconciler consumes the package
// manager, service manager and firewall exclusively through this interface,
// so tests substitute a fake instead of touching the host.
type Runner interface {
	// Run executes the command and returns an error that includes the
	// combined output when the command fails.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the real host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	slog.Debug("exec", "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w\n%s", name, args, err, buf.String())
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %v: %w\n%s", name, args, err, errOut.String())
	}
	return out.String(), nil
}
