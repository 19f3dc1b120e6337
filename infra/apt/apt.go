// Package apt wraps the Debian package manager behind the host Runner.
package apt

import (
	"context"
	"fmt"
	"strings"

	"deskdroid/infra/host"
)

// Manager queries and installs apt packages. Queries are read-only;
// Install is idempotent (apt re-installs are no-ops for present packages).
type Manager struct {
	Run host.Runner
}

// Installed reports whether a package is in state "install ok installed".
// Any dpkg-query failure (unknown package included) reads as not installed.
func (m Manager) Installed(ctx context.Context, pkg string) bool {
	out, err := m.Run.Output(ctx, "dpkg-query", "-W", "-f=${Status}", pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "install ok installed")
}

// AnyInstalled reports whether at least one of the packages is installed.
// Used for components that ship under different names across releases.
func (m Manager) AnyInstalled(ctx context.Context, pkgs ...string) bool {
	for _, pkg := range pkgs {
		if m.Installed(ctx, pkg) {
			return true
		}
	}
	return false
}

// Install installs packages non-interactively.
func (m Manager) Install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y"}, pkgs...)
	if err := m.Run.Run(ctx, "env", args...); err != nil {
		return fmt.Errorf("apt-get install %s: %w", strings.Join(pkgs, " "), err)
	}
	return nil
}

// Update refreshes the package index. Called once before the first install
// of a run; failures are surfaced so the operator can fix the mirror.
func (m Manager) Update(ctx context.Context) error {
	if err := m.Run.Run(ctx, "env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "update"); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	return nil
}
