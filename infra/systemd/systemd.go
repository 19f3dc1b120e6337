// Package systemd manages the two generated units. Unit files are owned by
// deskdroid until written; after that systemd owns their lifecycle and we
// only talk to it through systemctl.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deskdroid"
	"deskdroid/infra/host"
)

// Manager writes unit files and drives systemctl.
type Manager struct {
	Run     host.Runner
	UnitDir string // defaults to /etc/systemd/system
}

func (m Manager) unitDir() string {
	if m.UnitDir != "" {
		return m.UnitDir
	}
	return "/etc/systemd/system"
}

// UnitPath returns where a service's unit file lives.
func (m Manager) UnitPath(name string) string {
	return filepath.Join(m.unitDir(), name+".service")
}

// UnitInstalled reports whether the unit file exists. Read-only.
func (m Manager) UnitInstalled(name string) bool {
	return host.FileExists(m.UnitPath(name))
}

// IsActive reports whether the unit is currently running. Read-only.
func (m Manager) IsActive(ctx context.Context, name string) bool {
	return m.Run.Run(ctx, "systemctl", "is-active", "--quiet", name+".service") == nil
}

// State classifies a service into the lifecycle state machine.
func (m Manager) State(ctx context.Context, name string) deskdroid.ServiceState {
	if !m.UnitInstalled(name) {
		return deskdroid.NotInstalled
	}
	if m.IsActive(ctx, name) {
		return deskdroid.Running
	}
	return deskdroid.Stopped
}

// WriteUnit writes (or rewrites) a unit file and reloads systemd so the
// new content is picked up. Install transitions NotInstalled -> Stopped.
func (m Manager) WriteUnit(ctx context.Context, name, content string) error {
	if err := os.MkdirAll(m.unitDir(), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(m.UnitPath(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write unit %s: %w", name, err)
	}
	return m.reload(ctx)
}

// Enable marks the unit for start at boot.
func (m Manager) Enable(ctx context.Context, name string) error {
	if err := m.Run.Run(ctx, "systemctl", "enable", name+".service"); err != nil {
		return fmt.Errorf("enable %s: %w", name, err)
	}
	return nil
}

// Start transitions Stopped -> Running.
func (m Manager) Start(ctx context.Context, name string) error {
	if err := m.Run.Run(ctx, "systemctl", "start", name+".service"); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

// Stop transitions Running -> Stopped. Stopping a stopped unit is a no-op.
func (m Manager) Stop(ctx context.Context, name string) error {
	if err := m.Run.Run(ctx, "systemctl", "stop", name+".service"); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// Restart bounces the unit. Brief downtime is acceptable; from the
// operator's point of view the restart is atomic.
func (m Manager) Restart(ctx context.Context, name string) error {
	if err := m.Run.Run(ctx, "systemctl", "restart", name+".service"); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	return nil
}

// RemoveUnit disables the unit, deletes its file and reloads systemd.
// Transitions any state -> NotInstalled. Safe to call when already absent.
func (m Manager) RemoveUnit(ctx context.Context, name string) error {
	if !m.UnitInstalled(name) {
		return nil
	}
	// Stop and disable are best-effort: a masked or already-dead unit
	// must not block uninstall.
	if err := m.Stop(ctx, name); err != nil {
		return err
	}
	if err := m.Run.Run(ctx, "systemctl", "disable", name+".service"); err != nil {
		return fmt.Errorf("disable %s: %w", name, err)
	}
	if err := os.Remove(m.UnitPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove unit %s: %w", name, err)
	}
	return m.reload(ctx)
}

// Journal returns the last n journal lines for a unit.
func (m Manager) Journal(ctx context.Context, name string, n int) (string, error) {
	out, err := m.Run.Output(ctx, "journalctl", "-u", name+".service", "-n", fmt.Sprint(n), "--no-pager")
	if err != nil {
		return "", fmt.Errorf("journal %s: %w", name, err)
	}
	return out, nil
}

func (m Manager) reload(ctx context.Context) error {
	if err := m.Run.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}
