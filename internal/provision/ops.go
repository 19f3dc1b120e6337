package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"deskdroid"
	"deskdroid/config"
	"deskdroid/internal/reconcile"
)

func (p *Provisioner) reconciler(rec *config.Record) (*reconcile.Reconciler, error) {
	catalog, err := p.Catalog(rec)
	if err != nil {
		return nil, err
	}
	// No LockPath here: mutating operations already hold the flock via
	// withLock, and flock does not nest across file descriptors.
	return &reconcile.Reconciler{
		Catalog: catalog,
		OnEvent: p.emit,
	}, nil
}

// withLock runs fn under the host-wide flock. Every operation that reads
// the config record, mutates host state and writes the record back runs
// inside it, so concurrent invocations serialize instead of losing an
// update.
func (p *Provisioner) withLock(fn func() error) error {
	release, err := reconcile.AcquireLock(p.Sys.LockPath)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Probe snapshots component state without touching the host.
func (p *Provisioner) Probe(ctx context.Context) (deskdroid.Status, error) {
	// Probes never read the record, so a placeholder suffices.
	r, err := p.reconciler(&config.Record{DisplayPort: config.DisplayPort})
	if err != nil {
		return nil, err
	}
	return r.Probe(ctx), nil
}

// Install converges a fresh or partial host to the complete state, opens
// the firewall and starts both services. The record is persisted before
// apply so an interrupted install resumes with the same port and password.
func (p *Provisioner) Install(ctx context.Context, rec *config.Record) error {
	if err := config.ValidatePort(rec.BridgePort); err != nil {
		return err
	}
	if err := config.ValidatePassword(rec.Password); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.DisplayPort = config.DisplayPort
	rec.InstallUser = p.Sys.User.Name
	return p.withLock(func() error {
		if err := config.Save(p.Sys.Paths, rec); err != nil {
			return err
		}
		return p.converge(ctx, rec)
	})
}

// Repair re-runs the reconciler against the persisted record. This is the
// drift-repair path: anything probed Missing is re-applied, everything
// else is left alone.
func (p *Provisioner) Repair(ctx context.Context) error {
	return p.withLock(func() error {
		rec, err := config.Load(p.Sys.Paths)
		if err != nil {
			return err
		}
		return p.converge(ctx, rec)
	})
}

func (p *Provisioner) converge(ctx context.Context, rec *config.Record) error {
	r, err := p.reconciler(rec)
	if err != nil {
		return err
	}
	status, err := r.Reconcile(ctx)
	if err != nil {
		return err
	}
	if !status.Complete() {
		return fmt.Errorf("reconcile finished with components still missing")
	}
	if err := p.Firewall.Allow(ctx, rec.BridgePort); err != nil {
		return err
	}
	if err := p.WriteChromeShortcut(); err != nil {
		return err
	}
	return p.StartServices(ctx)
}

// StartServices starts the display server, then the bridge that proxies
// to it.
func (p *Provisioner) StartServices(ctx context.Context) error {
	if err := p.Systemd.Start(ctx, deskdroid.DisplayService); err != nil {
		return err
	}
	return p.Systemd.Start(ctx, deskdroid.BridgeService)
}

// StopServices stops the bridge first so no client connects to a dying
// display server.
func (p *Provisioner) StopServices(ctx context.Context) error {
	if err := p.Systemd.Stop(ctx, deskdroid.BridgeService); err != nil {
		return err
	}
	return p.Systemd.Stop(ctx, deskdroid.DisplayService)
}

// RestartServices bounces both services, display first.
func (p *Provisioner) RestartServices(ctx context.Context) error {
	if err := p.Systemd.Restart(ctx, deskdroid.DisplayService); err != nil {
		return err
	}
	return p.Systemd.Restart(ctx, deskdroid.BridgeService)
}

// ServiceStates reports the lifecycle state of both managed services.
func (p *Provisioner) ServiceStates(ctx context.Context) (display, bridge deskdroid.ServiceState) {
	return p.Systemd.State(ctx, deskdroid.DisplayService),
		p.Systemd.State(ctx, deskdroid.BridgeService)
}

// Uninstall tears everything deskdroid created back out: services, units,
// TLS material, VNC credentials, shortcuts, the config record and local
// state. Leaves apt packages installed; removing a desktop environment
// the operator may use otherwise is not our call.
func (p *Provisioner) Uninstall(ctx context.Context) error {
	return p.withLock(func() error {
		// Bridge first so nothing proxies to a vanishing display server.
		for _, svc := range []string{deskdroid.BridgeService, deskdroid.DisplayService} {
			if err := p.Systemd.RemoveUnit(ctx, svc); err != nil {
				return err
			}
		}
		if err := p.VNC.Remove(); err != nil {
			return err
		}
		if err := removeFile(p.Sys.CertPath); err != nil {
			return err
		}
		if err := p.RemoveShortcuts(); err != nil {
			return err
		}
		if err := config.Remove(p.Sys.Paths); err != nil {
			return err
		}
		if p.Sys.StateDir != "" {
			if err := os.RemoveAll(p.Sys.StateDir); err != nil {
				return fmt.Errorf("remove state dir: %w", err)
			}
		}
		slog.Info("uninstall complete")
		return nil
	})
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// AccessURL returns the https URL operators open in a browser. The host
// address comes from the first address `hostname -I` reports; when that
// fails the placeholder tells the operator to substitute their own.
func (p *Provisioner) AccessURL(ctx context.Context, rec *config.Record) string {
	host := "SERVER-IP"
	if out, err := p.Sys.Runner.Output(ctx, "hostname", "-I"); err == nil {
		if fields := strings.Fields(out); len(fields) > 0 {
			host = fields[0]
		}
	}
	return fmt.Sprintf("https://%s:%d/vnc.html", host, rec.BridgePort)
}
