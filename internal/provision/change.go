package provision

import (
	"context"
	"fmt"

	"deskdroid"
	"deskdroid/config"
)

// ChangePort moves the bridge to a new listening port: validate, persist,
// regenerate the bridge unit, open the firewall, restart both services.
// The old port stays allowed in the firewall; the operator may still be
// connected through it. The load-mutate-save sequence runs under the
// host-wide lock so a concurrent change cannot be lost.
func (p *Provisioner) ChangePort(ctx context.Context, port int) error {
	if err := config.ValidatePort(port); err != nil {
		return err
	}
	return p.withLock(func() error {
		rec, err := config.Load(p.Sys.Paths)
		if err != nil {
			return err
		}
		if port != rec.BridgePort && !p.PortFree(port) {
			return fmt.Errorf("port %d: %w", port, config.ErrPortBusy)
		}

		rec.BridgePort = port
		if err := config.Save(p.Sys.Paths, rec); err != nil {
			return err
		}
		if err := p.installBridgeUnit(ctx, port); err != nil {
			return err
		}
		if err := p.Firewall.Allow(ctx, port); err != nil {
			return err
		}
		return p.RestartServices(ctx)
	})
}

// ChangePassword replaces the VNC credential: validate, rewrite the
// credential store so only the new password authenticates, persist, and
// restart the display server. The bridge does not hold the credential and
// is left running.
func (p *Provisioner) ChangePassword(ctx context.Context, password string) error {
	if err := config.ValidatePassword(password); err != nil {
		return err
	}
	return p.withLock(func() error {
		rec, err := config.Load(p.Sys.Paths)
		if err != nil {
			return err
		}

		if err := p.VNC.WriteCredential(password); err != nil {
			return err
		}
		rec.Password = password
		if err := config.Save(p.Sys.Paths, rec); err != nil {
			return err
		}
		return p.Systemd.Restart(ctx, deskdroid.DisplayService)
	})
}
