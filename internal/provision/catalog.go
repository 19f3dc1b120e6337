package provision

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"deskdroid"
	"deskdroid/config"
	"deskdroid/infra/host"
	"deskdroid/infra/systemd"
	"deskdroid/infra/tlscert"
	"deskdroid/internal/reconcile"
	"deskdroid/internal/telemetry"
)

// Package sets per component. Probe against the first name that sticks
// across Ubuntu releases; install the full set.
var (
	xfcePackages     = []string{"xfce4", "xfce4-goodies", "dbus-x11"}
	tigervncPackages = []string{"tigervnc-standalone-server", "tigervnc-common"}
	novncPackages    = []string{"novnc", "websockify"}
	javaPackages     = []string{"openjdk-17-jdk"}
	javaAliases      = []string{"openjdk-17-jdk", "openjdk-21-jdk", "openjdk-11-jdk"}
	chromeAliases    = []string{"google-chrome-stable", "chromium-browser", "chromium"}
)

const chromeDebURL = "https://dl.google.com/linux/direct/google-chrome-stable_current_amd64.deb"
const chromeDebPath = "/tmp/google-chrome-stable_current_amd64.deb"

// Catalog builds the required-component catalog bound to a configuration
// record. The record supplies the password and bridge port the config,
// TLS and service entries need.
func (p *Provisioner) Catalog(rec *config.Record) (*reconcile.Catalog, error) {
	return reconcile.NewCatalog(
		reconcile.Entry{
			ID:    deskdroid.Xfce,
			Title: "Xfce desktop environment",
			Probe: func(ctx context.Context) bool { return p.Apt.Installed(ctx, "xfce4") },
			Apply: p.action(deskdroid.Xfce, func(ctx context.Context) error {
				return p.installPackages(ctx, xfcePackages...)
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.TigerVNC,
			Title: "TigerVNC display server",
			Probe: func(ctx context.Context) bool { return p.Apt.Installed(ctx, "tigervnc-standalone-server") },
			Apply: p.action(deskdroid.TigerVNC, func(ctx context.Context) error {
				return p.installPackages(ctx, tigervncPackages...)
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.NoVNC,
			Title: "noVNC web client",
			Probe: func(ctx context.Context) bool { return p.Apt.Installed(ctx, "novnc") },
			Apply: p.action(deskdroid.NoVNC, func(ctx context.Context) error {
				return p.installPackages(ctx, novncPackages...)
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.Java,
			Title: "OpenJDK",
			Probe: func(ctx context.Context) bool { return p.Apt.AnyInstalled(ctx, javaAliases...) },
			Apply: p.action(deskdroid.Java, func(ctx context.Context) error {
				return p.installPackages(ctx, javaPackages...)
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.Chrome,
			Title: "Google Chrome",
			Probe: func(ctx context.Context) bool { return p.Apt.AnyInstalled(ctx, chromeAliases...) },
			Apply: p.action(deskdroid.Chrome, p.installChrome),
		},
		reconcile.Entry{
			ID:    deskdroid.VNCConfig,
			Title: "VNC session configuration",
			Needs: []deskdroid.Component{deskdroid.Xfce, deskdroid.TigerVNC},
			Probe: func(ctx context.Context) bool {
				return host.FileExists(p.VNC.CredentialPath()) && host.FileExists(p.VNC.XStartupPath())
			},
			Apply: p.action(deskdroid.VNCConfig, func(ctx context.Context) error {
				if err := p.VNC.WriteCredential(rec.Password); err != nil {
					return err
				}
				return p.VNC.WriteXStartup()
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.SSL,
			Title: "self-signed TLS certificate",
			Needs: []deskdroid.Component{deskdroid.NoVNC},
			Probe: func(ctx context.Context) bool { return host.FileExists(p.Sys.CertPath) },
			Apply: p.action(deskdroid.SSL, func(ctx context.Context) error {
				_, err := tlscert.EnsureBundle(p.Sys.CertPath, "deskdroid")
				return err
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.VNCService,
			Title: "VNC display service",
			Needs: []deskdroid.Component{deskdroid.TigerVNC, deskdroid.VNCConfig},
			Probe: func(ctx context.Context) bool { return p.Systemd.UnitInstalled(deskdroid.DisplayService) },
			Apply: p.action(deskdroid.VNCService, func(ctx context.Context) error {
				return p.installDisplayUnit(ctx)
			}),
		},
		reconcile.Entry{
			ID:    deskdroid.NoVNCService,
			Title: "noVNC bridge service",
			Needs: []deskdroid.Component{deskdroid.NoVNC, deskdroid.SSL, deskdroid.VNCService},
			Probe: func(ctx context.Context) bool { return p.Systemd.UnitInstalled(deskdroid.BridgeService) },
			Apply: p.action(deskdroid.NoVNCService, func(ctx context.Context) error {
				return p.installBridgeUnit(ctx, rec.BridgePort)
			}),
		},
	)
}

// action wraps an apply function with a trace span. No-op without an
// exporter configured.
func (p *Provisioner) action(id deskdroid.Component, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "apply",
			attribute.String("component", string(id)))
		defer span.End()
		err := fn(ctx)
		telemetry.RecordError(span, err)
		return err
	}
}

// installPackages refreshes the index once per process before the first
// install, then installs.
func (p *Provisioner) installPackages(ctx context.Context, pkgs ...string) error {
	if !p.aptUpdated {
		if err := p.Apt.Update(ctx); err != nil {
			return err
		}
		p.aptUpdated = true
	}
	return p.Apt.Install(ctx, pkgs...)
}

// installChrome fetches Google's .deb directly; Chrome is not in the
// Ubuntu archive. apt resolves its dependencies from the local file.
func (p *Provisioner) installChrome(ctx context.Context) error {
	if err := p.Sys.Runner.Run(ctx, "wget", "-qO", chromeDebPath, chromeDebURL); err != nil {
		return fmt.Errorf("download chrome: %w", err)
	}
	return p.installPackages(ctx, chromeDebPath)
}

func (p *Provisioner) installDisplayUnit(ctx context.Context) error {
	content, err := systemd.DisplayUnit(systemd.DisplayUnitParams{
		User:    p.Sys.User.Name,
		Home:    p.Sys.User.Home,
		Display: config.DisplayPort - 5900,
	})
	if err != nil {
		return err
	}
	if err := p.Systemd.WriteUnit(ctx, deskdroid.DisplayService, content); err != nil {
		return err
	}
	return p.Systemd.Enable(ctx, deskdroid.DisplayService)
}

func (p *Provisioner) installBridgeUnit(ctx context.Context, listenPort int) error {
	content, err := systemd.BridgeUnit(systemd.BridgeUnitParams{
		ListenPort: listenPort,
		TargetPort: config.DisplayPort,
		CertPath:   p.Sys.CertPath,
	})
	if err != nil {
		return err
	}
	if err := p.Systemd.WriteUnit(ctx, deskdroid.BridgeService, content); err != nil {
		return err
	}
	return p.Systemd.Enable(ctx, deskdroid.BridgeService)
}
