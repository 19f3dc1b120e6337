package provision

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"deskdroid"
	"deskdroid/infra/fetch"
	"deskdroid/infra/host"
	"deskdroid/infra/redroid"
	"deskdroid/infra/xdg"
)

// Optional add-ons. Each is installed on demand from the apps menu and is
// never part of the required set the reconciler converges.

const (
	studioURL  = "https://dl.google.com/dl/android/studio/ide-zips/2024.2.1.11/android-studio-2024.2.1.11-linux.tar.gz"
	studioRoot = "/opt"
	studioBin  = "/opt/android-studio/bin/studio.sh"

	chromeShortcut = "google-chrome"
	studioShortcut = "android-studio"
)

var (
	chineseInputPackages = []string{"fcitx5", "fcitx5-chinese-addons"}
	clipboardPackages    = []string{"autocutsel"}
)

// AppInstalled probes one optional component. Read-only, like every probe.
func (p *Provisioner) AppInstalled(ctx context.Context, app deskdroid.Component) bool {
	switch app {
	case deskdroid.AndroidStudio:
		return host.FileExists(studioBin)
	case deskdroid.ChineseInput:
		return p.Apt.Installed(ctx, "fcitx5")
	case deskdroid.Clipboard:
		return p.Apt.Installed(ctx, "autocutsel")
	case deskdroid.Redroid:
		rt, err := p.redroidRuntime()
		if err != nil {
			return false
		}
		return rt.Installed(ctx)
	default:
		return false
	}
}

// InstallApp installs one optional component. Idempotent like the
// required installers; re-installing a present add-on converges to the
// same state.
func (p *Provisioner) InstallApp(ctx context.Context, app deskdroid.Component) error {
	switch app {
	case deskdroid.AndroidStudio:
		return p.installAndroidStudio(ctx)
	case deskdroid.ChineseInput:
		return p.installPackages(ctx, chineseInputPackages...)
	case deskdroid.Clipboard:
		return p.installPackages(ctx, clipboardPackages...)
	case deskdroid.Redroid:
		return p.installRedroid(ctx)
	default:
		return fmt.Errorf("unknown app %s", app)
	}
}

// RemoveApp removes an optional component where removal makes sense.
// Only the Android container is actively torn down; apt add-ons stay.
func (p *Provisioner) RemoveApp(ctx context.Context, app deskdroid.Component) error {
	switch app {
	case deskdroid.Redroid:
		rt, err := p.redroidRuntime()
		if err != nil {
			return err
		}
		return rt.Down(ctx)
	default:
		return fmt.Errorf("app %s cannot be removed", app)
	}
}

func (p *Provisioner) installAndroidStudio(ctx context.Context) error {
	if !host.FileExists(studioBin) {
		if err := fetch.TarballInto(ctx, studioURL, studioRoot); err != nil {
			return fmt.Errorf("install android studio: %w", err)
		}
	}
	return xdg.Write(p.Sys.DesktopDir, studioShortcut, xdg.Shortcut{
		Name:    "Android Studio",
		Exec:    studioBin,
		Icon:    "/opt/android-studio/bin/studio.png",
		Comment: "Android IDE",
	})
}

func (p *Provisioner) installRedroid(ctx context.Context) error {
	rt, err := p.redroidRuntime()
	if err != nil {
		return err
	}
	if err := rt.Up(ctx); err != nil {
		return err
	}
	return p.Firewall.Allow(ctx, redroid.AdbPort)
}

// redroidRuntime builds the container runtime after an explicit check
// that docker is present. No docker means the add-on is simply
// unavailable; we do not fall back to anything.
func (p *Provisioner) redroidRuntime() (redroid.Runtime, error) {
	if !host.ExecutableInPath("docker") {
		return redroid.Runtime{}, fmt.Errorf("docker is not installed; the Android container add-on requires it")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return redroid.Runtime{}, fmt.Errorf("docker unavailable: %w", err)
	}
	return redroid.Runtime{Docker: cli}, nil
}

// WriteChromeShortcut puts a browser shortcut on the desktop after the
// required install completes.
func (p *Provisioner) WriteChromeShortcut() error {
	return xdg.Write(p.Sys.DesktopDir, chromeShortcut, xdg.Shortcut{
		Name:    "Google Chrome",
		Exec:    "/usr/bin/google-chrome-stable",
		Icon:    "google-chrome",
		Comment: "Web browser",
	})
}

// RemoveShortcuts deletes every shortcut deskdroid may have written.
func (p *Provisioner) RemoveShortcuts() error {
	return xdg.Remove(p.Sys.DesktopDir, chromeShortcut, studioShortcut)
}
