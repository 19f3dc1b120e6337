// Package provision binds the reconciler to the real host: it builds the
// component catalog from the leaf collaborators (apt, systemd, ufw, TLS,
// VNC credential store) and implements the operator-facing operations —
// install, repair, service control, port/password change, uninstall.
package provision

import (
	"fmt"
	"os/user"
	"strconv"

	"deskdroid"
	"deskdroid/config"
	"deskdroid/infra/apt"
	"deskdroid/infra/host"
	"deskdroid/infra/systemd"
	"deskdroid/infra/tlscert"
	"deskdroid/infra/ufw"
	"deskdroid/infra/vncauth"
)

// InstallUser is the account that owns the desktop session.
type InstallUser struct {
	Name string
	Home string
	UID  int
	GID  int
}

// LookupUser resolves an install user from the passwd database.
func LookupUser(name string) (InstallUser, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return InstallUser{}, fmt.Errorf("lookup user %s: %w", name, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return InstallUser{}, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return InstallUser{}, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}
	return InstallUser{Name: u.Username, Home: u.HomeDir, UID: uid, GID: gid}, nil
}

// System is the explicit context every operation receives. Constructed
// once at startup from explicit inputs; nothing reads ambient process
// state afterwards.
type System struct {
	Runner host.Runner
	Paths  config.Paths
	User   InstallUser

	CertPath   string // TLS bundle; defaults to the noVNC convention
	UnitDir    string // systemd unit dir; empty means /etc/systemd/system
	DesktopDir string // where app shortcuts go; defaults to <home>/Desktop
	LockPath   string // flock serializing mutating operations; empty disables
	StateDir   string // journal and other local state
}

// DefaultLockPath serializes concurrent deskdroid invocations.
const DefaultLockPath = "/run/deskdroid.lock"

// DefaultStateDir holds the run-history journal.
const DefaultStateDir = "/var/lib/deskdroid"

// Provisioner wires the collaborators together.
type Provisioner struct {
	Sys      System
	Apt      apt.Manager
	Systemd  systemd.Manager
	Firewall ufw.Firewall
	VNC      vncauth.Store

	// PortFree is injectable so tests can simulate occupied ports.
	PortFree func(int) bool

	// OnEvent receives reconcile progress for the checklist UI and the
	// journal. Optional.
	OnEvent func(event string, component deskdroid.Component, message string)

	aptUpdated bool
}

// New builds a Provisioner from an explicit System context.
func New(sys System) *Provisioner {
	if sys.CertPath == "" {
		sys.CertPath = tlscert.DefaultBundlePath
	}
	if sys.DesktopDir == "" && sys.User.Home != "" {
		sys.DesktopDir = sys.User.Home + "/Desktop"
	}
	return &Provisioner{
		Sys:      sys,
		Apt:      apt.Manager{Run: sys.Runner},
		Systemd:  systemd.Manager{Run: sys.Runner, UnitDir: sys.UnitDir},
		Firewall: ufw.Firewall{Run: sys.Runner},
		VNC:      vncauth.Store{Home: sys.User.Home, UID: sys.User.UID, GID: sys.User.GID},
		PortFree: host.PortFree,
	}
}

func (p *Provisioner) emit(event string, component deskdroid.Component, message string) {
	if p.OnEvent != nil {
		p.OnEvent(event, component, message)
	}
}
