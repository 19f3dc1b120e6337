// Command deskdroid installs and manages a browser-accessible remote
// Android development desktop: Xfce behind TigerVNC, exposed through a
// TLS-terminating noVNC bridge, plus the Android tooling on top.
//
// Running with no subcommand branches on detected state: a fresh host
// gets the install wizard, a partial install offers to resume, a complete
// install opens the management menu.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/config"
	"deskdroid/infra/host"
	"deskdroid/internal/logging"
	"deskdroid/internal/provision"
	"deskdroid/internal/telemetry"
)

func main() {
	var (
		debug         bool
		noInteraction bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "deskdroid",
		Short:         "Remote Android development desktop in the browser",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefault(cmd)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable prompts and fancy output")

	root.AddCommand(installCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(repairCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(startCmd())
	root.AddCommand(stopCmd())
	root.AddCommand(restartCmd())
	root.AddCommand(logsCmd())
	root.AddCommand(passwdCmd())
	root.AddCommand(portCmd())
	root.AddCommand(appsCmd())
	root.AddCommand(uninstallCmd())

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	execErr := root.ExecuteContext(ctx)
	_ = shutdown(ctx)
	if execErr != nil {
		if errors.Is(execErr, ui.ErrCancelled) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", fmtErr(execErr))
		os.Exit(1)
	}
}

func fmtErr(err error) error {
	var noTTY *ui.ErrNoInteraction
	if errors.As(err, &noTTY) {
		return noTTY
	}
	return err
}

// newProvisioner builds the explicit operation context. The install user
// comes from the persisted record when one exists; on a fresh host it is
// the invoking user (the account behind sudo, not root itself).
func newProvisioner() (*provision.Provisioner, error) {
	name := installUserName()
	iu, err := provision.LookupUser(name)
	if err != nil {
		return nil, err
	}
	sys := provision.System{
		Runner:   host.ExecRunner{},
		Paths:    config.DefaultPaths(iu.Home),
		User:     iu,
		LockPath: provision.DefaultLockPath,
		StateDir: provision.DefaultStateDir,
	}
	return provision.New(sys), nil
}

func installUserName() string {
	if rec, err := config.Load(config.DefaultPaths(homeDir())); err == nil && rec.InstallUser != "" {
		return rec.InstallUser
	}
	if v := os.Getenv("SUDO_USER"); v != "" && v != "root" {
		return v
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "root"
}

func homeDir() string {
	if v := os.Getenv("SUDO_USER"); v != "" && v != "root" {
		if u, err := user.Lookup(v); err == nil {
			return u.HomeDir
		}
	}
	h, _ := os.UserHomeDir()
	return h
}

// runDefault is the no-subcommand entry: branch on what the probe finds.
func runDefault(cmd *cobra.Command) error {
	p, err := newProvisioner()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	status, err := p.Probe(ctx)
	if err != nil {
		return err
	}

	switch {
	case status.Empty():
		return runWizard(cmd, p, nil)
	case !status.Complete():
		fmt.Println(ui.WarnMsg("installation is incomplete"))
		resume, err := ui.Confirm("resume the installation now?", "run `deskdroid repair`")
		if err != nil {
			return err
		}
		if !resume {
			return nil
		}
		return runRepair(cmd, p)
	default:
		return runMenu(cmd, p)
	}
}
