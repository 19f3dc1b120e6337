package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/config"
	"deskdroid/infra/host"
	"deskdroid/internal/provision"
)

// answers is the unattended-install input file.
type answers struct {
	Port     int      `yaml:"port"`
	Password string   `yaml:"password"`
	Apps     []string `yaml:"apps"`
}

func installCmd() *cobra.Command {
	var (
		answersPath string
		port        int
		password    string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the remote desktop (wizard, or unattended with --answers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}

			var a *answers
			if answersPath != "" {
				if a, err = loadAnswers(answersPath); err != nil {
					return err
				}
			}
			if port != 0 {
				if a == nil {
					a = &answers{}
				}
				a.Port = port
			}
			if password != "" {
				if a == nil {
					a = &answers{}
				}
				a.Password = password
			}
			return runWizard(cmd, p, a)
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", "YAML answers file for unattended install")
	cmd.Flags().IntVar(&port, "port", 0, "Bridge port (default: random free port)")
	cmd.Flags().StringVar(&password, "password", "", "VNC password (default: generated)")
	return cmd
}

func loadAnswers(path string) (*answers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	var a answers
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse answers file: %w", err)
	}
	return &a, nil
}

// runWizard collects port and password, validates them before touching
// the host, converges, and prints the access URL. Validation failures
// abort with no state change.
func runWizard(cmd *cobra.Command, p *provision.Provisioner, a *answers) error {
	ctx := cmd.Context()

	status, err := p.Probe(ctx)
	if err != nil {
		return err
	}
	if status.Complete() {
		fmt.Println(ui.SuccessMsg("already fully installed; use the menu or `deskdroid status`"))
		return nil
	}

	rec := &config.Record{}
	generatedPassword := false

	if a != nil && a.Port != 0 {
		rec.BridgePort = a.Port
	} else {
		raw, err := ui.Prompt("Bridge port (empty for a random free port)", "6080", "use --port or --answers")
		if err != nil {
			return err
		}
		if raw == "" {
			if rec.BridgePort, err = host.RandomFreePort(); err != nil {
				return err
			}
		} else if rec.BridgePort, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("port %q: %w", raw, config.ErrPortRange)
		}
	}
	if err := config.ValidatePort(rec.BridgePort); err != nil {
		return fmt.Errorf("port %d: %w", rec.BridgePort, err)
	}
	if !p.PortFree(rec.BridgePort) {
		return fmt.Errorf("port %d: %w", rec.BridgePort, config.ErrPortBusy)
	}

	if a != nil && a.Password != "" {
		rec.Password = a.Password
	} else {
		pw, err := ui.PromptSecret("VNC password (min 6 characters, empty to generate)", "use --password or --answers")
		if err != nil {
			return err
		}
		if pw == "" {
			if pw, err = host.RandomPassword(16); err != nil {
				return err
			}
			generatedPassword = true
		}
		rec.Password = pw
	}
	if err := config.ValidatePassword(rec.Password); err != nil {
		return err
	}

	fmt.Println(ui.InfoMsg("installing remote desktop for %s on port %s",
		ui.Accent(p.Sys.User.Name), ui.Accent(strconv.Itoa(rec.BridgePort))))

	if err := withProgress(cmd, p, "install", rec, func(ctx context.Context) error {
		return p.Install(ctx, rec)
	}); err != nil {
		return err
	}

	fmt.Println(ui.SuccessMsg("installation complete"))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("url", p.AccessURL(ctx, rec)),
		ui.KV("user", p.Sys.User.Name),
	))
	if generatedPassword {
		fmt.Println(ui.WarnMsg("generated VNC password: %s", ui.Bold(rec.Password)))
	}

	if a != nil {
		for _, name := range a.Apps {
			app := deskdroid.Component(name)
			fmt.Println(ui.InfoMsg("installing add-on %s", ui.Accent(name)))
			if err := p.InstallApp(ctx, app); err != nil {
				return err
			}
		}
	}
	return nil
}

// runRepair converges an existing installation back to complete.
func runRepair(cmd *cobra.Command, p *provision.Provisioner) error {
	rec, err := config.Load(p.Sys.Paths)
	if err != nil {
		return err
	}
	if err := withProgress(cmd, p, "repair", rec, func(ctx context.Context) error {
		return p.Repair(ctx)
	}); err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("repair complete"))
	return nil
}

func repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Re-probe every component and reinstall what is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			return runRepair(cmd, p)
		},
	}
}
