package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/internal/journal"
	"deskdroid/internal/provision"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the display server and the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serviceOp(cmd, "starting services", func(ctx context.Context, p *provision.Provisioner) error {
				return p.StartServices(ctx)
			})
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the bridge and the display server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serviceOp(cmd, "stopping services", func(ctx context.Context, p *provision.Provisioner) error {
				return p.StopServices(ctx)
			})
		},
	}
}

func restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart both services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serviceOp(cmd, "restarting services", func(ctx context.Context, p *provision.Provisioner) error {
				return p.RestartServices(ctx)
			})
		},
	}
}

func serviceOp(cmd *cobra.Command, msg string, fn func(context.Context, *provision.Provisioner) error) error {
	p, err := newProvisioner()
	if err != nil {
		return err
	}
	if err := ui.RunWithSpinner(cmd.Context(), msg, func(ctx context.Context) error {
		return fn(ctx, p)
	}); err != nil {
		return err
	}
	display, bridge := p.ServiceStates(cmd.Context())
	fmt.Print(ui.KeyValues("",
		ui.KV("display service", serviceLabel(display)),
		ui.KV("bridge service", serviceLabel(bridge)),
	))
	return nil
}

func logsCmd() *cobra.Command {
	var (
		lines int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "logs [vnc|novnc]",
		Short: "Show run history, or a service's journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(args) == 1 {
				var unit string
				switch args[0] {
				case "vnc":
					unit = deskdroid.DisplayService
				case "novnc":
					unit = deskdroid.BridgeService
				default:
					return fmt.Errorf("unknown service %q (want vnc or novnc)", args[0])
				}
				out, err := p.Systemd.Journal(ctx, unit, lines)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}

			j, err := journal.Open(journal.DefaultPath)
			if err != nil {
				return err
			}
			defer j.Close()

			if runID != "" {
				steps, err := j.Steps(ctx, runID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(steps))
				for _, s := range steps {
					rows = append(rows, []string{
						s.At.Local().Format("15:04:05"),
						s.Component,
						ui.Present(s.Outcome == "applied", s.Outcome, s.Outcome),
						s.Detail,
					})
				}
				fmt.Println(ui.Table([]string{"at", "component", "outcome", "detail"}, rows))
				return nil
			}

			runs, err := j.RecentRuns(ctx, lines)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				outcome := r.Outcome
				if outcome == "" {
					outcome = "in flight"
				}
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Kind,
					ui.Present(outcome == "ok", outcome, outcome),
					r.ID,
				})
			}
			fmt.Println(ui.Table([]string{"started", "kind", "outcome", "run id"}, rows))
			fmt.Println(ui.Muted("use --run <id> for per-component steps"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "How many runs or journal lines to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the steps of one run")
	return cmd
}

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd [password]",
		Short: "Change the VNC password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				if pw, err = ui.PromptSecret("New VNC password (min 6 characters)", "pass the password as an argument"); err != nil {
					return err
				}
			}
			if err := ui.RunWithSpinner(cmd.Context(), "changing password", func(ctx context.Context) error {
				return p.ChangePassword(ctx, pw)
			}); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("password changed; display server restarted"))
			return nil
		},
	}
}

func portCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "port [port]",
		Short: "Change the bridge port",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				if raw, err = ui.Prompt("New bridge port", "6080", "pass the port as an argument"); err != nil {
					return err
				}
			}
			port, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("port %q is not a number", raw)
			}
			if err := ui.RunWithSpinner(cmd.Context(), "changing port", func(ctx context.Context) error {
				return p.ChangePort(ctx, port)
			}); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("bridge now listens on %s", ui.Accent(raw)))
			return nil
		},
	}
}
