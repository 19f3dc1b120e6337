package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/internal/reconcile"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose per-component health",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			status, err := p.Probe(ctx)
			if err != nil {
				return err
			}
			display, bridge := p.ServiceStates(ctx)
			clock := reconcile.CheckClock("")

			fmt.Println(ui.InfoMsg("remote desktop diagnostic"))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("components", fmt.Sprintf("%d/%d present", presentCount(status), len(deskdroid.Required()))),
				ui.KV("display service", serviceLabel(display)),
				ui.KV("bridge service", serviceLabel(bridge)),
				ui.KV("clock sync", ui.Present(clock.Healthy, "ok", "skewed")),
			))

			type issue struct {
				component string
				problem   string
				fix       string
			}
			issues := make([]issue, 0, 8)

			for _, c := range deskdroid.Required() {
				if status[c] != deskdroid.Present {
					issues = append(issues, issue{
						component: string(c),
						problem:   "component is missing",
						fix:       "deskdroid repair",
					})
				}
			}
			if status.Complete() && display != deskdroid.Running {
				issues = append(issues, issue{
					component: "display",
					problem:   "display server is installed but not running",
					fix:       "deskdroid start",
				})
			}
			if status.Complete() && bridge != deskdroid.Running {
				issues = append(issues, issue{
					component: "bridge",
					problem:   "noVNC bridge is installed but not running",
					fix:       "deskdroid start",
				})
			}
			if !clock.Healthy {
				problem := fmt.Sprintf("clock offset %s may invalidate the self-signed certificate", clock.Offset)
				if clock.Error != "" {
					problem = "NTP check failed: " + clock.Error
				}
				issues = append(issues, issue{
					component: "clock",
					problem:   problem,
					fix:       "ensure NTP is configured (chrony or systemd-timesyncd)",
				})
			}

			if len(issues) == 0 {
				fmt.Println(ui.SuccessMsg("no issues detected"))
				return nil
			}

			fmt.Println(ui.WarnMsg("detected issues:"))
			for i, issue := range issues {
				fmt.Printf("  %d) %s: %s\n", i+1, issue.component, issue.problem)
				fmt.Println(ui.Muted("     fix: " + issue.fix))
			}
			return nil
		},
	}
}

func presentCount(status deskdroid.Status) int {
	n := 0
	for _, c := range deskdroid.Required() {
		if status[c] == deskdroid.Present {
			n++
		}
	}
	return n
}
