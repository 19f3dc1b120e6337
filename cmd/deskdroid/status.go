package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/config"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show component and service status",
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

			rows := make([][]string, 0, len(deskdroid.Required()))
			for _, c := range deskdroid.Required() {
				rows = append(rows, []string{
					string(c),
					ui.Present(status[c] == deskdroid.Present, "present", "missing"),
				})
			}
			fmt.Println(ui.Table([]string{"component", "state"}, rows))

			display, bridge := p.ServiceStates(ctx)
			pairs := []ui.Pair{
				ui.KV("display service", serviceLabel(display)),
				ui.KV("bridge service", serviceLabel(bridge)),
			}

			rec, err := config.Load(p.Sys.Paths)
			switch {
			case err == nil:
				pairs = append(pairs,
					ui.KV("url", p.AccessURL(ctx, rec)),
					ui.KV("installed", rec.CreatedAt.Format("2006-01-02")),
				)
			case errors.Is(err, config.ErrNotFound):
				pairs = append(pairs, ui.KV("config", ui.Muted("none")))
			default:
				return err
			}
			fmt.Print(ui.KeyValues("", pairs...))

			if status.Complete() {
				fmt.Println(ui.SuccessMsg("fully installed"))
			} else if status.Empty() {
				fmt.Println(ui.WarnMsg("not installed; run `deskdroid install`"))
			} else {
				fmt.Println(ui.WarnMsg("partially installed; run `deskdroid repair`"))
			}
			return nil
		},
	}
}

func serviceLabel(s deskdroid.ServiceState) string {
	switch s {
	case deskdroid.Running:
		return ui.Success(s.String())
	case deskdroid.Stopped:
		return ui.Warn(s.String())
	default:
		return ui.Muted(s.String())
	}
}
