package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deskdroid/cmd/deskdroid/ui"
)

func uninstallCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove services, credentials, certificates and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runUninstall(cmd, yes)
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}

// runUninstall confirms unless assumeYes and reports whether the removal
// actually ran; a declined confirmation returns false with no error.
func runUninstall(cmd *cobra.Command, assumeYes bool) (bool, error) {
	p, err := newProvisioner()
	if err != nil {
		return false, err
	}

	if !assumeYes {
		ok, err := ui.Confirm("remove the remote desktop services and all generated state?", "use --yes to skip")
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if err := ui.RunWithSpinner(cmd.Context(), "uninstalling", func(ctx context.Context) error {
		return p.Uninstall(ctx)
	}); err != nil {
		return false, err
	}
	fmt.Println(ui.SuccessMsg("uninstalled; desktop packages were left in place"))
	return true, nil
}
