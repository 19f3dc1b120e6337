package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
)

func appsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage optional add-ons",
	}
	cmd.AddCommand(appsListCmd(), appsInstallCmd(), appsRemoveCmd())
	return cmd
}

func appsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List add-ons and whether they are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			rows := make([][]string, 0, len(deskdroid.Optional()))
			for _, app := range deskdroid.Optional() {
				rows = append(rows, []string{
					string(app),
					appDescription(app),
					ui.Present(p.AppInstalled(ctx, app), "installed", "not installed"),
				})
			}
			fmt.Println(ui.Table([]string{"app", "description", "state"}, rows))
			return nil
		},
	}
}

func appsInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <app>",
		Short: "Install an add-on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			app := deskdroid.Component(args[0])
			if err := ui.RunWithSpinner(cmd.Context(), "installing "+args[0], func(ctx context.Context) error {
				return p.InstallApp(ctx, app)
			}); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("%s installed", args[0]))
			return nil
		},
	}
}

func appsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <app>",
		Short: "Remove an add-on (Android container only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner()
			if err != nil {
				return err
			}
			app := deskdroid.Component(args[0])
			if err := ui.RunWithSpinner(cmd.Context(), "removing "+args[0], func(ctx context.Context) error {
				return p.RemoveApp(ctx, app)
			}); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("%s removed", args[0]))
			return nil
		},
	}
}

func appDescription(app deskdroid.Component) string {
	switch app {
	case deskdroid.AndroidStudio:
		return "Android Studio IDE"
	case deskdroid.ChineseInput:
		return "fcitx5 Chinese input method"
	case deskdroid.Clipboard:
		return "VNC clipboard sync (autocutsel)"
	case deskdroid.Redroid:
		return "Android-in-container with adb access"
	default:
		return ""
	}
}
