package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/internal/provision"
)

// The management menu is a finite-state controller: the state is the menu
// being shown, the transition is the selected item. Transitions are pure
// (menuTransition) so the flow is testable without a terminal; actions
// run only in the dispatch step.

type menuState uint8

const (
	menuMain menuState = iota
	menuApps
	menuExit
)

type menuOp string

const (
	opNone      menuOp = ""
	opStatus    menuOp = "status"
	opStart     menuOp = "start"
	opStop      menuOp = "stop"
	opRestart   menuOp = "restart"
	opPasswd    menuOp = "passwd"
	opPort      menuOp = "port"
	opLogs      menuOp = "logs"
	opRepair    menuOp = "repair"
	opUninstall menuOp = "uninstall"
)

type menuItem struct {
	key   string
	label string
	op    menuOp
	next  menuState
}

func menuItems(state menuState) []menuItem {
	switch state {
	case menuMain:
		return []menuItem{
			{key: "1", label: "Status", op: opStatus, next: menuMain},
			{key: "2", label: "Start services", op: opStart, next: menuMain},
			{key: "3", label: "Stop services", op: opStop, next: menuMain},
			{key: "4", label: "Restart services", op: opRestart, next: menuMain},
			{key: "5", label: "Change VNC password", op: opPasswd, next: menuMain},
			{key: "6", label: "Change bridge port", op: opPort, next: menuMain},
			{key: "7", label: "Show logs", op: opLogs, next: menuMain},
			{key: "8", label: "Repair installation", op: opRepair, next: menuMain},
			{key: "9", label: "Optional apps", op: opNone, next: menuApps},
			{key: "u", label: "Uninstall", op: opUninstall, next: menuExit},
			{key: "q", label: "Quit", op: opNone, next: menuExit},
		}
	case menuApps:
		items := make([]menuItem, 0, len(deskdroid.Optional())+1)
		for i, app := range deskdroid.Optional() {
			items = append(items, menuItem{
				key:   fmt.Sprintf("%d", i+1),
				label: "Install " + appDescription(app),
				op:    menuOp("app:" + string(app)),
				next:  menuApps,
			})
		}
		items = append(items, menuItem{key: "b", label: "Back", op: opNone, next: menuMain})
		return items
	default:
		return nil
	}
}

// menuTransition maps a selection to the next state and the action to run.
// Unknown selections report ok=false and leave the state unchanged.
func menuTransition(state menuState, choice string) (next menuState, op menuOp, ok bool) {
	choice = strings.TrimSpace(strings.ToLower(choice))
	for _, item := range menuItems(state) {
		if item.key == choice {
			return item.next, item.op, true
		}
	}
	return state, opNone, false
}

func runMenu(cmd *cobra.Command, p *provision.Provisioner) error {
	state := menuMain
	for state != menuExit {
		fmt.Println()
		switch state {
		case menuMain:
			fmt.Println(ui.Bold("deskdroid management"))
		case menuApps:
			fmt.Println(ui.Bold("optional apps"))
		}
		for _, item := range menuItems(state) {
			fmt.Printf("  %s) %s\n", ui.Accent(item.key), item.label)
		}

		choice, err := ui.Prompt("select", "", "use subcommands in non-interactive mode")
		if err != nil {
			return err
		}

		next, op, ok := menuTransition(state, choice)
		if !ok {
			fmt.Println(ui.WarnMsg("unknown selection %q", choice))
			continue
		}
		proceeded := true
		if op != opNone {
			var err error
			proceeded, err = dispatchMenuOp(cmd, p, op)
			if err != nil {
				// Validation and environment errors return to the menu;
				// only quitting leaves it.
				fmt.Println(ui.ErrorMsg("%v", err))
				continue
			}
		}
		state = menuAdvance(state, next, proceeded)
	}
	return nil
}

// menuAdvance picks the state after an item ran. An action that declined
// to run keeps the menu where it is; a declined uninstall must not quit.
func menuAdvance(state, next menuState, proceeded bool) menuState {
	if !proceeded {
		return state
	}
	return next
}

// dispatchMenuOp runs one menu action. It reports false when the action
// was declined at its confirmation prompt and the menu should stay put.
func dispatchMenuOp(cmd *cobra.Command, p *provision.Provisioner, op menuOp) (bool, error) {
	if app, isApp := strings.CutPrefix(string(op), "app:"); isApp {
		return true, ui.RunWithSpinner(cmd.Context(), "installing "+app, func(ctx context.Context) error {
			return p.InstallApp(ctx, deskdroid.Component(app))
		})
	}

	switch op {
	case opStatus:
		return true, statusCmd().RunE(cmd, nil)
	case opStart:
		return true, serviceOp(cmd, "starting services", func(ctx context.Context, p *provision.Provisioner) error {
			return p.StartServices(ctx)
		})
	case opStop:
		return true, serviceOp(cmd, "stopping services", func(ctx context.Context, p *provision.Provisioner) error {
			return p.StopServices(ctx)
		})
	case opRestart:
		return true, serviceOp(cmd, "restarting services", func(ctx context.Context, p *provision.Provisioner) error {
			return p.RestartServices(ctx)
		})
	case opPasswd:
		return true, passwdCmd().RunE(cmd, nil)
	case opPort:
		return true, portCmd().RunE(cmd, nil)
	case opLogs:
		return true, logsCmd().RunE(cmd, nil)
	case opRepair:
		return true, runRepair(cmd, p)
	case opUninstall:
		return runUninstall(cmd, false)
	default:
		return false, fmt.Errorf("unknown menu action %q", op)
	}
}
