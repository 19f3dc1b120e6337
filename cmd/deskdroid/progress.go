package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"deskdroid"
	"deskdroid/cmd/deskdroid/ui"
	"deskdroid/config"
	"deskdroid/internal/journal"
	"deskdroid/internal/provision"
	"deskdroid/internal/reconcile"
)

// withProgress runs a converging operation with a live checklist of the
// planned component actions and a journal entry for `deskdroid logs`.
// The journal is best-effort; a read-only state dir never blocks an
// install.
func withProgress(cmd *cobra.Command, p *provision.Provisioner, kind string, rec *config.Record, op func(ctx context.Context) error) error {
	ctx := cmd.Context()

	catalog, err := p.Catalog(rec)
	if err != nil {
		return err
	}
	preview := &reconcile.Reconciler{Catalog: catalog}
	plan := preview.Plan(preview.Probe(ctx))

	steps := make([]ui.Step, 0, len(plan))
	for _, id := range plan {
		steps = append(steps, ui.Step{ID: string(id), Title: catalog.Title(id)})
	}
	cl := ui.NewChecklist(steps)
	defer cl.Close()

	var (
		j     *journal.Journal
		runID string
	)
	if j, err = journal.Open(filepath.Join(p.Sys.StateDir, "history.db")); err != nil {
		slog.Warn("journal unavailable", "error", err)
		j = nil
	} else {
		defer j.Close()
		if runID, err = j.BeginRun(ctx, kind); err != nil {
			slog.Warn("journal unavailable", "error", err)
			j = nil
		}
	}

	p.OnEvent = func(event string, component deskdroid.Component, message string) {
		switch event {
		case "apply.start":
			cl.Start(string(component))
		case "apply.done":
			cl.Done(string(component))
			if j != nil {
				_ = j.RecordStep(ctx, runID, string(component), "applied", "")
			}
		case "apply.error":
			cl.Fail(string(component), message)
			if j != nil {
				_ = j.RecordStep(ctx, runID, string(component), "failed", message)
			}
		}
	}
	defer func() { p.OnEvent = nil }()

	opErr := op(ctx)
	if j != nil {
		outcome := "ok"
		if opErr != nil {
			outcome = "failed"
		}
		_ = j.FinishRun(ctx, runID, outcome)
	}
	return opErr
}
