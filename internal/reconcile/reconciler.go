package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"deskdroid"
	"deskdroid/internal/check"
)

// Reconciler drives the probe/plan/apply loop that brings actual host
// state toward the declared complete state.
type Reconciler struct {
	Catalog  *Catalog
	LockPath string // exclusive flock around reconcile-and-apply; empty disables

	// OnEvent receives progress events for the CLI checklist:
	// "probe.done", "apply.start", "apply.done", "apply.error".
	OnEvent func(event string, component deskdroid.Component, message string)
}

func (r *Reconciler) emit(event string, component deskdroid.Component, message string) {
	if r.OnEvent != nil {
		r.OnEvent(event, component, message)
	}
	slog.Debug("reconcile event", "event", event, "component", component, "message", message)
}

// Probe snapshots every component's state. Read-only and side-effect-free;
// the returned map is total over the catalog.
func (r *Reconciler) Probe(ctx context.Context) deskdroid.Status {
	check.Assert(r.Catalog != nil, "Reconciler.Probe: Catalog must not be nil")

	status := make(deskdroid.Status, len(r.Catalog.entries))
	for _, e := range r.Catalog.entries {
		state := deskdroid.Missing
		if e.Probe(ctx) {
			state = deskdroid.Present
		}
		status[e.ID] = state
	}
	r.emit("probe.done", "", fmt.Sprintf("%d components probed", len(status)))
	return status
}

// Plan returns the ordered subset to apply: every Missing component plus
// every component whose dependency chain contains a Missing one (a present
// dependent of a missing dependency is stale and is re-applied). Every
// component is preceded by all of its planned dependencies. Deterministic
// and pure.
func (r *Reconciler) Plan(status deskdroid.Status) []deskdroid.Component {
	unhealthy := make(map[deskdroid.Component]bool, len(r.Catalog.entries))

	var visit func(id deskdroid.Component) bool
	visit = func(id deskdroid.Component) bool {
		if bad, seen := unhealthy[id]; seen {
			return bad
		}
		unhealthy[id] = false // break cycles defensively; catalog is acyclic
		e, ok := r.Catalog.entry(id)
		bad := !ok || status[id] != deskdroid.Present
		if !bad {
			for _, dep := range e.Needs {
				if visit(dep) {
					bad = true
					break
				}
			}
		}
		unhealthy[id] = bad
		return bad
	}
	for _, e := range r.Catalog.entries {
		visit(e.ID)
	}

	// The catalog was validated acyclic at construction.
	order, err := r.Catalog.order(func(id deskdroid.Component) bool { return unhealthy[id] })
	check.Assert(err == nil, "Reconciler.Plan: validated catalog cannot cycle")
	return order
}

// Apply runs each planned component's installer in order, fail-fast. A
// failing action aborts the remaining plan and leaves already-applied
// components intact; the next invocation's Probe finds the same component
// still Missing and Plan retries it. That re-invocation is the only retry
// mechanism.
func (r *Reconciler) Apply(ctx context.Context, plan []deskdroid.Component) error {
	for _, id := range plan {
		e, ok := r.Catalog.entry(id)
		if !ok {
			return fmt.Errorf("unknown component %s in plan", id)
		}
		r.emit("apply.start", id, e.Title)
		if err := e.Apply(ctx); err != nil {
			r.emit("apply.error", id, err.Error())
			return fmt.Errorf("apply %s: %w", id, err)
		}
		r.emit("apply.done", id, "")
	}
	return nil
}

// Reconcile locks, probes, plans, applies and re-probes. The returned
// status is the post-apply snapshot.
func (r *Reconciler) Reconcile(ctx context.Context) (deskdroid.Status, error) {
	release, err := AcquireLock(r.LockPath)
	if err != nil {
		return nil, err
	}
	defer release()

	status := r.Probe(ctx)
	plan := r.Plan(status)
	if len(plan) == 0 {
		return status, nil
	}
	if err := r.Apply(ctx, plan); err != nil {
		return r.Probe(ctx), err
	}
	return r.Probe(ctx), nil
}
