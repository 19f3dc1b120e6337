package reconcile

import (
	"context"
	"errors"
	"slices"
	"testing"

	"deskdroid"
)

// fakeHost simulates component presence and records apply calls.
type fakeHost struct {
	present map[deskdroid.Component]bool
	applied []deskdroid.Component
	failOn  deskdroid.Component
	failErr error
}

func (h *fakeHost) entry(id deskdroid.Component, needs ...deskdroid.Component) Entry {
	return Entry{
		ID:    id,
		Title: string(id),
		Needs: needs,
		Probe: func(context.Context) bool { return h.present[id] },
		Apply: func(context.Context) error {
			h.applied = append(h.applied, id)
			if id == h.failOn {
				return h.failErr
			}
			h.present[id] = true
			return nil
		},
	}
}

// desktopCatalog mirrors the production dependency graph.
func desktopCatalog(t *testing.T, h *fakeHost) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		h.entry(deskdroid.Xfce),
		h.entry(deskdroid.TigerVNC),
		h.entry(deskdroid.NoVNC),
		h.entry(deskdroid.Java),
		h.entry(deskdroid.Chrome),
		h.entry(deskdroid.VNCConfig, deskdroid.Xfce, deskdroid.TigerVNC),
		h.entry(deskdroid.SSL, deskdroid.NoVNC),
		h.entry(deskdroid.VNCService, deskdroid.TigerVNC, deskdroid.VNCConfig),
		h.entry(deskdroid.NoVNCService, deskdroid.NoVNC, deskdroid.SSL, deskdroid.VNCService),
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func allPresent() map[deskdroid.Component]bool {
	m := make(map[deskdroid.Component]bool)
	for _, c := range deskdroid.Required() {
		m[c] = true
	}
	return m
}

func TestProbe_TotalOverCatalog(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{deskdroid.Xfce: true}}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	status := r.Probe(context.Background())
	if len(status) != 9 {
		t.Fatalf("status covers %d components, want 9", len(status))
	}
	if status[deskdroid.Xfce] != deskdroid.Present {
		t.Fatal("xfce should probe Present")
	}
	if status[deskdroid.TigerVNC] != deskdroid.Missing {
		t.Fatal("tigervnc should probe Missing")
	}
	if len(h.applied) != 0 {
		t.Fatalf("probe mutated the host: applied %v", h.applied)
	}
}

func TestPlan_EmptyWhenComplete(t *testing.T) {
	h := &fakeHost{present: allPresent()}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	plan := r.Plan(r.Probe(context.Background()))
	if len(plan) != 0 {
		t.Fatalf("plan on healthy host = %v, want empty", plan)
	}
}

func TestPlan_DependencyOrder(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{}}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	plan := r.Plan(r.Probe(context.Background()))
	if len(plan) != 9 {
		t.Fatalf("fresh-host plan has %d components, want 9", len(plan))
	}

	pos := make(map[deskdroid.Component]int, len(plan))
	for i, c := range plan {
		pos[c] = i
	}
	deps := map[deskdroid.Component][]deskdroid.Component{
		deskdroid.VNCConfig:    {deskdroid.Xfce, deskdroid.TigerVNC},
		deskdroid.SSL:          {deskdroid.NoVNC},
		deskdroid.VNCService:   {deskdroid.TigerVNC, deskdroid.VNCConfig},
		deskdroid.NoVNCService: {deskdroid.NoVNC, deskdroid.SSL, deskdroid.VNCService},
	}
	for comp, needs := range deps {
		for _, dep := range needs {
			if pos[dep] >= pos[comp] {
				t.Errorf("%s at %d not before %s at %d", dep, pos[dep], comp, pos[comp])
			}
		}
	}
}

func TestPlan_Deterministic(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{}}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	status := r.Probe(context.Background())
	if !slices.Equal(r.Plan(status), r.Plan(status)) {
		t.Fatal("Plan is not deterministic for identical input")
	}
}

func TestPlan_MissingDisplayServerDragsDependents(t *testing.T) {
	present := allPresent()
	present[deskdroid.TigerVNC] = false
	h := &fakeHost{present: present}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	plan := r.Plan(r.Probe(context.Background()))
	want := []deskdroid.Component{deskdroid.TigerVNC, deskdroid.VNCConfig, deskdroid.VNCService, deskdroid.NoVNCService}
	if !slices.Equal(plan, want) {
		t.Fatalf("plan = %v, want %v", plan, want)
	}
}

func TestApply_FailFastLeavesAppliedIntact(t *testing.T) {
	bootErr := errors.New("mirror unreachable")
	h := &fakeHost{present: map[deskdroid.Component]bool{}, failOn: deskdroid.NoVNC, failErr: bootErr}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	plan := r.Plan(r.Probe(context.Background()))
	err := r.Apply(context.Background(), plan)
	if !errors.Is(err, bootErr) {
		t.Fatalf("Apply error = %v, want the component failure", err)
	}

	// Everything before the failure stays applied; nothing after ran.
	failIdx := slices.Index(h.applied, deskdroid.NoVNC)
	if failIdx < 0 || failIdx != len(h.applied)-1 {
		t.Fatalf("apply calls after failure: %v", h.applied)
	}
	if !h.present[deskdroid.Xfce] || !h.present[deskdroid.TigerVNC] {
		t.Fatal("components applied before the failure were rolled back")
	}

	// The next run retries the failed component.
	h.failOn = ""
	replan := r.Plan(r.Probe(context.Background()))
	if replan[0] != deskdroid.NoVNC {
		t.Fatalf("re-plan = %v, want novnc first", replan)
	}
}

func TestReconcile_ConvergesFreshHost(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{}}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	status, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !status.Complete() {
		t.Fatalf("post-reconcile status incomplete: %v", status)
	}
}

func TestReconcile_PresentComponentsNotReapplied(t *testing.T) {
	present := allPresent()
	present[deskdroid.Chrome] = false
	h := &fakeHost{present: present}
	r := &Reconciler{Catalog: desktopCatalog(t, h)}

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !slices.Equal(h.applied, []deskdroid.Component{deskdroid.Chrome}) {
		t.Fatalf("applied = %v, want only chrome", h.applied)
	}
}

func TestNewCatalog_RejectsUnknownDependency(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{}}
	_, err := NewCatalog(h.entry(deskdroid.VNCConfig, deskdroid.TigerVNC))
	if err == nil {
		t.Fatal("catalog accepted a dependency on an undeclared component")
	}
}

func TestNewCatalog_RejectsCycle(t *testing.T) {
	h := &fakeHost{present: map[deskdroid.Component]bool{}}
	a := h.entry("a", "b")
	b := h.entry("b", "a")
	if _, err := NewCatalog(a, b); err == nil {
		t.Fatal("catalog accepted a dependency cycle")
	}
}
