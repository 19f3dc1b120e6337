// Package reconcile implements the installation reconciler: probe the
// host for component presence, plan the ordered missing subset, apply
// idempotent installers, re-probe.
package reconcile

import (
	"context"
	"fmt"

	"deskdroid"
)

// Entry declares one managed component: a read-only probe, an idempotent
// apply action, and the components that must be applied before it.
type Entry struct {
	ID    deskdroid.Component
	Title string
	Needs []deskdroid.Component

	// Probe classifies the component Present or Missing. It must never
	// mutate the system and must tolerate a completely unconfigured host.
	Probe func(ctx context.Context) bool

	// Apply installs or configures the component. Safe to re-run over a
	// partial previous attempt; afterwards Probe must report Present.
	Apply func(ctx context.Context) error
}

// Catalog is the static set of managed components and their dependency
// graph. Construction validates the graph once; planning is then pure.
type Catalog struct {
	entries []Entry
	byID    map[deskdroid.Component]int
}

// NewCatalog builds a catalog, rejecting duplicate components, unknown
// dependencies and dependency cycles.
func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: entries,
		byID:    make(map[deskdroid.Component]int, len(entries)),
	}
	for i, e := range entries {
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate component %s", e.ID)
		}
		c.byID[e.ID] = i
	}
	for _, e := range entries {
		for _, dep := range e.Needs {
			if _, ok := c.byID[dep]; !ok {
				return nil, fmt.Errorf("component %s depends on unknown %s", e.ID, dep)
			}
		}
	}
	if _, err := c.order(func(deskdroid.Component) bool { return true }); err != nil {
		return nil, err
	}
	return c, nil
}

// Components returns the component IDs in declaration order.
func (c *Catalog) Components() []deskdroid.Component {
	out := make([]deskdroid.Component, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.ID
	}
	return out
}

// Title returns a component's display title, or the raw ID for unknown
// components.
func (c *Catalog) Title(id deskdroid.Component) string {
	if e, ok := c.entry(id); ok {
		return e.Title
	}
	return string(id)
}

func (c *Catalog) entry(id deskdroid.Component) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// order runs a stable topological sort over the subset selected by keep.
// Ties resolve by declaration order, so the result is deterministic.
func (c *Catalog) order(keep func(deskdroid.Component) bool) ([]deskdroid.Component, error) {
	placed := make(map[deskdroid.Component]bool, len(c.entries))
	var out []deskdroid.Component

	remaining := 0
	for _, e := range c.entries {
		if keep(e.ID) {
			remaining++
		}
	}

	for remaining > 0 {
		progressed := false
		for _, e := range c.entries {
			if placed[e.ID] || !keep(e.ID) {
				continue
			}
			ready := true
			for _, dep := range e.Needs {
				if keep(dep) && !placed[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			placed[e.ID] = true
			out = append(out, e.ID)
			remaining--
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle in component graph")
		}
	}
	return out, nil
}
