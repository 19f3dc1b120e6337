// Package xdg writes desktop shortcut descriptors for installed GUI
// applications. Shortcuts are generated artifacts and are deleted on
// uninstall.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Shortcut describes one .desktop entry.
type Shortcut struct {
	Name     string
	Exec     string
	Icon     string
	Comment  string
	Terminal bool
}

// Write renders the shortcut into dir as <slug>.desktop, overwriting any
// previous copy. Content is deterministic, so re-applies are no-ops.
func Write(dir string, slug string, s Shortcut) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shortcut dir: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("[Desktop Entry]\n")
	sb.WriteString("Version=1.0\n")
	sb.WriteString("Type=Application\n")
	fmt.Fprintf(&sb, "Name=%s\n", s.Name)
	fmt.Fprintf(&sb, "Exec=%s\n", s.Exec)
	if s.Icon != "" {
		fmt.Fprintf(&sb, "Icon=%s\n", s.Icon)
	}
	if s.Comment != "" {
		fmt.Fprintf(&sb, "Comment=%s\n", s.Comment)
	}
	fmt.Fprintf(&sb, "Terminal=%t\n", s.Terminal)

	path := filepath.Join(dir, slug+".desktop")
	if err := os.WriteFile(path, []byte(sb.String()), 0o755); err != nil {
		return fmt.Errorf("write shortcut %s: %w", slug, err)
	}
	return nil
}

// Remove deletes shortcuts by slug. Missing files are not an error.
func Remove(dir string, slugs ...string) error {
	for _, slug := range slugs {
		path := filepath.Join(dir, slug+".desktop")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove shortcut %s: %w", slug, err)
		}
	}
	return nil
}
