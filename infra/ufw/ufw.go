// Package ufw opens firewall ports for the bridge (and, when the Android
// container add-on is installed, the adb port).
package ufw

import (
	"context"
	"fmt"

	"deskdroid/infra/host"
)

// Firewall drives ufw through the host Runner.
type Firewall struct {
	Run host.Runner
}

// Allow opens a TCP port. Re-allowing an open port is a no-op for ufw.
// Old ports are deliberately never revoked on port change; the operator
// may still be connected through one.
func (f Firewall) Allow(ctx context.Context, port int) error {
	if err := f.Run.Run(ctx, "ufw", "allow", fmt.Sprintf("%d/tcp", port)); err != nil {
		return fmt.Errorf("ufw allow %d: %w", port, err)
	}
	return nil
}
