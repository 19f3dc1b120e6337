package host

import (
	"fmt"
	"net"
	"os"
	"os/exec"
)

// FileExists reports whether a path exists. Symlinks count if the target
// resolves.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExecutableInPath reports whether a binary resolves via PATH.
func ExecutableInPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// PortFree reports whether a TCP port can currently be bound on all
// interfaces.
func PortFree(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
