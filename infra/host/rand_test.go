package host

import (
	"net"
	"strings"
	"testing"
)

func TestRandomFreePort_InRange(t *testing.T) {
	for range 16 {
		port, err := RandomFreePort()
		if err != nil {
			t.Fatalf("RandomFreePort: %v", err)
		}
		if port < 10000 || port >= 60000 {
			t.Fatalf("port %d outside [10000, 60000)", port)
		}
		if !PortFree(port) {
			t.Fatalf("returned port %d is not bindable", port)
		}
	}
}

func TestRandomPassword(t *testing.T) {
	seen := map[string]bool{}
	for range 8 {
		pw, err := RandomPassword(16)
		if err != nil {
			t.Fatalf("RandomPassword: %v", err)
		}
		if len(pw) != 16 {
			t.Fatalf("password length = %d, want 16", len(pw))
		}
		for _, r := range pw {
			if !strings.ContainsRune(passwordAlphabet, r) {
				t.Fatalf("password %q contains %q outside alphabet", pw, r)
			}
		}
		if seen[pw] {
			t.Fatalf("duplicate password %q across draws", pw)
		}
		seen[pw] = true
	}
}

func TestPortFree(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	if PortFree(port) {
		t.Fatalf("PortFree(%d) = true while a listener is bound", port)
	}
}
