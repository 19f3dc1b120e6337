package systemd

import (
	"strings"
	"testing"
)

func TestDisplayUnit(t *testing.T) {
	out, err := DisplayUnit(DisplayUnitParams{User: "dev", Home: "/home/dev", Display: 1})
	if err != nil {
		t.Fatalf("DisplayUnit: %v", err)
	}
	for _, want := range []string{
		"User=dev",
		"Environment=HOME=/home/dev",
		"ExecStart=/usr/bin/vncserver :1 -localhost yes",
		"WantedBy=multi-user.target",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("display unit missing %q:\n%s", want, out)
		}
	}
}

func TestBridgeUnit(t *testing.T) {
	out, err := BridgeUnit(BridgeUnitParams{
		ListenPort: 26080,
		TargetPort: 5901,
		CertPath:   "/etc/novnc/novnc.pem",
	})
	if err != nil {
		t.Fatalf("BridgeUnit: %v", err)
	}
	for _, want := range []string{
		"--cert /etc/novnc/novnc.pem 26080 localhost:5901",
		"--web /usr/share/novnc",
		"Requires=deskdroid-vnc.service",
		"After=network.target deskdroid-vnc.service",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("bridge unit missing %q:\n%s", want, out)
		}
	}
}

func TestBridgeUnit_PortChangeRegeneratesContent(t *testing.T) {
	p := BridgeUnitParams{ListenPort: 26080, TargetPort: 5901, CertPath: "/etc/novnc/novnc.pem"}
	a, err := BridgeUnit(p)
	if err != nil {
		t.Fatal(err)
	}
	p.ListenPort = 31443
	b, err := BridgeUnit(p)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("bridge unit identical across port change")
	}
	if !strings.Contains(b, "31443 localhost:5901") {
		t.Fatalf("regenerated unit missing new port:\n%s", b)
	}
}
