package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"deskdroid"
	"deskdroid/config"
	"deskdroid/infra/host"
	"deskdroid/infra/vncauth"
)

// fakeRunner answers dpkg-query from an in-memory package set and records
// every command so tests can assert ordering. Safe for concurrent use so
// tests can exercise the operation lock.
type fakeRunner struct {
	mu        sync.Mutex
	installed map[string]bool
	cmds      []string
	fail      map[string]error // command-line prefix -> error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{installed: map[string]bool{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.Join(append([]string{name}, args...), " ")
	f.cmds = append(f.cmds, line)
	for prefix, err := range f.fail {
		if strings.HasPrefix(line, prefix) {
			return err
		}
	}
	if name == "env" {
		for i, a := range args {
			if a == "-y" {
				for _, pkg := range args[i+1:] {
					if pkg == chromeDebPath {
						pkg = "google-chrome-stable"
					}
					f.installed[pkg] = true
				}
				break
			}
		}
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, strings.Join(append([]string{name}, args...), " "))
	switch name {
	case "dpkg-query":
		pkg := args[len(args)-1]
		if f.installed[pkg] {
			return "install ok installed", nil
		}
		return "", errors.New("package not installed")
	case "hostname":
		return "192.0.2.10 fe80::1\n", nil
	}
	return "", nil
}

func (f *fakeRunner) ran(prefix string) bool {
	return f.indexOf(prefix) != -1
}

func (f *fakeRunner) indexOf(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.cmds {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

var _ host.Runner = (*fakeRunner)(nil)

func newTestProvisioner(t *testing.T) (*Provisioner, *fakeRunner) {
	t.Helper()
	dir := t.TempDir()
	fr := newFakeRunner()
	p := New(System{
		Runner:     fr,
		Paths:      config.Paths{System: filepath.Join(dir, "deskdroid.conf")},
		User:       InstallUser{Name: "dev", Home: filepath.Join(dir, "home")},
		CertPath:   filepath.Join(dir, "novnc.pem"),
		UnitDir:    filepath.Join(dir, "units"),
		DesktopDir: filepath.Join(dir, "Desktop"),
		LockPath:   filepath.Join(dir, "deskdroid.lock"),
	})
	p.PortFree = func(int) bool { return true }
	return p, fr
}

func TestProbe_FreshHostAllMissing(t *testing.T) {
	p, _ := newTestProvisioner(t)

	status, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(status) != len(deskdroid.Required()) {
		t.Fatalf("probe covered %d components, want %d", len(status), len(deskdroid.Required()))
	}
	if !status.Empty() {
		t.Fatalf("fresh host not all missing: %v", status)
	}
}

func TestInstall_ConvergesFreshHost(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	rec := &config.Record{BridgePort: 6080, Password: "hunter2"}
	if err := p.Install(ctx, rec); err != nil {
		t.Fatalf("Install: %v", err)
	}

	status, err := p.Probe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete() {
		t.Fatalf("post-install status incomplete: %v", status)
	}

	loaded, err := config.Load(p.Sys.Paths)
	if err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	if loaded.BridgePort != 6080 || loaded.Password != "hunter2" {
		t.Fatalf("persisted record = %+v", loaded)
	}
	if loaded.InstallUser != "dev" || loaded.CreatedAt.IsZero() {
		t.Fatalf("record missing install metadata: %+v", loaded)
	}

	if !fr.ran("env DEBIAN_FRONTEND=noninteractive apt-get update") {
		t.Fatal("apt index never refreshed")
	}
	if !fr.ran("ufw allow 6080/tcp") {
		t.Fatal("bridge port not opened in firewall")
	}

	display := fr.indexOf("systemctl start deskdroid-vnc.service")
	bridge := fr.indexOf("systemctl start deskdroid-novnc.service")
	if display == -1 || bridge == -1 {
		t.Fatalf("services not started: %v", fr.cmds)
	}
	if display > bridge {
		t.Fatal("bridge started before display server")
	}

	unit, err := os.ReadFile(p.Systemd.UnitPath(deskdroid.BridgeService))
	if err != nil {
		t.Fatalf("bridge unit not written: %v", err)
	}
	if !strings.Contains(string(unit), "6080") {
		t.Fatal("bridge unit does not carry the configured port")
	}
	if _, err := os.Stat(filepath.Join(p.Sys.DesktopDir, "google-chrome.desktop")); err != nil {
		t.Fatalf("chrome shortcut not written: %v", err)
	}
}

func TestInstall_RejectsInvalidInput(t *testing.T) {
	p, _ := newTestProvisioner(t)
	ctx := context.Background()

	err := p.Install(ctx, &config.Record{BridgePort: 80, Password: "hunter2"})
	if !errors.Is(err, config.ErrPortRange) {
		t.Fatalf("privileged port accepted: %v", err)
	}
	err = p.Install(ctx, &config.Record{BridgePort: 6080, Password: "abc"})
	if !errors.Is(err, config.ErrPasswordShort) {
		t.Fatalf("short password accepted: %v", err)
	}
	if _, err := config.Load(p.Sys.Paths); !errors.Is(err, config.ErrNotFound) {
		t.Fatal("rejected install left a config record behind")
	}
}

func TestRepair_OnlyReappliesMissing(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}

	// Simulate drift: the bridge unit disappears.
	if err := os.Remove(p.Systemd.UnitPath(deskdroid.BridgeService)); err != nil {
		t.Fatal(err)
	}
	fr.cmds = nil

	if err := p.Repair(ctx); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !p.Systemd.UnitInstalled(deskdroid.BridgeService) {
		t.Fatal("repair did not restore the bridge unit")
	}
	if fr.ran("env DEBIAN_FRONTEND=noninteractive apt-get install") {
		t.Fatalf("repair reinstalled packages that were present: %v", fr.cmds)
	}
}

func TestChangePort_RewritesUnitAndRestarts(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}
	fr.cmds = nil

	if err := p.ChangePort(ctx, 7443); err != nil {
		t.Fatalf("ChangePort: %v", err)
	}

	rec, err := config.Load(p.Sys.Paths)
	if err != nil {
		t.Fatal(err)
	}
	if rec.BridgePort != 7443 {
		t.Fatalf("record port = %d, want 7443", rec.BridgePort)
	}
	unit, err := os.ReadFile(p.Systemd.UnitPath(deskdroid.BridgeService))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(unit), "7443") || strings.Contains(string(unit), "6080") {
		t.Fatalf("bridge unit not regenerated for new port:\n%s", unit)
	}
	if !fr.ran("ufw allow 7443/tcp") {
		t.Fatal("new port not opened")
	}
	if fr.ran("ufw delete") {
		t.Fatal("old port rule must not be revoked")
	}
	if !fr.ran("systemctl restart deskdroid-vnc.service") || !fr.ran("systemctl restart deskdroid-novnc.service") {
		t.Fatal("services not restarted")
	}
}

func TestChangePort_Validation(t *testing.T) {
	p, _ := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}

	if err := p.ChangePort(ctx, 70000); !errors.Is(err, config.ErrPortRange) {
		t.Fatalf("out-of-range port accepted: %v", err)
	}

	p.PortFree = func(int) bool { return false }
	if err := p.ChangePort(ctx, 7443); !errors.Is(err, config.ErrPortBusy) {
		t.Fatalf("busy port accepted: %v", err)
	}
	// Re-saving the current port is fine even while it is bound (it is
	// bound by our own bridge).
	if err := p.ChangePort(ctx, 6080); err != nil {
		t.Fatalf("current port rejected: %v", err)
	}
}

func TestChangePassword_RestartsDisplayOnly(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}
	fr.cmds = nil

	if err := p.ChangePassword(ctx, "different"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	obf, err := os.ReadFile(p.VNC.CredentialPath())
	if err != nil {
		t.Fatal(err)
	}
	if !vncauth.Verify(obf, "different") {
		t.Fatal("credential store does not authenticate the new password")
	}
	if vncauth.Verify(obf, "hunter2") {
		t.Fatal("credential store still authenticates the old password")
	}

	rec, err := config.Load(p.Sys.Paths)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Password != "different" {
		t.Fatalf("record password = %q", rec.Password)
	}
	if !fr.ran("systemctl restart deskdroid-vnc.service") {
		t.Fatal("display server not restarted")
	}
	if fr.ran("systemctl restart deskdroid-novnc.service") {
		t.Fatal("bridge restarted needlessly")
	}
}

func TestChangePassword_TooShort(t *testing.T) {
	p, _ := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}
	if err := p.ChangePassword(ctx, "abc"); !errors.Is(err, config.ErrPasswordShort) {
		t.Fatalf("short password accepted: %v", err)
	}
	rec, _ := config.Load(p.Sys.Paths)
	if rec.Password != "hunter2" {
		t.Fatal("rejected change mutated the record")
	}
}

// Concurrent change operations both load, mutate and save the record.
// Without the operation lock one of the two writes wins and the other
// change silently disappears from the record.
func TestChangeOps_ConcurrentChangesBothPersist(t *testing.T) {
	p, _ := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		port := 20000 + i
		password := fmt.Sprintf("secret%02d", i)

		var wg sync.WaitGroup
		var portErr, pwErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			portErr = p.ChangePort(ctx, port)
		}()
		go func() {
			defer wg.Done()
			pwErr = p.ChangePassword(ctx, password)
		}()
		wg.Wait()
		if portErr != nil || pwErr != nil {
			t.Fatalf("iteration %d: ChangePort=%v ChangePassword=%v", i, portErr, pwErr)
		}

		rec, err := config.Load(p.Sys.Paths)
		if err != nil {
			t.Fatal(err)
		}
		if rec.BridgePort != port || rec.Password != password {
			t.Fatalf("iteration %d lost an update: record = port %d password %q, want %d / %q",
				i, rec.BridgePort, rec.Password, port, password)
		}
	}
}

func TestUninstall_RemovesEverything(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	if err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}
	fr.cmds = nil

	if err := p.Uninstall(ctx); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	for _, path := range []string{
		p.Systemd.UnitPath(deskdroid.DisplayService),
		p.Systemd.UnitPath(deskdroid.BridgeService),
		p.Sys.CertPath,
		p.VNC.CredentialPath(),
		filepath.Join(p.Sys.DesktopDir, "google-chrome.desktop"),
	} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still present after uninstall", path)
		}
	}
	if _, err := config.Load(p.Sys.Paths); !errors.Is(err, config.ErrNotFound) {
		t.Fatal("config record survived uninstall")
	}

	bridgeStop := fr.indexOf("systemctl stop deskdroid-novnc.service")
	displayStop := fr.indexOf("systemctl stop deskdroid-vnc.service")
	if bridgeStop == -1 || displayStop == -1 || bridgeStop > displayStop {
		t.Fatalf("services not stopped bridge-first: %v", fr.cmds)
	}

	// Uninstalling an already-clean host is a no-op.
	if err := p.Uninstall(ctx); err != nil {
		t.Fatalf("second Uninstall: %v", err)
	}
}

func TestInstall_FailFastSurfacesComponent(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	fr.fail["env DEBIAN_FRONTEND=noninteractive apt-get install -y novnc"] = errors.New("mirror unreachable")

	err := p.Install(ctx, &config.Record{BridgePort: 6080, Password: "hunter2"})
	if err == nil {
		t.Fatal("install succeeded despite failing package")
	}
	if !strings.Contains(err.Error(), "novnc") {
		t.Fatalf("error does not name the failed component: %v", err)
	}
	// Earlier components stay applied; nothing past the failure ran.
	if !fr.installed["xfce4"] {
		t.Fatal("components before the failure were rolled back")
	}
	if fr.ran("systemctl start") {
		t.Fatal("services started despite failed install")
	}

	// The record survives, so the resumed install reuses port and password.
	rec, err := config.Load(p.Sys.Paths)
	if err != nil {
		t.Fatal(err)
	}
	if rec.BridgePort != 6080 {
		t.Fatalf("resume record = %+v", rec)
	}

	delete(fr.fail, "env DEBIAN_FRONTEND=noninteractive apt-get install -y novnc")
	if err := p.Repair(ctx); err != nil {
		t.Fatalf("resume repair: %v", err)
	}
	status, _ := p.Probe(ctx)
	if !status.Complete() {
		t.Fatalf("resume did not converge: %v", status)
	}
}

func TestAccessURL(t *testing.T) {
	p, _ := newTestProvisioner(t)
	url := p.AccessURL(context.Background(), &config.Record{BridgePort: 6080})
	if url != "https://192.0.2.10:6080/vnc.html" {
		t.Fatalf("url = %s", url)
	}
}

func TestAppInstall_AptAddOns(t *testing.T) {
	p, fr := newTestProvisioner(t)
	ctx := context.Background()

	if p.AppInstalled(ctx, deskdroid.ChineseInput) {
		t.Fatal("add-on reported installed on fresh host")
	}
	if err := p.InstallApp(ctx, deskdroid.ChineseInput); err != nil {
		t.Fatalf("InstallApp: %v", err)
	}
	if !p.AppInstalled(ctx, deskdroid.ChineseInput) {
		t.Fatal("add-on not installed")
	}
	if err := p.InstallApp(ctx, deskdroid.Clipboard); err != nil {
		t.Fatal(err)
	}
	if !fr.installed["autocutsel"] {
		t.Fatal("clipboard package not installed")
	}

	if err := p.InstallApp(ctx, deskdroid.Component("nonsense")); err == nil {
		t.Fatal("unknown app accepted")
	}
}
