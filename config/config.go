// Package config handles the persisted installation record.
//
// The record is a key=value file at /etc/deskdroid/deskdroid.conf — the
// single authoritative copy system-wide. A legacy per-user path
// (~/.deskdroid.conf) is accepted as a fallback read location; writes
// always go to the system path.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Record keys as they appear in the config file.
const (
	keyBridgePort  = "NOVNC_PORT"
	keyPassword    = "VNC_PASSWORD"
	keyDisplayPort = "VNC_PORT"
	keyInstallUser = "INSTALL_USER"
	keyCreatedAt   = "CREATED_AT"
)

// DisplayPort is the fixed internal display-server port (display :1).
// The display server only ever listens on loopback; the bridge is the
// single externally reachable surface.
const DisplayPort = 5901

// Validation errors surfaced to the operator. The wizard exits 1 on these;
// the management menu reprints them and returns.
var (
	ErrPortRange     = errors.New("port must be between 1024 and 65535")
	ErrPortBusy      = errors.New("port is already in use")
	ErrPasswordShort = errors.New("password must be at least 6 characters")
	ErrNotFound      = errors.New("no installation record found")
)

// Record is the persisted installation state. Created at first successful
// install, read by every subsequent invocation, mutated in place by the
// port- and password-change operations, deleted on uninstall.
type Record struct {
	BridgePort  int
	Password    string
	DisplayPort int
	InstallUser string
	CreatedAt   time.Time
}

// Paths resolves where the record lives. Constructed once at startup;
// nothing below reads ambient process state.
type Paths struct {
	System string // authoritative copy
	Legacy string // read-only fallback from older releases
}

// DefaultPaths returns the standard search order. home may be empty when
// the invoking user has no home directory; the legacy path is then skipped.
func DefaultPaths(home string) Paths {
	p := Paths{System: "/etc/deskdroid/deskdroid.conf"}
	if home != "" {
		p.Legacy = filepath.Join(home, ".deskdroid.conf")
	}
	return p
}

// Load reads the record, trying the system path first and the legacy
// per-user path second. Returns ErrNotFound when neither exists.
func Load(paths Paths) (*Record, error) {
	for _, p := range []string{paths.System, paths.Legacy} {
		if p == "" {
			continue
		}
		env, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
		return parse(env, p)
	}
	return nil, ErrNotFound
}

// Save writes the record to the system path, creating directories as needed.
// The file holds the VNC password, so it is created 0600 and swapped into
// place with a rename; at no point is the password readable by others,
// even over a pre-existing file with looser permissions.
func Save(paths Paths, r *Record) error {
	if err := os.MkdirAll(filepath.Dir(paths.System), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	content, err := godotenv.Marshal(map[string]string{
		keyBridgePort:  strconv.Itoa(r.BridgePort),
		keyPassword:    r.Password,
		keyDisplayPort: strconv.Itoa(r.DisplayPort),
		keyInstallUser: r.InstallUser,
		keyCreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := paths.System + ".tmp"
	_ = os.Remove(tmp)
	if err := os.WriteFile(tmp, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, paths.System); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Remove deletes the record from both paths. Missing files are not an error.
func Remove(paths Paths) error {
	for _, p := range []string{paths.System, paths.Legacy} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove config %s: %w", p, err)
		}
	}
	return nil
}

func parse(env map[string]string, path string) (*Record, error) {
	r := &Record{DisplayPort: DisplayPort}

	port, err := strconv.Atoi(env[keyBridgePort])
	if err != nil {
		return nil, fmt.Errorf("config %s: bad %s %q", path, keyBridgePort, env[keyBridgePort])
	}
	r.BridgePort = port

	if v := env[keyDisplayPort]; v != "" {
		if dp, err := strconv.Atoi(v); err == nil {
			r.DisplayPort = dp
		}
	}

	r.Password = env[keyPassword]
	r.InstallUser = env[keyInstallUser]
	if v := env[keyCreatedAt]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			r.CreatedAt = t
		}
	}
	return r, nil
}

// ValidatePort checks the numeric range only. Whether the port is
// currently bound is the caller's concern (it needs a live listener probe).
func ValidatePort(port int) error {
	if port < 1024 || port > 65535 {
		return ErrPortRange
	}
	return nil
}

// ValidatePassword enforces the minimum length accepted by the VNC
// credential store.
func ValidatePassword(pw string) error {
	if len(pw) < 6 {
		return ErrPasswordShort
	}
	return nil
}
