// Package vncauth writes the TigerVNC credential store and the xstartup
// script that launches the desktop session.
//
// The credential file holds the password obfuscated with single-block DES
// under a fixed key, as every VNC implementation since the original AT&T
// code expects. This is obfuscation, not protection; the file lives at
// mode 0600 under the install user's ~/.vnc.
package vncauth

import (
	"crypto/des"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
)

// Fixed obfuscation key shared by all VNC implementations.
var obfuscationKey = [8]byte{23, 82, 107, 6, 35, 78, 88, 7}

// Obfuscate returns the 8-byte credential-file content for a password.
// Passwords are truncated to 8 bytes and zero-padded, per the format.
func Obfuscate(password string) ([]byte, error) {
	var block [8]byte
	copy(block[:], password)

	// VNC's d3des consumes key bits in reverse order per byte, so the
	// key is bit-reversed before handing it to a standard DES.
	var key [8]byte
	for i, b := range obfuscationKey {
		key[i] = reverseBits(b)
	}

	cipher, err := des.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init des: %w", err)
	}
	out := make([]byte, 8)
	cipher.Encrypt(out, block[:])
	return out, nil
}

// Verify reports whether the obfuscated bytes authenticate the password.
func Verify(obfuscated []byte, password string) bool {
	want, err := Obfuscate(password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(obfuscated, want) == 1
}

// Store writes the credential file and xstartup under the install user's
// ~/.vnc, owned by that user.
type Store struct {
	Home string // install user's home directory
	UID  int
	GID  int
}

// Dir returns the ~/.vnc directory.
func (s Store) Dir() string { return filepath.Join(s.Home, ".vnc") }

// CredentialPath returns the password file consumed by the display server.
func (s Store) CredentialPath() string { return filepath.Join(s.Dir(), "passwd") }

// XStartupPath returns the session startup script.
func (s Store) XStartupPath() string { return filepath.Join(s.Dir(), "xstartup") }

// WriteCredential replaces the credential file so it authenticates only
// the given password.
func (s Store) WriteCredential(password string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	obf, err := Obfuscate(password)
	if err != nil {
		return err
	}
	path := s.CredentialPath()
	if err := os.WriteFile(path, obf, 0o600); err != nil {
		return fmt.Errorf("write vnc credential: %w", err)
	}
	return s.chown(path)
}

const xstartup = `#!/bin/sh
unset SESSION_MANAGER
unset DBUS_SESSION_BUS_ADDRESS
exec startxfce4
`

// WriteXStartup installs the session script. Overwrites any existing one;
// the content is fixed, so re-applies are byte-identical.
func (s Store) WriteXStartup() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	path := s.XStartupPath()
	if err := os.WriteFile(path, []byte(xstartup), 0o755); err != nil {
		return fmt.Errorf("write xstartup: %w", err)
	}
	return s.chown(path)
}

// Remove deletes the whole ~/.vnc directory. Used by uninstall.
func (s Store) Remove() error {
	if err := os.RemoveAll(s.Dir()); err != nil {
		return fmt.Errorf("remove vnc dir: %w", err)
	}
	return nil
}

func (s Store) ensureDir() error {
	if err := os.MkdirAll(s.Dir(), 0o700); err != nil {
		return fmt.Errorf("create vnc dir: %w", err)
	}
	return s.chown(s.Dir())
}

// chown hands ownership to the install user. Skipped when the store was
// built without uid/gid (tests).
func (s Store) chown(path string) error {
	if s.UID == 0 && s.GID == 0 {
		return nil
	}
	if err := os.Chown(path, s.UID, s.GID); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}

func reverseBits(b byte) byte {
	var out byte
	for i := range 8 {
		out |= ((b >> i) & 1) << (7 - i)
	}
	return out
}
