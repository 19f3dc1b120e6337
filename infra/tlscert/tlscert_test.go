package tlscert

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnsureBundle_CreatesConcatenatedPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novnc", "novnc.pem")

	created, err := EnsureBundle(path, "desk.example")
	if err != nil {
		t.Fatalf("EnsureBundle: %v", err)
	}
	if !created {
		t.Fatal("EnsureBundle reported no creation on a fresh path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}

	certBlock, rest := pem.Decode(data)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		t.Fatalf("first PEM block = %v, want CERTIFICATE", certBlock)
	}
	keyBlock, _ := pem.Decode(rest)
	if keyBlock == nil || keyBlock.Type != "PRIVATE KEY" {
		t.Fatalf("second PEM block = %v, want PRIVATE KEY", keyBlock)
	}

	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	lifetime := cert.NotAfter.Sub(cert.NotBefore)
	if lifetime != 365*24*time.Hour {
		t.Fatalf("certificate validity = %v, want 365 days", lifetime)
	}
	if cert.Subject.CommonName != "desk.example" {
		t.Fatalf("CN = %q", cert.Subject.CommonName)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("bundle permissions = %o, want 600", perm)
	}
}

func TestEnsureBundle_NeverRegenerates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novnc.pem")

	if _, err := EnsureBundle(path, "desk.example"); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	created, err := EnsureBundle(path, "desk.example")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second EnsureBundle regenerated the bundle")
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("bundle content changed across re-apply")
	}
}
