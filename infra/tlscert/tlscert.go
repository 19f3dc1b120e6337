// Package tlscert generates the self-signed TLS bundle the bridge
// terminates with. The bundle is a concatenated PEM (certificate then
// private key) at a fixed path consumed by websockify's --cert flag.
package tlscert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"deskdroid/infra/host"
)

// DefaultBundlePath follows the noVNC TLS directory convention.
const DefaultBundlePath = "/etc/novnc/novnc.pem"

const (
	validity = 365 * 24 * time.Hour
	keyBits  = 2048
)

// EnsureBundle writes a fresh self-signed bundle at path unless one
// already exists. Re-applying never regenerates an existing certificate;
// browsers pin the exception the operator accepted.
// Returns true when a new bundle was created.
func EnsureBundle(path, commonName string) (bool, error) {
	if host.FileExists(path) {
		return false, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return false, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return false, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"deskdroid"}},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return false, fmt.Errorf("create certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create tls dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return false, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return false, fmt.Errorf("encode certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return false, fmt.Errorf("marshal key: %w", err)
	}
	if err := pem.Encode(f, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}); err != nil {
		return false, fmt.Errorf("encode key: %w", err)
	}
	return true, nil
}
