package host

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Default range for the randomly chosen bridge port on first install.
const (
	randomPortMin = 10000
	randomPortMax = 60000
)

const maxPortAttempts = 64

// RandomFreePort picks a random unbound TCP port in [10000, 60000).
func RandomFreePort() (int, error) {
	span := big.NewInt(randomPortMax - randomPortMin)
	for range maxPortAttempts {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return 0, fmt.Errorf("draw random port: %w", err)
		}
		port := randomPortMin + int(n.Int64())
		if PortFree(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found in %d..%d after %d attempts",
		randomPortMin, randomPortMax, maxPortAttempts)
}

// RandomPassword returns an n-character alphanumeric password.
func RandomPassword(n int) (string, error) {
	out := make([]byte, n)
	alphabet := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", fmt.Errorf("draw password char: %w", err)
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}
