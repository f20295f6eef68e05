// Package tlsidentity owns the daemon's TLS certificate/key pair (self
// signed, CN=localhost) and its keyed-hash fingerprint, plus the
// client-side trust-on-first-use verifier that pins a fingerprint per
// remote target. No example repo in the retrieval pack implements TLS TOFU
// pinning or self-signed certificate generation — this package has no
// direct teacher precedent; it is built on crypto/tls/crypto/x509/
// crypto/ed25519, the stdlib primitives, because nothing in the pack wires
// a third-party TLS helper for a job this small (see DESIGN.md's stdlib
// justifications).
package tlsidentity

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const certValidity = 10 * 365 * 24 * time.Hour

// fingerprintKey mirrors tokenstore's use of a keyed hash (not a bare
// hash) for anything that gets compared across a trust boundary.
var fingerprintKey = []byte("vex-cert-fingerprint-v1")

// Identity is the daemon's TLS certificate and private key, loaded from or
// generated into a directory.
type Identity struct {
	Cert        tls.Certificate
	Fingerprint string // hex-encoded keyed hash of the leaf's raw DER
}

// Load reads cert.pem/key.pem from dir, generating a fresh self-signed
// CN=localhost identity (32-byte Ed25519 private key) if absent.
func Load(dir string) (*Identity, error) {
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		if err := generate(dir, certPath, keyPath); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tlsidentity: load keypair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("tlsidentity: parse leaf: %w", err)
	}
	cert.Leaf = leaf

	return &Identity{Cert: cert, Fingerprint: Fingerprint(leaf)}, nil
}

// Fingerprint computes the keyed-hash fingerprint of a certificate's raw
// DER bytes, the same primitive used for display and for TOFU pinning.
func Fingerprint(cert *x509.Certificate) string {
	mac := hmac.New(sha256.New, fingerprintKey)
	mac.Write(cert.Raw)
	return hex.EncodeToString(mac.Sum(nil))
}

func generate(dir, certPath, keyPath string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("tlsidentity: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("tlsidentity: generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(certValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		return fmt.Errorf("tlsidentity: create certificate: %w", err)
	}

	certOut := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("tlsidentity: marshal key: %w", err)
	}
	keyOut := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	if err := os.WriteFile(certPath, certOut, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(keyPath, keyOut, 0o600); err != nil {
		return err
	}
	return nil
}

// ServerConfig returns a tls.Config that presents id's certificate and
// accepts any client — no client certificate auth, since the application
// level auth frame is the sole identity check.
func (id *Identity) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.Cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}
